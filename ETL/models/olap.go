package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Имена измерений звёздной схемы
const (
	DimensionTime     = "time"
	DimensionLocation = "location"
	DimensionPayment  = "payment"
)

// UnknownBorough - район по умолчанию для зон без справочника
const UnknownBorough = "Unknown"

// TimeCandidate - строка-кандидат для измерения времени
type TimeCandidate struct {
	Key        TimeKey
	Hour       int
	DayOfWeek  string
	TimePeriod string
}

// Datetime возвращает значение натурального ключа для записи в хранилище
func (c TimeCandidate) Datetime() time.Time {
	return c.Key.Time()
}

// LocationCandidate - строка-кандидат для измерения локаций
type LocationCandidate struct {
	LocationID int
	Borough    string
}

// PaymentCandidate - строка-кандидат для измерения способов оплаты
type PaymentCandidate struct {
	PaymentType string
}

// DimensionCandidates содержит дедуплицированных кандидатов для всех измерений
type DimensionCandidates struct {
	Times     []TimeCandidate
	Locations []LocationCandidate
	Payments  []PaymentCandidate
}

// ResolvedFact представляет строку таблицы фактов с разрешёнными суррогатными ключами
type ResolvedFact struct {
	TimePK       int64
	PickupLocPK  int64
	DropoffLocPK int64
	PaymentPK    int64

	PassengerCount  int
	TripDistance    float64
	FareAmount      float64
	TotalAmount     float64
	DurationMinutes float64
	AvgSpeed        float64

	TripKey string
	RunID   string
}

// MaxMeasure - наибольшее значение, которое помещается в NUMERIC(8,2)
const MaxMeasure = 999999.99

var (
	errNonPositive = errors.New("значение должно быть положительным")
	errOverflow    = errors.New("значение превышает допустимый предел")
)

// Validate проверяет факт на соответствие ограничениям таблицы fact_trips
func (f ResolvedFact) Validate() error {
	keys := []struct {
		name string
		pk   int64
	}{
		{"time_pk", f.TimePK},
		{"pickup_loc_pk", f.PickupLocPK},
		{"dropoff_loc_pk", f.DropoffLocPK},
		{"payment_pk", f.PaymentPK},
	}
	for _, k := range keys {
		if k.pk <= 0 {
			return fmt.Errorf("внешний ключ %s не разрешён", k.name)
		}
	}

	if f.PassengerCount <= 0 {
		return fmt.Errorf("passenger_count: %w", errNonPositive)
	}
	measures := []struct {
		name  string
		value float64
	}{
		{"trip_distance", f.TripDistance},
		{"fare_amount", f.FareAmount},
		{"total_amount", f.TotalAmount},
		{"duration_min", f.DurationMinutes},
		{"avg_speed", f.AvgSpeed},
	}
	for _, m := range measures {
		// NaN не проходит сравнение и тоже отклоняется;
		// значение, которое NUMERIC(8,2) округлит до нуля, тоже
		if !(math.Round(m.value*100) > 0) {
			return fmt.Errorf("%s: %w", m.name, errNonPositive)
		}
		if m.value > MaxMeasure {
			return fmt.Errorf("%s: %w", m.name, errOverflow)
		}
	}
	return nil
}

// TransformedData содержит результат фазы Transform
type TransformedData struct {
	Valid       []EncodedTrip
	Quarantined []ClassifiedTrip
	Candidates  DimensionCandidates
}
