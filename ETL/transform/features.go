package transform

import (
	"context"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// Периоды суток
const (
	PeriodNight     = "Night"
	PeriodMorning   = "Morning"
	PeriodAfternoon = "Afternoon"
	PeriodEvening   = "Evening"
	PeriodUnknown   = "Unknown"
)

// UnmappedLabel - метка для кода, которого нет в справочнике
const UnmappedLabel = "Unmapped"

// PaymentLabels - справочник способов оплаты
var PaymentLabels = map[int]string{
	1: "Credit card",
	2: "Cash",
	3: "No charge",
	4: "Dispute",
}

// RateCodeLabels - справочник тарифов
var RateCodeLabels = map[int]string{
	1: "Standard",
	2: "JFK Airport",
	3: "Newark Airport",
	4: "LaGuardia Airport",
	5: "Shared ride",
	6: "Rental",
}

// TimePeriod относит час к периоду суток; час вне 0..23 даёт Unknown
func TimePeriod(hour int) string {
	switch {
	case hour >= 0 && hour <= 5:
		return PeriodNight
	case hour >= 6 && hour <= 11:
		return PeriodMorning
	case hour >= 12 && hour <= 17:
		return PeriodAfternoon
	case hour >= 18 && hour <= 23:
		return PeriodEvening
	default:
		return PeriodUnknown
	}
}

// FeatureEncoder вычисляет временные и категориальные признаки валидных записей
type FeatureEncoder struct {
	payments  map[int]string
	rateCodes map[int]string
	workers   int
}

// NewFeatureEncoder создает кодировщик со справочниками по умолчанию
func NewFeatureEncoder(workers int) *FeatureEncoder {
	return &FeatureEncoder{
		payments:  PaymentLabels,
		rateCodes: RateCodeLabels,
		workers:   workers,
	}
}

// Encode вычисляет признаки одной записи
func (e *FeatureEncoder) Encode(t models.ClassifiedTrip) models.EncodedTrip {
	hour := t.PickupAt.Hour()
	return models.EncodedTrip{
		EnrichedTrip:  t.EnrichedTrip,
		PickupHour:    hour,
		DayOfWeek:     t.PickupAt.Weekday().String(),
		TimePeriod:    TimePeriod(hour),
		PaymentLabel:  lookupLabel(e.payments, t.PaymentType),
		RateCodeLabel: lookupLabel(e.rateCodes, t.RateCodeID),
	}
}

// EncodeAll кодирует записи параллельно, порядок сохраняется
func (e *FeatureEncoder) EncodeAll(ctx context.Context, trips []models.ClassifiedTrip) ([]models.EncodedTrip, error) {
	return mapConcurrently(ctx, e.workers, trips, e.Encode)
}

func lookupLabel(labels map[int]string, code int) string {
	if label, ok := labels[code]; ok {
		return label
	}
	return UnmappedLabel
}
