package models

import (
	"fmt"
	"time"
)

// TripRecord представляет сырую запись поездки после извлечения из исходного файла.
// После извлечения запись не изменяется.
type TripRecord struct {
	VendorID          int
	PickupAt          time.Time
	DropoffAt         time.Time
	PassengerCount    int
	TripDistance      float64
	PickupLocationID  int
	DropoffLocationID int
	RateCodeID        int
	PaymentType       int
	FareAmount        float64
	TotalAmount       float64

	// Malformed содержит имена полей, которые не удалось разобрать или которые пусты
	Malformed []string
	// SourceRow - номер строки в исходном файле (начиная с 1)
	SourceRow int
}

// IsMalformed сообщает, были ли у записи дефекты на этапе извлечения
func (r TripRecord) IsMalformed() bool {
	return len(r.Malformed) > 0
}

// EnrichedTrip - запись поездки с вычисленными метриками.
// Значения не проверяются: длительность может быть отрицательной, скорость - NaN или Inf.
type EnrichedTrip struct {
	TripRecord
	DurationMinutes float64
	AvgSpeed        float64
}

// ClassifiedTrip - запись после классификации аномалий.
// Пустая причина означает, что запись прошла все правила.
type ClassifiedTrip struct {
	EnrichedTrip
	Reason RejectionReason
}

// Quarantined сообщает, отправлена ли запись в карантин
func (t ClassifiedTrip) Quarantined() bool {
	return t.Reason != ReasonNone
}

// EncodedTrip - валидная запись с производными признаками
type EncodedTrip struct {
	EnrichedTrip
	PickupHour    int
	DayOfWeek     string
	TimePeriod    string
	PaymentLabel  string
	RateCodeLabel string
}

// TripKey возвращает составной натуральный ключ исходной поездки
func (t TripRecord) TripKey() string {
	return fmt.Sprintf("%d|%s|%s|%d|%d",
		t.VendorID,
		NewTimeKey(t.PickupAt).Time().Format("2006-01-02T15:04:05"),
		NewTimeKey(t.DropoffAt).Time().Format("2006-01-02T15:04:05"),
		t.PickupLocationID,
		t.DropoffLocationID,
	)
}

// RejectionReason - причина отправки записи в карантин
type RejectionReason string

const (
	ReasonNone                  RejectionReason = ""
	ReasonMalformedRecord       RejectionReason = "MalformedRecord"
	ReasonInvalidDuration       RejectionReason = "InvalidDuration"
	ReasonDistanceOutOfRange    RejectionReason = "DistanceOutOfRange"
	ReasonInvalidFare           RejectionReason = "InvalidFare"
	ReasonInvalidPassengerCount RejectionReason = "InvalidPassengerCount"
	ReasonUnrealisticSpeed      RejectionReason = "UnrealisticSpeed"
)

// ExtractedData содержит данные, извлечённые из исходного файла
type ExtractedData struct {
	Trips      []TripRecord
	Zones      map[int]string // location_id -> borough
	SourcePath string
}
