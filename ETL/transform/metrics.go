package transform

import (
	"math"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// CalculateMetrics вычисляет длительность поездки в минутах и среднюю скорость.
// Никаких проверок: нулевая или отрицательная длительность проходит дальше,
// решение о ней принимает классификатор.
func CalculateMetrics(r models.TripRecord) models.EnrichedTrip {
	duration := math.NaN()
	if !r.PickupAt.IsZero() && !r.DropoffAt.IsZero() {
		duration = r.DropoffAt.Sub(r.PickupAt).Minutes()
	}

	return models.EnrichedTrip{
		TripRecord:      r,
		DurationMinutes: duration,
		AvgSpeed:        round2(r.TripDistance / (duration / 60)),
	}
}

// round2 округляет до двух знаков, половину - к чётному; NaN и Inf возвращаются как есть
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.RoundToEven(v*100) / 100
}
