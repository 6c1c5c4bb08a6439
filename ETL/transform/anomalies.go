package transform

import (
	"context"
	"math"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// Границы допустимых значений
const (
	MinTripDistance = 0.1
	MaxTripDistance = 100.0
	MinAvgSpeed     = 1.0
	MaxAvgSpeed     = 100.0
)

// Rule - правило обнаружения аномалии
type Rule struct {
	Reason   models.RejectionReason
	Violated func(t models.EnrichedTrip) bool
}

// DefaultRules - упорядоченный список правил. Срабатывает первое нарушенное правило.
// Каждый предикат сформулирован как "значение вне допустимого диапазона",
// поэтому NaN всегда приводит к отказу и классификация тотальна.
var DefaultRules = []Rule{
	{models.ReasonMalformedRecord, isMalformed},
	{models.ReasonInvalidDuration, func(t models.EnrichedTrip) bool {
		return !(t.DurationMinutes > 0)
	}},
	{models.ReasonDistanceOutOfRange, func(t models.EnrichedTrip) bool {
		return !inRange(t.TripDistance, MinTripDistance, MaxTripDistance)
	}},
	{models.ReasonInvalidFare, func(t models.EnrichedTrip) bool {
		return !(t.FareAmount > 0)
	}},
	{models.ReasonInvalidPassengerCount, func(t models.EnrichedTrip) bool {
		return t.PassengerCount <= 0
	}},
	{models.ReasonUnrealisticSpeed, func(t models.EnrichedTrip) bool {
		return !inRange(t.AvgSpeed, MinAvgSpeed, MaxAvgSpeed)
	}},
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func isMalformed(t models.EnrichedTrip) bool {
	if t.IsMalformed() {
		return true
	}
	for _, v := range []float64{t.TripDistance, t.FareAmount, t.TotalAmount} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	// NaN длительность бывает только при отсутствии временных меток
	return math.IsNaN(t.DurationMinutes)
}

// AnomalyClassifier назначает записи не более одной причины отказа
type AnomalyClassifier struct {
	rules   []Rule
	workers int
	logger  *utils.ETLLogger
}

// NewAnomalyClassifier создает классификатор с правилами по умолчанию
func NewAnomalyClassifier(workers int, logger *utils.ETLLogger) *AnomalyClassifier {
	return &AnomalyClassifier{
		rules:   DefaultRules,
		workers: workers,
		logger:  logger,
	}
}

// Classify оценивает правила сверху вниз; первое сработавшее правило определяет причину
func (c *AnomalyClassifier) Classify(t models.EnrichedTrip) models.ClassifiedTrip {
	for _, rule := range c.rules {
		if rule.Violated(t) {
			return models.ClassifiedTrip{EnrichedTrip: t, Reason: rule.Reason}
		}
	}
	return models.ClassifiedTrip{EnrichedTrip: t}
}

// Partition классифицирует записи параллельно и разделяет их на валидные и карантин.
// Каждая входная запись попадает ровно в одно из множеств, порядок сохраняется.
func (c *AnomalyClassifier) Partition(ctx context.Context, trips []models.EnrichedTrip, stats *models.RunStats) (valid, quarantined []models.ClassifiedTrip, err error) {
	classified, err := mapConcurrently(ctx, c.workers, trips, c.Classify)
	if err != nil {
		return nil, nil, err
	}

	valid = make([]models.ClassifiedTrip, 0, len(classified))
	for _, t := range classified {
		if t.Quarantined() {
			quarantined = append(quarantined, t)
			stats.AddRejection(t.Reason)
			continue
		}
		valid = append(valid, t)
	}
	stats.ValidRecords += len(valid)

	if len(quarantined) > 0 {
		c.logger.Warn("Аномалии обнаружены: %d строк", len(quarantined))
		for _, reason := range stats.SortedReasons() {
			c.logger.Info("  %s: %d", reason, stats.RejectionCounts[reason])
		}
	}
	return valid, quarantined, nil
}
