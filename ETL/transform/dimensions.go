package transform

import (
	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// DimensionBuilder извлекает дедуплицированных кандидатов для измерений
type DimensionBuilder struct {
	boroughs map[int]string
}

// NewDimensionBuilder создает построитель; boroughs может быть nil
func NewDimensionBuilder(boroughs map[int]string) *DimensionBuilder {
	return &DimensionBuilder{boroughs: boroughs}
}

// Build строит кандидатов для всех измерений.
// Порядок ключей - порядок первого появления, описательные атрибуты берутся из последнего.
func (b *DimensionBuilder) Build(trips []models.EncodedTrip) models.DimensionCandidates {
	return models.DimensionCandidates{
		Times:     b.timeCandidates(trips),
		Locations: b.locationCandidates(trips),
		Payments:  b.paymentCandidates(trips),
	}
}

func (b *DimensionBuilder) timeCandidates(trips []models.EncodedTrip) []models.TimeCandidate {
	index := make(map[models.TimeKey]int)
	var out []models.TimeCandidate
	for _, t := range trips {
		c := models.TimeCandidate{
			Key:        models.NewTimeKey(t.PickupAt),
			Hour:       t.PickupHour,
			DayOfWeek:  t.DayOfWeek,
			TimePeriod: t.TimePeriod,
		}
		if i, ok := index[c.Key]; ok {
			out[i] = c
			continue
		}
		index[c.Key] = len(out)
		out = append(out, c)
	}
	return out
}

func (b *DimensionBuilder) locationCandidates(trips []models.EncodedTrip) []models.LocationCandidate {
	seen := make(map[int]struct{})
	var out []models.LocationCandidate
	add := func(id int) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, models.LocationCandidate{LocationID: id, Borough: b.borough(id)})
	}
	for _, t := range trips {
		add(t.PickupLocationID)
		add(t.DropoffLocationID)
	}
	return out
}

func (b *DimensionBuilder) paymentCandidates(trips []models.EncodedTrip) []models.PaymentCandidate {
	seen := make(map[string]struct{})
	var out []models.PaymentCandidate
	for _, t := range trips {
		if _, ok := seen[t.PaymentLabel]; ok {
			continue
		}
		seen[t.PaymentLabel] = struct{}{}
		out = append(out, models.PaymentCandidate{PaymentType: t.PaymentLabel})
	}
	return out
}

func (b *DimensionBuilder) borough(locationID int) string {
	if name, ok := b.boroughs[locationID]; ok && name != "" {
		return name
	}
	return models.UnknownBorough
}
