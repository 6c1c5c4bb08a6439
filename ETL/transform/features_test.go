package transform

import (
	"context"
	"testing"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

func TestTimePeriod(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, PeriodNight},
		{5, PeriodNight},
		{6, PeriodMorning},
		{11, PeriodMorning},
		{12, PeriodAfternoon},
		{17, PeriodAfternoon},
		{18, PeriodEvening},
		{23, PeriodEvening},
		{24, PeriodUnknown},
		{-1, PeriodUnknown},
	}
	for _, tt := range tests {
		if got := TimePeriod(tt.hour); got != tt.want {
			t.Errorf("TimePeriod(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name        string
		record      models.TripRecord
		wantPayment string
		wantRate    string
		wantHour    int
		wantDay     string
		wantPeriod  string
	}{
		{
			name:        "known codes",
			record:      tripRecord(),
			wantPayment: "Credit card",
			wantRate:    "Standard",
			wantHour:    8,
			wantDay:     "Monday",
			wantPeriod:  PeriodMorning,
		},
		{
			name: "unknown codes are labelled",
			record: withTrip(func(r *models.TripRecord) {
				r.PaymentType = 9
				r.RateCodeID = 99
				r.PickupAt = time.Date(2024, time.January, 20, 23, 59, 0, 0, time.UTC)
				r.DropoffAt = r.PickupAt.Add(15 * time.Minute)
			}),
			wantPayment: UnmappedLabel,
			wantRate:    UnmappedLabel,
			wantHour:    23,
			wantDay:     "Saturday",
			wantPeriod:  PeriodEvening,
		},
		{
			name: "airport cash ride",
			record: withTrip(func(r *models.TripRecord) {
				r.PaymentType = 2
				r.RateCodeID = 2
			}),
			wantPayment: "Cash",
			wantRate:    "JFK Airport",
			wantHour:    8,
			wantDay:     "Monday",
			wantPeriod:  PeriodMorning,
		},
	}

	encoder := NewFeatureEncoder(1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encoder.Encode(models.ClassifiedTrip{EnrichedTrip: CalculateMetrics(tt.record)})
			if got.PaymentLabel != tt.wantPayment {
				t.Errorf("payment = %q, want %q", got.PaymentLabel, tt.wantPayment)
			}
			if got.RateCodeLabel != tt.wantRate {
				t.Errorf("rate code = %q, want %q", got.RateCodeLabel, tt.wantRate)
			}
			if got.PickupHour != tt.wantHour || got.DayOfWeek != tt.wantDay || got.TimePeriod != tt.wantPeriod {
				t.Errorf("time features = (%d, %s, %s), want (%d, %s, %s)",
					got.PickupHour, got.DayOfWeek, got.TimePeriod, tt.wantHour, tt.wantDay, tt.wantPeriod)
			}
		})
	}
}

func TestEncodeAllKeepsOrder(t *testing.T) {
	var trips []models.ClassifiedTrip
	for i := 0; i < 100; i++ {
		rec := withTrip(func(r *models.TripRecord) { r.SourceRow = i })
		trips = append(trips, models.ClassifiedTrip{EnrichedTrip: CalculateMetrics(rec)})
	}
	encoded, err := NewFeatureEncoder(7).EncodeAll(context.Background(), trips)
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	for i, e := range encoded {
		if e.SourceRow != i {
			t.Fatalf("position %d holds row %d", i, e.SourceRow)
		}
	}
}
