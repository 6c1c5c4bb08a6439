package transform

import (
	"testing"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

var basePickup = time.Date(2024, time.January, 15, 8, 30, 0, 0, time.UTC)

// tripRecord возвращает валидную поездку: 3 мили за 15 минут
func tripRecord() models.TripRecord {
	return models.TripRecord{
		VendorID:          1,
		PickupAt:          basePickup,
		DropoffAt:         basePickup.Add(15 * time.Minute),
		PassengerCount:    1,
		TripDistance:      3.0,
		PickupLocationID:  100,
		DropoffLocationID: 200,
		RateCodeID:        1,
		PaymentType:       1,
		FareAmount:        12.5,
		TotalAmount:       15.0,
		SourceRow:         1,
	}
}

func withTrip(mutate func(*models.TripRecord)) models.TripRecord {
	r := tripRecord()
	mutate(&r)
	return r
}

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}
