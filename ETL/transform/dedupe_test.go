package transform

import (
	"testing"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

func TestDropDuplicateTrips(t *testing.T) {
	trips := encoded(
		tripRecord(),
		withTrip(func(r *models.TripRecord) { r.SourceRow = 2 }),
		withTrip(func(r *models.TripRecord) { r.PickupAt = r.PickupAt.Add(300 * time.Millisecond); r.SourceRow = 3 }),
		withTrip(func(r *models.TripRecord) { r.VendorID = 2; r.SourceRow = 4 }),
		withTrip(func(r *models.TripRecord) { r.DropoffLocationID = 201; r.SourceRow = 5 }),
	)

	kept, dropped := DropDuplicateTrips(trips)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	wantRows := []int{1, 4, 5}
	if len(kept) != len(wantRows) {
		t.Fatalf("kept %d trips, want %d", len(kept), len(wantRows))
	}
	for i, row := range wantRows {
		if kept[i].SourceRow != row {
			t.Errorf("kept[%d] is row %d, want %d", i, kept[i].SourceRow, row)
		}
	}
}
