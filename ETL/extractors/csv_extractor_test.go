package extractors

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"
)

const csvHeader = "VendorID,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,RatecodeID,PULocationID,DOLocationID,payment_type,fare_amount,total_amount,extra\n"

func TestDecodeCSVTrips(t *testing.T) {
	input := "\ufeff" + csvHeader +
		"1,2024-01-15 08:30:00,2024-01-15 08:45:00,1,3.0,1,100,200,1,12.5,15.0,0.5\n" +
		"2,2024-01-15T18:00:00,2024-01-15T18:30:00,2.0,10,2,100,100,2,30,35,\n" +
		"1,2024-01-15 09:00:00,2024-01-15 09:10:00,,abc,1,100,200,1,12.5,15.0,0\n" +
		"1,yesterday,2024-01-15 09:10:00,1,1.5,1.5,100,200,1,8,9,0\n"

	trips, err := DecodeCSVTrips(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSVTrips: %v", err)
	}
	if len(trips) != 4 {
		t.Fatalf("got %d trips, want 4", len(trips))
	}

	first := trips[0]
	wantPickup := time.Date(2024, time.January, 15, 8, 30, 0, 0, time.UTC)
	if !first.PickupAt.Equal(wantPickup) || first.DropoffAt.Sub(first.PickupAt) != 15*time.Minute {
		t.Errorf("times = %v / %v", first.PickupAt, first.DropoffAt)
	}
	if first.IsMalformed() || first.SourceRow != 1 || first.FareAmount != 12.5 || first.DropoffLocationID != 200 {
		t.Errorf("first = %+v", first)
	}

	// "2.0" принимается как целое
	if trips[1].PassengerCount != 2 || trips[1].IsMalformed() {
		t.Errorf("second = %+v", trips[1])
	}

	third := trips[2]
	if !slices.Equal(third.Malformed, []string{"passenger_count", "trip_distance"}) {
		t.Errorf("malformed = %v", third.Malformed)
	}
	if !math.IsNaN(third.TripDistance) {
		t.Errorf("unparsed distance = %v, want NaN", third.TripDistance)
	}

	fourth := trips[3]
	if !slices.Equal(fourth.Malformed, []string{"tpep_pickup_datetime", "RatecodeID"}) {
		t.Errorf("malformed = %v", fourth.Malformed)
	}
	if fourth.SourceRow != 4 {
		t.Errorf("source row = %d", fourth.SourceRow)
	}
}

func TestDecodeCSVTripsShortRow(t *testing.T) {
	trips, err := DecodeCSVTrips(context.Background(), strings.NewReader(csvHeader+"1,2024-01-15 08:30:00\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 1 || len(trips[0].Malformed) != 9 {
		t.Errorf("short row malformed = %v", trips[0].Malformed)
	}
}

func TestDecodeCSVTripsCorruptRow(t *testing.T) {
	input := csvHeader +
		"1,2024-01-15 08:30:00,2024-01-15 08:45:00,1,3.0,1,100,200,1,12.5,15.0,0\n" +
		"1,2024-01-15 09:00:00,2024-01-15 09:10:00,1,2\"0,1,100,200,1,12.5,15.0,0\n" +
		"2,2024-01-15 10:00:00,2024-01-15 10:20:00,1,4.0,1,100,200,2,20,22,0\n"

	trips, err := DecodeCSVTrips(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSVTrips: %v", err)
	}
	if len(trips) != 3 {
		t.Fatalf("got %d trips, want 3", len(trips))
	}

	bad := trips[1]
	if !slices.Equal(bad.Malformed, []string{MalformedRow}) || bad.SourceRow != 2 {
		t.Errorf("corrupt row = %+v", bad)
	}
	for _, i := range []int{0, 2} {
		if trips[i].IsMalformed() || trips[i].SourceRow != i+1 {
			t.Errorf("trip %d = %+v", i, trips[i])
		}
	}
	if trips[2].VendorID != 2 || trips[2].TripDistance != 4 {
		t.Errorf("row after corrupt one = %+v", trips[2])
	}
}

func TestDecodeCSVTripsMissingColumn(t *testing.T) {
	header := strings.Replace(csvHeader, "total_amount,", "", 1)
	_, err := DecodeCSVTrips(context.Background(), strings.NewReader(header))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
	if !strings.Contains(err.Error(), "total_amount") {
		t.Errorf("error does not name the column: %v", err)
	}
}

func TestDecodeCSVTripsEmpty(t *testing.T) {
	if _, err := DecodeCSVTrips(context.Background(), strings.NewReader("")); err == nil {
		t.Error("empty input must fail on header")
	}

	trips, err := DecodeCSVTrips(context.Background(), strings.NewReader(csvHeader))
	if err != nil || len(trips) != 0 {
		t.Errorf("header only: %d trips, err %v", len(trips), err)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, time.January, 15, 20, 5, 9, 0, time.UTC)
	for _, in := range []string{
		"2024-01-15 20:05:09",
		"2024-01-15T20:05:09",
		"2024-01-15T20:05:09Z",
		"01/15/2024 08:05:09 PM",
	} {
		got, err := parseTimestamp(in)
		if err != nil || !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseTimestamp("15.01.2024"); err == nil {
		t.Error("unknown layout must fail")
	}
}
