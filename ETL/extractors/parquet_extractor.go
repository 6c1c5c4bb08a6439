package extractors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// parquetTrip - строка файла поездок TLC.
// Все поля необязательные: пропуски становятся дефектами записи, а не ошибкой чтения.
type parquetTrip struct {
	VendorID       *int64   `parquet:"VendorID,optional"`
	Pickup         *int64   `parquet:"tpep_pickup_datetime,optional"`
	Dropoff        *int64   `parquet:"tpep_dropoff_datetime,optional"`
	PassengerCount *float64 `parquet:"passenger_count,optional"`
	TripDistance   *float64 `parquet:"trip_distance,optional"`
	PULocationID   *int64   `parquet:"PULocationID,optional"`
	DOLocationID   *int64   `parquet:"DOLocationID,optional"`
	RatecodeID     *float64 `parquet:"RatecodeID,optional"`
	PaymentType    *int64   `parquet:"payment_type,optional"`
	FareAmount     *float64 `parquet:"fare_amount,optional"`
	TotalAmount    *float64 `parquet:"total_amount,optional"`
}

const parquetReadBatch = 1024

// timestampDecoder переводит сырое значение INT64 TIMESTAMP во время UTC
type timestampDecoder func(int64) time.Time

// timestampUnit выбирает декодер по логическому типу колонки.
// Колонка без логического типа TIMESTAMP читается как микросекунды.
func timestampUnit(schema *parquet.Schema, col string) timestampDecoder {
	leaf, ok := schema.Lookup(col)
	if !ok || leaf.Node == nil {
		return time.UnixMicro
	}
	var unit *format.TimeUnit
	if lt := leaf.Node.Type().LogicalType(); lt != nil && lt.Timestamp != nil {
		unit = &lt.Timestamp.Unit
	}
	switch {
	case unit == nil:
		return time.UnixMicro
	case unit.Nanos != nil:
		return func(v int64) time.Time { return time.Unix(0, v) }
	case unit.Millis != nil:
		return time.UnixMilli
	default:
		return time.UnixMicro
	}
}

// parquetTimestamps - декодеры для колонок посадки и высадки
type parquetTimestamps struct {
	pickup  timestampDecoder
	dropoff timestampDecoder
}

// ReadParquetTrips читает поездки из parquet-файла.
// Временные метки без часового пояса; единица (мс, мкс, нс) берётся из схемы файла.
func ReadParquetTrips(ctx context.Context, path string) ([]models.TripRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения размера файла %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения parquet-файла %s: %w", path, err)
	}
	for _, col := range RequiredColumns {
		if _, ok := pf.Schema().Lookup(col); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	units := parquetTimestamps{
		pickup:  timestampUnit(pf.Schema(), ColPickup),
		dropoff: timestampUnit(pf.Schema(), ColDropoff),
	}

	reader := parquet.NewGenericReader[parquetTrip](pf)
	defer reader.Close()

	trips := make([]models.TripRecord, 0, reader.NumRows())
	buf := make([]parquetTrip, parquetReadBatch)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			trips = append(trips, buf[i].toRecord(len(trips)+1, units))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строк parquet: %w", err)
		}
	}
	return trips, nil
}

func (p parquetTrip) toRecord(row int, units parquetTimestamps) models.TripRecord {
	var malformed []string

	intOf := func(col string, v *int64) int {
		if v == nil {
			malformed = append(malformed, col)
			return 0
		}
		return int(*v)
	}
	intOfFloat := func(col string, v *float64) int {
		if v == nil || math.IsNaN(*v) || *v != math.Trunc(*v) {
			malformed = append(malformed, col)
			return 0
		}
		return int(*v)
	}
	floatOf := func(col string, v *float64) float64 {
		if v == nil {
			malformed = append(malformed, col)
			return math.NaN()
		}
		return *v
	}
	timeOf := func(col string, v *int64, decode timestampDecoder) time.Time {
		if v == nil {
			malformed = append(malformed, col)
			return time.Time{}
		}
		return decode(*v).UTC()
	}

	return models.TripRecord{
		VendorID:          intOf(ColVendorID, p.VendorID),
		PickupAt:          timeOf(ColPickup, p.Pickup, units.pickup),
		DropoffAt:         timeOf(ColDropoff, p.Dropoff, units.dropoff),
		PassengerCount:    intOfFloat(ColPassengerCount, p.PassengerCount),
		TripDistance:      floatOf(ColTripDistance, p.TripDistance),
		PickupLocationID:  intOf(ColPULocationID, p.PULocationID),
		DropoffLocationID: intOf(ColDOLocationID, p.DOLocationID),
		RateCodeID:        intOfFloat(ColRateCodeID, p.RatecodeID),
		PaymentType:       intOf(ColPaymentType, p.PaymentType),
		FareAmount:        floatOf(ColFareAmount, p.FareAmount),
		TotalAmount:       floatOf(ColTotalAmount, p.TotalAmount),
		Malformed:         malformed,
		SourceRow:         row,
	}
}
