package extractors

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// Форматы временных меток, встречающиеся в выгрузках TLC
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"01/02/2006 03:04:05 PM",
}

// ReadCSVTrips читает поездки из CSV-файла с заголовком
func ReadCSVTrips(ctx context.Context, path string) ([]models.TripRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()
	return DecodeCSVTrips(ctx, f)
}

// MalformedRow отмечает строку, которую не удалось разобрать как CSV
const MalformedRow = "row"

// DecodeCSVTrips разбирает поездки из потока CSV.
// Лишние колонки игнорируются, отсутствие обязательной колонки - фатальная ошибка.
// Синтаксически битая строка возвращается как запись с дефектом MalformedRow.
func DecodeCSVTrips(ctx context.Context, r io.Reader) ([]models.TripRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заголовка: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var trips []models.TripRecord
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// битая строка становится аномалией, разбор продолжается со следующей
			trips = append(trips, models.TripRecord{Malformed: []string{MalformedRow}, SourceRow: row})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки %d: %w", row, err)
		}
		if row%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		trips = append(trips, parseCSVRow(record, index, row))
	}
	return trips, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		// BOM в начале файла из Excel
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return index, nil
}

// rowParser собирает значения одной строки и запоминает дефектные поля
type rowParser struct {
	record    []string
	index     map[string]int
	malformed []string
}

func (p *rowParser) raw(col string) (string, bool) {
	i := p.index[col]
	if i >= len(p.record) {
		p.malformed = append(p.malformed, col)
		return "", false
	}
	v := strings.TrimSpace(p.record[i])
	if v == "" {
		p.malformed = append(p.malformed, col)
		return "", false
	}
	return v, true
}

func (p *rowParser) float(col string) float64 {
	v, ok := p.raw(col)
	if !ok {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.malformed = append(p.malformed, col)
		return math.NaN()
	}
	return f
}

// int принимает и целые в записи с плавающей точкой ("1.0"), как в выгрузках pandas
func (p *rowParser) int(col string) int {
	v, ok := p.raw(col)
	if !ok {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		p.malformed = append(p.malformed, col)
		return 0
	}
	return int(f)
}

func (p *rowParser) timestamp(col string) time.Time {
	v, ok := p.raw(col)
	if !ok {
		return time.Time{}
	}
	t, err := parseTimestamp(v)
	if err != nil {
		p.malformed = append(p.malformed, col)
		return time.Time{}
	}
	return t
}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат времени: %q", v)
}

func parseCSVRow(record []string, index map[string]int, row int) models.TripRecord {
	p := &rowParser{record: record, index: index}
	t := models.TripRecord{
		VendorID:          p.int(ColVendorID),
		PickupAt:          p.timestamp(ColPickup),
		DropoffAt:         p.timestamp(ColDropoff),
		PassengerCount:    p.int(ColPassengerCount),
		TripDistance:      p.float(ColTripDistance),
		PickupLocationID:  p.int(ColPULocationID),
		DropoffLocationID: p.int(ColDOLocationID),
		RateCodeID:        p.int(ColRateCodeID),
		PaymentType:       p.int(ColPaymentType),
		FareAmount:        p.float(ColFareAmount),
		TotalAmount:       p.float(ColTotalAmount),
		SourceRow:         row,
	}
	if len(p.malformed) > 0 {
		t.Malformed = p.malformed
	}
	return t
}
