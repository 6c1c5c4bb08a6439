package extractors

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// Имена обязательных колонок исходного набора поездок
const (
	ColVendorID       = "VendorID"
	ColPickup         = "tpep_pickup_datetime"
	ColDropoff        = "tpep_dropoff_datetime"
	ColPassengerCount = "passenger_count"
	ColTripDistance   = "trip_distance"
	ColPULocationID   = "PULocationID"
	ColDOLocationID   = "DOLocationID"
	ColRateCodeID     = "RatecodeID"
	ColPaymentType    = "payment_type"
	ColFareAmount     = "fare_amount"
	ColTotalAmount    = "total_amount"
)

// RequiredColumns - колонки, без которых извлечение невозможно
var RequiredColumns = []string{
	ColVendorID,
	ColPickup,
	ColDropoff,
	ColPassengerCount,
	ColTripDistance,
	ColPULocationID,
	ColDOLocationID,
	ColRateCodeID,
	ColPaymentType,
	ColFareAmount,
	ColTotalAmount,
}

// ErrMissingColumn возвращается, если во входном файле нет обязательной колонки
var ErrMissingColumn = errors.New("отсутствует обязательная колонка")

// ErrUnsupportedFormat возвращается для файлов с неизвестным расширением
var ErrUnsupportedFormat = errors.New("неподдерживаемый формат входного файла")

// Extractor координирует процесс извлечения поездок из исходного файла
type Extractor struct {
	logger *utils.ETLLogger
}

// NewExtractor создает новый экземпляр Extractor
func NewExtractor(logger *utils.ETLLogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract читает файл поездок (.csv или .parquet) и, если задан, справочник зон.
// Дефектные значения не прерывают извлечение: они отмечаются в TripRecord.Malformed.
func (e *Extractor) Extract(ctx context.Context, inputPath, zoneLookupPath string) (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogExtractStart(inputPath)

	var trips []models.TripRecord
	var err error

	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".csv":
		trips, err = ReadCSVTrips(ctx, inputPath)
	case ".parquet":
		trips, err = ReadParquetTrips(ctx, inputPath)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, inputPath)
	}
	if err != nil {
		e.logger.Error("Ошибка при извлечении поездок: %v", err)
		return nil, fmt.Errorf("ошибка извлечения поездок: %w", err)
	}

	zones, err := LoadZoneLookup(zoneLookupPath)
	if err != nil {
		e.logger.Error("Ошибка при чтении справочника зон: %v", err)
		return nil, fmt.Errorf("ошибка извлечения справочника зон: %w", err)
	}
	if zoneLookupPath != "" {
		e.logger.Debug("Загружено зон из справочника: %d", len(zones))
	}

	malformed := 0
	for _, t := range trips {
		if t.IsMalformed() {
			malformed++
		}
	}
	e.logger.LogExtractComplete(len(trips), malformed, time.Since(startTime))

	return &models.ExtractedData{
		Trips:      trips,
		Zones:      zones,
		SourcePath: inputPath,
	}, nil
}
