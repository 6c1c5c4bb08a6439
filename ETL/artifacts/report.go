package artifacts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

//go:embed report_schema.json
var reportSchemaJSON []byte

const reportSchemaURL = "report_schema.json"

var compileReportSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(reportSchemaURL, bytes.NewReader(reportSchemaJSON)); err != nil {
		return nil, fmt.Errorf("ошибка загрузки схемы отчёта: %w", err)
	}
	return compiler.Compile(reportSchemaURL)
})

// Report - сводный отчёт о запуске
type Report struct {
	RunID              string                 `json:"run_id"`
	Timestamp          string                 `json:"timestamp"`
	SourcePath         string                 `json:"source_path,omitempty"`
	TotalProcessed     int                    `json:"total_processed"`
	ValidRecords       int                    `json:"valid_records"`
	QuarantinedRecords int                    `json:"quarantined_records"`
	AnomalyRate        string                 `json:"anomaly_rate"`
	AnomalyDetails     map[string]int         `json:"anomaly_details"`
	DuplicatesDropped  int                    `json:"duplicates_dropped"`
	DataQuality        QualityMetrics         `json:"data_quality_metrics"`
	Reconciliation     *ReconciliationSummary `json:"reconciliation,omitempty"`
	Artifacts          *Paths                 `json:"artifacts,omitempty"`
	LoadError          string                 `json:"load_error,omitempty"`
}

// QualityMetrics - показатели качества по валидным поездкам
type QualityMetrics struct {
	AvgTripDuration float64 `json:"avg_trip_duration"`
	AvgSpeed        float64 `json:"avg_speed"`
	TotalFareAmount float64 `json:"total_fare_amount"`
}

// ReconciliationSummary - итоги загрузки в хранилище
type ReconciliationSummary struct {
	Dimensions      map[string]models.DimensionLoadStats `json:"dimensions"`
	FactsResolved   int                                  `json:"facts_resolved"`
	FactsUnresolved int                                  `json:"facts_unresolved"`
	FactsRejected   int                                  `json:"facts_rejected"`
	FactsLoaded     int                                  `json:"facts_loaded"`
	FactsSkipped    int                                  `json:"facts_skipped"`
}

// BuildReport собирает отчёт по статистике запуска и валидным поездкам
func BuildReport(stats *models.RunStats, valid []models.EncodedTrip, sourcePath string, at time.Time) *Report {
	return &Report{
		RunID:              stats.RunID,
		Timestamp:          at.UTC().Format(time.RFC3339),
		SourcePath:         sourcePath,
		TotalProcessed:     stats.RecordsProcessed,
		ValidRecords:       stats.ValidRecords,
		QuarantinedRecords: stats.QuarantinedRecords,
		AnomalyRate:        fmt.Sprintf("%.2f%%", stats.AnomalyRate()),
		AnomalyDetails:     stats.RejectionDetails(),
		DuplicatesDropped:  stats.DuplicatesDropped,
		DataQuality:        qualityMetrics(valid),
	}
}

// SetLoadResult добавляет в отчёт итоги фазы Load
func (r *Report) SetLoadResult(stats *models.RunStats, loadErr error) {
	dims := make(map[string]models.DimensionLoadStats, len(stats.Dimensions))
	for name, d := range stats.Dimensions {
		dims[name] = d
	}
	r.Reconciliation = &ReconciliationSummary{
		Dimensions:      dims,
		FactsResolved:   stats.FactsResolved,
		FactsUnresolved: stats.FactsUnresolved,
		FactsRejected:   stats.FactsRejected,
		FactsLoaded:     stats.FactsLoaded,
		FactsSkipped:    stats.FactsSkipped,
	}
	if loadErr != nil {
		r.LoadError = loadErr.Error()
	}
}

func qualityMetrics(valid []models.EncodedTrip) QualityMetrics {
	if len(valid) == 0 {
		return QualityMetrics{}
	}
	durations := make([]float64, len(valid))
	speeds := make([]float64, len(valid))
	fares := make([]float64, len(valid))
	for i, t := range valid {
		durations[i] = t.DurationMinutes
		speeds[i] = t.AvgSpeed
		fares[i] = t.FareAmount
	}
	return QualityMetrics{
		AvgTripDuration: round2(stat.Mean(durations, nil)),
		AvgSpeed:        round2(stat.Mean(speeds, nil)),
		TotalFareAmount: round2(floats.Sum(fares)),
	}
}

// Validate проверяет отчёт по встроенной JSON-схеме
func (r *Report) Validate() error {
	schema, err := compileReportSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("ошибка сериализации отчёта: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("ошибка разбора отчёта: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("отчёт не соответствует схеме: %w", err)
	}
	return nil
}

// WriteReport проверяет и записывает отчёт в каталог артефактов
// Путь к самому отчёту попадает в r.Artifacts, если пути артефактов заданы.
func (w *ArtifactWriter) WriteReport(r *Report) (string, error) {
	// отчёт не сжимается, поэтому его путь известен до записи
	if r.Artifacts != nil {
		r.Artifacts.Report = filepath.Join(w.dir, ReportFile)
	}
	if err := r.Validate(); err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации отчёта: %w", err)
	}

	// Отчёт всегда пишется без сжатия: его читает API
	plain := &ArtifactWriter{dir: w.dir, logger: w.logger}
	path, err := plain.create(ReportFile, func(out io.Writer) error {
		_, err := out.Write(raw)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ошибка записи %s: %w", ReportFile, err)
	}
	w.logger.Info("Отчёт о трансформации записан: %s", path)
	return path, nil
}

// ReadReport читает отчёт из файла
func ReadReport(path string) (*Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения отчёта %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("ошибка разбора отчёта %s: %w", path, err)
	}
	return &r, nil
}

// round2 округляет до двух знаков, половину - к чётному
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
