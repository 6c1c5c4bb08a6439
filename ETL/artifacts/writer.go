// Package artifacts записывает результаты трансформации на диск:
// наборы данных в CSV (опционально сжатые snappy) и JSON-отчёт о запуске.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	"go.uber.org/multierr"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// Имена файлов артефактов
const (
	TransformedFile  = "transformed_data.csv"
	AnomaliesPrefix  = "anomalies_"
	ReportFile       = "transformation_report.json"
	CompressedSuffix = ".sz"
)

const csvTimeLayout = "2006-01-02 15:04:05"

var rawHeader = []string{
	"VendorID", "tpep_pickup_datetime", "tpep_dropoff_datetime", "passenger_count",
	"trip_distance", "PULocationID", "DOLocationID", "RatecodeID", "payment_type",
	"fare_amount", "total_amount", "trip_duration", "avg_speed",
}

// Paths содержит пути к записанным артефактам
type Paths struct {
	Transformed string `json:"transformed"`
	Anomalies   string `json:"anomalies"`
	Report      string `json:"report,omitempty"`
}

// ArtifactWriter записывает артефакты запуска в каталог
type ArtifactWriter struct {
	dir      string
	compress bool
	logger   *utils.ETLLogger
}

// NewArtifactWriter создает новый экземпляр ArtifactWriter
func NewArtifactWriter(dir string, compress bool, logger *utils.ETLLogger) *ArtifactWriter {
	return &ArtifactWriter{dir: dir, compress: compress, logger: logger}
}

// WriteDatasets записывает валидные поездки и карантин.
// Имя файла карантина содержит момент запуска, поэтому запуски не перезаписывают друг друга.
func (w *ArtifactWriter) WriteDatasets(data *models.TransformedData, at time.Time) (Paths, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("ошибка создания каталога артефактов: %w", err)
	}

	transformed, err := w.create(TransformedFile, func(out io.Writer) error {
		return writeTransformed(out, data.Valid)
	})
	if err != nil {
		return Paths{}, fmt.Errorf("ошибка записи %s: %w", TransformedFile, err)
	}

	anomaliesName := AnomaliesPrefix + at.Format("20060102_150405") + ".csv"
	anomalies, err := w.create(anomaliesName, func(out io.Writer) error {
		return writeAnomalies(out, data.Quarantined)
	})
	if err != nil {
		return Paths{}, fmt.Errorf("ошибка записи %s: %w", anomaliesName, err)
	}

	w.logger.Info("Артефакты записаны: %s (%d строк), %s (%d строк)",
		transformed, len(data.Valid), anomalies, len(data.Quarantined))
	return Paths{Transformed: transformed, Anomalies: anomalies}, nil
}

// create пишет файл через временный файл и переименование,
// чтобы читатель никогда не увидел частично записанный артефакт
func (w *ArtifactWriter) create(name string, write func(io.Writer) error) (path string, err error) {
	if w.compress {
		name += CompressedSuffix
	}
	path = filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	var out io.Writer = tmp
	var sz *snappy.Writer
	if w.compress {
		sz = snappy.NewBufferedWriter(tmp)
		out = sz
	}

	err = write(out)
	if sz != nil {
		err = multierr.Append(err, sz.Close())
	}
	err = multierr.Append(err, tmp.Close())
	if err != nil {
		return "", err
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// OpenDataset открывает набор данных, распаковывая snappy по расширению .sz
func OpenDataset(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedSuffix) {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{snappy.NewReader(f), f}, nil
}

func writeTransformed(out io.Writer, trips []models.EncodedTrip) error {
	cw := csv.NewWriter(out)
	header := append(append([]string{}, rawHeader...),
		"pickup_hour", "day_of_week", "time_period", "payment_label", "ratecode_label", "trip_key")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trips {
		row := append(rawFields(t.EnrichedTrip),
			strconv.Itoa(t.PickupHour), t.DayOfWeek, t.TimePeriod, t.PaymentLabel, t.RateCodeLabel, t.TripKey())
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeAnomalies(out io.Writer, trips []models.ClassifiedTrip) error {
	cw := csv.NewWriter(out)
	header := append(append([]string{}, rawHeader...), "rejection_reason", "malformed_fields", "source_row")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trips {
		row := append(rawFields(t.EnrichedTrip),
			string(t.Reason), strings.Join(t.Malformed, ";"), strconv.Itoa(t.SourceRow))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func rawFields(t models.EnrichedTrip) []string {
	return []string{
		strconv.Itoa(t.VendorID),
		formatTime(t.PickupAt),
		formatTime(t.DropoffAt),
		strconv.Itoa(t.PassengerCount),
		formatFloat(t.TripDistance),
		strconv.Itoa(t.PickupLocationID),
		strconv.Itoa(t.DropoffLocationID),
		strconv.Itoa(t.RateCodeID),
		strconv.Itoa(t.PaymentType),
		formatFloat(t.FareAmount),
		formatFloat(t.TotalAmount),
		formatFloat(t.DurationMinutes),
		formatFloat(t.AvgSpeed),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(csvTimeLayout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
