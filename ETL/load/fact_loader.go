package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

var factColumns = []string{
	"time_pk", "pickup_loc_pk", "dropoff_loc_pk", "payment_pk",
	"passenger_count", "trip_distance", "fare_amount", "total_amount",
	"duration_min", "avg_speed", "trip_key", "run_id",
}

// FactLoader отвечает за загрузку таблицы фактов поездок
type FactLoader struct {
	db        *sql.DB
	dialect   warehouse.Dialect
	batchSize int
	logger    *utils.ETLLogger
}

// NewFactLoader создает новый экземпляр FactLoader
func NewFactLoader(db *sql.DB, dialect warehouse.Dialect, batchSize int, logger *utils.ETLLogger) *FactLoader {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &FactLoader{
		db:        db,
		dialect:   dialect,
		batchSize: batchSize,
		logger:    logger,
	}
}

// LoadFacts загружает факты пакетами, каждый пакет в своей транзакции.
// Факты, нарушающие ограничения таблицы, отбрасываются до загрузки.
// Уже загруженные поездки (по trip_key) пропускаются.
// При ошибке пакета загрузка прекращается, ранее зафиксированные пакеты остаются.
func (l *FactLoader) LoadFacts(ctx context.Context, facts []models.ResolvedFact, stats *models.RunStats) error {
	accepted := make([]models.ResolvedFact, 0, len(facts))
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			stats.FactsRejected++
			l.logger.Debug("Факт %s отклонён: %v", f.TripKey, err)
			continue
		}
		accepted = append(accepted, f)
	}
	if stats.FactsRejected > 0 {
		l.logger.Warn("Отклонено фактов, нарушающих ограничения таблицы: %d", stats.FactsRejected)
	}

	query := l.dialect.InsertIfAbsent(warehouse.TableFactTrips, factColumns, "trip_key")

	for start := 0; start < len(accepted); start += l.batchSize {
		end := min(start+l.batchSize, len(accepted))
		loaded, err := l.loadBatch(ctx, query, accepted[start:end])
		if err != nil {
			return fmt.Errorf("ошибка при загрузке фактов (строки %d-%d): %w", start, end-1, err)
		}
		stats.FactsLoaded += loaded
		stats.FactsSkipped += (end - start) - loaded

		l.logger.Debug("Загружено %d из %d фактов", end, len(accepted))
	}

	l.logger.Info("Загрузка фактов завершена: вставлено %d, пропущено существующих %d",
		stats.FactsLoaded, stats.FactsSkipped)
	return nil
}

func (l *FactLoader) loadBatch(ctx context.Context, query string, batch []models.ResolvedFact) (int, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	loaded := 0
	for _, f := range batch {
		res, err := stmt.ExecContext(ctx,
			f.TimePK, f.PickupLocPK, f.DropoffLocPK, f.PaymentPK,
			f.PassengerCount, f.TripDistance, f.FareAmount, f.TotalAmount,
			f.DurationMinutes, f.AvgSpeed, f.TripKey, f.RunID,
		)
		if err != nil {
			return 0, fmt.Errorf("ошибка при вставке факта %s: %w", f.TripKey, err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			loaded++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return loaded, nil
}
