package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

// SQLDimensionStore реализация DimensionStore поверх database/sql
type SQLDimensionStore struct {
	db        *sql.DB
	dialect   warehouse.Dialect
	chunkSize int
	logger    *utils.ETLLogger
}

// NewSQLDimensionStore создает новый экземпляр SQLDimensionStore
func NewSQLDimensionStore(db *sql.DB, dialect warehouse.Dialect, chunkSize int, logger *utils.ETLLogger) *SQLDimensionStore {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &SQLDimensionStore{
		db:        db,
		dialect:   dialect,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

type upsertSpec struct {
	dimension string
	insertSQL string
	lookupSQL string
}

func (s *SQLDimensionStore) spec(dimension, table string, columns []string, naturalColumn, pkColumn string) upsertSpec {
	return upsertSpec{
		dimension: dimension,
		insertSQL: s.dialect.InsertIfAbsent(table, columns, naturalColumn),
		lookupSQL: s.dialect.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?%s",
			pkColumn, table, naturalColumn, s.dialect.LockingRead())),
	}
}

// EnsureTimes загружает измерение времени
func (s *SQLDimensionStore) EnsureTimes(ctx context.Context, candidates []models.TimeCandidate) (map[models.TimeKey]int64, int, error) {
	spec := s.spec(models.DimensionTime, warehouse.TableDimTime,
		[]string{"datetime", "hour", "day_of_week", "time_period"}, "datetime", "time_pk")
	return ensureRows(ctx, s, spec, candidates,
		func(c models.TimeCandidate) models.TimeKey { return c.Key },
		func(c models.TimeCandidate) []any { return []any{c.Datetime(), c.Hour, c.DayOfWeek, c.TimePeriod} },
		func(c models.TimeCandidate) any { return c.Datetime() },
	)
}

// EnsureLocations загружает измерение локаций
func (s *SQLDimensionStore) EnsureLocations(ctx context.Context, candidates []models.LocationCandidate) (map[int]int64, int, error) {
	spec := s.spec(models.DimensionLocation, warehouse.TableDimLocation,
		[]string{"location_id", "borough"}, "location_id", "location_pk")
	return ensureRows(ctx, s, spec, candidates,
		func(c models.LocationCandidate) int { return c.LocationID },
		func(c models.LocationCandidate) []any { return []any{c.LocationID, c.Borough} },
		func(c models.LocationCandidate) any { return c.LocationID },
	)
}

// EnsurePayments загружает измерение способов оплаты
func (s *SQLDimensionStore) EnsurePayments(ctx context.Context, candidates []models.PaymentCandidate) (map[string]int64, int, error) {
	spec := s.spec(models.DimensionPayment, warehouse.TableDimPayment,
		[]string{"payment_type"}, "payment_type", "payment_pk")
	return ensureRows(ctx, s, spec, candidates,
		func(c models.PaymentCandidate) string { return c.PaymentType },
		func(c models.PaymentCandidate) []any { return []any{c.PaymentType} },
		func(c models.PaymentCandidate) any { return c.PaymentType },
	)
}

// ensureRows обрабатывает кандидатов порциями, каждая порция - отдельная транзакция.
// Ошибка в порции откатывает только её; ранее зафиксированные порции остаются.
func ensureRows[C any, K comparable](
	ctx context.Context,
	s *SQLDimensionStore,
	spec upsertSpec,
	candidates []C,
	naturalKey func(C) K,
	insertArgs func(C) []any,
	lookupArg func(C) any,
) (map[K]int64, int, error) {
	keys := make(map[K]int64, len(candidates))
	inserted := 0

	for start := 0; start < len(candidates); start += s.chunkSize {
		end := min(start+s.chunkSize, len(candidates))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, inserted, fmt.Errorf("ошибка при начале транзакции (%s): %w", spec.dimension, err)
		}

		n, err := ensureChunk(ctx, tx, spec, candidates[start:end], naturalKey, insertArgs, lookupArg, keys)
		if err != nil {
			tx.Rollback()
			return nil, inserted, fmt.Errorf("ошибка при загрузке измерения %s (строки %d-%d): %w",
				spec.dimension, start, end-1, err)
		}

		if err := tx.Commit(); err != nil {
			return nil, inserted, fmt.Errorf("ошибка при фиксации транзакции (%s): %w", spec.dimension, err)
		}
		inserted += n

		s.logger.Debug("Измерение %s: обработано %d из %d кандидатов", spec.dimension, end, len(candidates))
	}

	return keys, inserted, nil
}

func ensureChunk[C any, K comparable](
	ctx context.Context,
	tx *sql.Tx,
	spec upsertSpec,
	chunk []C,
	naturalKey func(C) K,
	insertArgs func(C) []any,
	lookupArg func(C) any,
	keys map[K]int64,
) (int, error) {
	insertStmt, err := tx.PrepareContext(ctx, spec.insertSQL)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса вставки: %w", err)
	}
	defer insertStmt.Close()

	lookupStmt, err := tx.PrepareContext(ctx, spec.lookupSQL)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса поиска ключа: %w", err)
	}
	defer lookupStmt.Close()

	inserted := 0
	for _, c := range chunk {
		res, err := insertStmt.ExecContext(ctx, insertArgs(c)...)
		if err != nil {
			return 0, fmt.Errorf("ошибка при вставке %v: %w", naturalKey(c), err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			inserted++
		}

		var pk int64
		if err := lookupStmt.QueryRowContext(ctx, lookupArg(c)).Scan(&pk); err != nil {
			return 0, fmt.Errorf("ошибка при получении суррогатного ключа для %v: %w", naturalKey(c), err)
		}
		keys[naturalKey(c)] = pk
	}
	return inserted, nil
}
