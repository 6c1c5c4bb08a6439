package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

const runLogColumns = `
	run_id, start_time, end_time, status,
	records_processed, records_valid, records_quarantined, duplicates_dropped,
	facts_loaded, facts_skipped, facts_unresolved, facts_rejected,
	COALESCE(report_path, ''), COALESCE(error_message, ''), COALESCE(execution_time_seconds, 0)`

// SQLETLLogRepository реализация ETLLogRepository поверх database/sql
type SQLETLLogRepository struct {
	db      *sql.DB
	dialect warehouse.Dialect
}

// NewSQLETLLogRepository создает новый экземпляр SQLETLLogRepository
func NewSQLETLLogRepository(db *sql.DB, dialect warehouse.Dialect) *SQLETLLogRepository {
	return &SQLETLLogRepository{
		db:      db,
		dialect: dialect,
	}
}

// CreateETLLogTable создает таблицу для логирования ETL процесса, если она не существует
func (r *SQLETLLogRepository) CreateETLLogTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.RunLogDDL()); err != nil {
		return fmt.Errorf("ошибка при создании таблицы %s: %w", warehouse.TableETLRunLog, err)
	}
	return nil
}

// CreateLogEntry создает новую запись о запуске ETL
func (r *SQLETLLogRepository) CreateLogEntry(ctx context.Context, runID string, startTime time.Time) error {
	query := r.dialect.Rebind(`INSERT INTO etl_run_log (run_id, start_time, status) VALUES (?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, runID, normalizeTime(startTime), RunStatusInProgress); err != nil {
		return fmt.Errorf("ошибка при создании записи о запуске ETL: %w", err)
	}
	return nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntrySuccess(ctx context.Context, stats *RunStats, endTime time.Time, reportPath string) error {
	return r.finish(ctx, stats, endTime, RunStatusSuccess, reportPath, "")
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntryFailure(ctx context.Context, stats *RunStats, endTime time.Time, reportPath, errorMessage string) error {
	return r.finish(ctx, stats, endTime, RunStatusFailed, reportPath, errorMessage)
}

func (r *SQLETLLogRepository) finish(ctx context.Context, stats *RunStats, endTime time.Time, status, reportPath, errorMessage string) error {
	query := r.dialect.Rebind(`
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = ?,
		records_processed = ?,
		records_valid = ?,
		records_quarantined = ?,
		duplicates_dropped = ?,
		facts_loaded = ?,
		facts_skipped = ?,
		facts_unresolved = ?,
		facts_rejected = ?,
		report_path = ?,
		error_message = ?,
		execution_time_seconds = ?
	WHERE run_id = ?`)

	// Рассчитываем время выполнения в секундах
	executionTime := endTime.Sub(stats.StartTime).Seconds()

	res, err := r.db.ExecContext(ctx, query,
		normalizeTime(endTime),
		status,
		stats.RecordsProcessed,
		stats.ValidRecords,
		stats.QuarantinedRecords,
		stats.DuplicatesDropped,
		stats.FactsLoaded,
		stats.FactsSkipped,
		stats.FactsUnresolved,
		stats.FactsRejected,
		nullString(reportPath),
		nullString(errorMessage),
		executionTime,
		stats.RunID,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("запись о запуске %s не найдена", stats.RunID)
	}
	return nil
}

// GetRun возвращает запуск по идентификатору
func (r *SQLETLLogRepository) GetRun(ctx context.Context, runID string) (*ETLRunLog, error) {
	query := r.dialect.Rebind(`SELECT ` + runLogColumns + ` FROM etl_run_log WHERE run_id = ?`)
	log, err := scanRunLog(r.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении запуска %s: %w", runID, err)
	}
	return log, nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *SQLETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	log, err := r.lastWithStatus(ctx, RunStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении информации о последнем успешном запуске ETL: %w", err)
	}
	return log, nil
}

// GetLatestRun возвращает самый поздний по времени начала запуск
func (r *SQLETLLogRepository) GetLatestRun(ctx context.Context) (*ETLRunLog, error) {
	query := `SELECT ` + runLogColumns + ` FROM etl_run_log ORDER BY start_time DESC LIMIT 1`
	log, err := scanRunLog(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении последнего запуска ETL: %w", err)
	}
	return log, nil
}

func (r *SQLETLLogRepository) lastWithStatus(ctx context.Context, status string) (*ETLRunLog, error) {
	query := r.dialect.Rebind(`SELECT ` + runLogColumns + `
	FROM etl_run_log
	WHERE status = ?
	ORDER BY start_time DESC
	LIMIT 1`)

	log, err := scanRunLog(r.db.QueryRowContext(ctx, query, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Нет запусков с таким статусом
	}
	return log, err
}

// GetETLRunStats получает статистику о запусках ETL за определенный период
func (r *SQLETLLogRepository) GetETLRunStats(ctx context.Context, days int) ([]ETLRunLog, error) {
	query := r.dialect.Rebind(`SELECT ` + runLogColumns + `
	FROM etl_run_log
	WHERE start_time >= ?
	ORDER BY start_time DESC`)

	since := normalizeTime(time.Now().AddDate(0, 0, -days))
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}
	defer rows.Close()

	logs := []ETLRunLog{}
	for rows.Next() {
		log, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи о запуске ETL: %w", err)
		}
		logs = append(logs, *log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по записям о запусках ETL: %w", err)
	}

	return logs, nil
}

// GetETLStateMonitor получает информацию о текущем состоянии ETL процесса
func (r *SQLETLLogRepository) GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error) {
	lastSuccessful, err := r.GetLastSuccessfulRun(ctx)
	if err != nil {
		return nil, err
	}

	lastFailed, err := r.lastWithStatus(ctx, RunStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении информации о последнем неудачном запуске ETL: %w", err)
	}

	// Текущий запуск: время выполнения считается от начала до текущего момента
	currentRun, err := r.lastWithStatus(ctx, RunStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении информации о текущем запуске ETL: %w", err)
	}
	if currentRun != nil {
		currentRun.ExecutionTimeSeconds = time.Since(currentRun.StartTime).Seconds()
	}

	// Общая статистика запусков
	var totalSuccess, totalFailed, totalRecords, totalFacts sql.NullInt64
	var avgExecutionTime sql.NullFloat64

	err = r.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			AVG(CASE WHEN status = 'success' THEN execution_time_seconds ELSE NULL END),
			SUM(CASE WHEN status = 'success' THEN records_processed ELSE 0 END),
			SUM(CASE WHEN status = 'success' THEN facts_loaded ELSE 0 END)
		FROM etl_run_log
	`).Scan(&totalSuccess, &totalFailed, &avgExecutionTime, &totalRecords, &totalFacts)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}

	return &ETLStateMonitor{
		LastSuccessfulRun:       lastSuccessful,
		LastFailedRun:           lastFailed,
		CurrentRun:              currentRun,
		TotalSuccessfulRuns:     int(totalSuccess.Int64),
		TotalFailedRuns:         int(totalFailed.Int64),
		AvgExecutionTimeSeconds: avgExecutionTime.Float64,
		TotalRecordsProcessed:   int(totalRecords.Int64),
		TotalFactsLoaded:        int(totalFacts.Int64),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunLog(row rowScanner) (*ETLRunLog, error) {
	var log ETLRunLog
	var endTime sql.NullTime
	err := row.Scan(
		&log.RunID, &log.StartTime, &endTime, &log.Status,
		&log.RecordsProcessed, &log.RecordsValid, &log.RecordsQuarantined, &log.DuplicatesDropped,
		&log.FactsLoaded, &log.FactsSkipped, &log.FactsUnresolved, &log.FactsRejected,
		&log.ReportPath, &log.ErrorMessage, &log.ExecutionTimeSeconds,
	)
	if err != nil {
		return nil, err
	}
	log.StartTime = log.StartTime.UTC()
	if endTime.Valid {
		t := endTime.Time.UTC()
		log.EndTime = &t
	}
	return &log, nil
}

// normalizeTime приводит время к UTC с точностью до секунды,
// чтобы строковое сравнение в sqlite совпадало с хронологическим
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
