package models

import (
	"context"
	"time"
)

// Статусы запуска ETL
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// ETLRunLog представляет запись о запуске ETL процесса
type ETLRunLog struct {
	RunID                string     `json:"run_id"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	Status               string     `json:"status"`
	RecordsProcessed     int        `json:"records_processed"`
	RecordsValid         int        `json:"records_valid"`
	RecordsQuarantined   int        `json:"records_quarantined"`
	DuplicatesDropped    int        `json:"duplicates_dropped"`
	FactsLoaded          int        `json:"facts_loaded"`
	FactsSkipped         int        `json:"facts_skipped"`
	FactsUnresolved      int        `json:"facts_unresolved"`
	FactsRejected        int        `json:"facts_rejected"`
	ReportPath           string     `json:"report_path,omitempty"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64    `json:"execution_time_seconds"`
}

// ETLLogRepository представляет репозиторий для работы с логами ETL
type ETLLogRepository interface {
	// CreateETLLogTable создает таблицу журнала, если она не существует
	CreateETLLogTable(ctx context.Context) error

	// CreateLogEntry создает новую запись о запуске ETL
	CreateLogEntry(ctx context.Context, runID string, startTime time.Time) error

	// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
	UpdateLogEntrySuccess(ctx context.Context, stats *RunStats, endTime time.Time, reportPath string) error

	// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL.
	// Счётчики, накопленные до ошибки, тоже сохраняются.
	UpdateLogEntryFailure(ctx context.Context, stats *RunStats, endTime time.Time, reportPath, errorMessage string) error

	// GetRun возвращает запуск по идентификатору или nil, если его нет
	GetRun(ctx context.Context, runID string) (*ETLRunLog, error)

	// GetLatestRun возвращает самый поздний запуск или nil
	GetLatestRun(ctx context.Context) (*ETLRunLog, error)

	// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
	GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error)

	// GetETLRunStats получает запуски ETL за последние days дней
	GetETLRunStats(ctx context.Context, days int) ([]ETLRunLog, error)

	// GetETLStateMonitor получает сводку о состоянии ETL процесса
	GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error)
}

// ETLStateMonitor предоставляет информацию о текущем состоянии ETL процесса
type ETLStateMonitor struct {
	LastSuccessfulRun       *ETLRunLog `json:"last_successful_run"`
	LastFailedRun           *ETLRunLog `json:"last_failed_run,omitempty"`
	CurrentRun              *ETLRunLog `json:"current_run,omitempty"`
	TotalSuccessfulRuns     int        `json:"total_successful_runs"`
	TotalFailedRuns         int        `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64    `json:"avg_execution_time_seconds"`
	TotalRecordsProcessed   int        `json:"total_records_processed"` // Сумма обработанных записей по успешным запускам
	TotalFactsLoaded        int        `json:"total_facts_loaded"`
}
