package models

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

func newRunLog(t *testing.T) *SQLETLLogRepository {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLETLLogRepository(db, warehouse.SQLite)
	if err := repo.CreateETLLogTable(context.Background()); err != nil {
		t.Fatalf("CreateETLLogTable: %v", err)
	}
	// повторное создание таблицы не является ошибкой
	if err := repo.CreateETLLogTable(context.Background()); err != nil {
		t.Fatalf("CreateETLLogTable twice: %v", err)
	}
	return repo
}

func TestRunLogLifecycle(t *testing.T) {
	repo := newRunLog(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Minute)
	stats := NewRunStats("run-ok", start)
	if err := repo.CreateLogEntry(ctx, stats.RunID, start); err != nil {
		t.Fatalf("CreateLogEntry: %v", err)
	}

	run, err := repo.GetRun(ctx, "run-ok")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run == nil || run.Status != RunStatusInProgress || run.EndTime != nil {
		t.Fatalf("fresh run = %+v", run)
	}

	state, err := repo.GetETLStateMonitor(ctx)
	if err != nil {
		t.Fatalf("GetETLStateMonitor: %v", err)
	}
	if state.CurrentRun == nil || state.CurrentRun.ExecutionTimeSeconds < 59 {
		t.Errorf("current run = %+v", state.CurrentRun)
	}

	stats.RecordsProcessed = 6
	stats.ValidRecords = 4
	stats.QuarantinedRecords = 2
	stats.FactsLoaded = 2
	if err := repo.UpdateLogEntrySuccess(ctx, stats, time.Now(), "/tmp/report.json"); err != nil {
		t.Fatalf("UpdateLogEntrySuccess: %v", err)
	}

	run, err = repo.GetRun(ctx, "run-ok")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusSuccess || run.EndTime == nil || run.ReportPath != "/tmp/report.json" {
		t.Errorf("finished run = %+v", run)
	}
	if run.RecordsProcessed != 6 || run.RecordsQuarantined != 2 || run.FactsLoaded != 2 {
		t.Errorf("counters = %+v", run)
	}
	if run.ExecutionTimeSeconds < 59 {
		t.Errorf("execution time = %v", run.ExecutionTimeSeconds)
	}

	failed := NewRunStats("run-failed", time.Now())
	if err := repo.CreateLogEntry(ctx, failed.RunID, failed.StartTime); err != nil {
		t.Fatal(err)
	}
	failed.RecordsProcessed = 3
	if err := repo.UpdateLogEntryFailure(ctx, failed, time.Now(), "", "warehouse unavailable"); err != nil {
		t.Fatalf("UpdateLogEntryFailure: %v", err)
	}

	latest, err := repo.GetLatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.RunID != "run-failed" || latest.ErrorMessage != "warehouse unavailable" {
		t.Errorf("latest = %+v", latest)
	}
	if latest.ReportPath != "" {
		t.Errorf("report path = %q, want empty", latest.ReportPath)
	}

	state, err = repo.GetETLStateMonitor(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.TotalSuccessfulRuns != 1 || state.TotalFailedRuns != 1 || state.CurrentRun != nil {
		t.Errorf("state = %+v", state)
	}
	if state.TotalRecordsProcessed != 6 || state.TotalFactsLoaded != 2 {
		t.Errorf("totals = %d/%d", state.TotalRecordsProcessed, state.TotalFactsLoaded)
	}
	if state.LastSuccessfulRun == nil || state.LastSuccessfulRun.RunID != "run-ok" {
		t.Errorf("last successful = %+v", state.LastSuccessfulRun)
	}

	runs, err := repo.GetETLRunStats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-failed" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunLogMissing(t *testing.T) {
	repo := newRunLog(t)
	ctx := context.Background()

	if run, err := repo.GetRun(ctx, "nope"); err != nil || run != nil {
		t.Errorf("GetRun = %v, %v", run, err)
	}
	if run, err := repo.GetLatestRun(ctx); err != nil || run != nil {
		t.Errorf("GetLatestRun = %v, %v", run, err)
	}

	state, err := repo.GetETLStateMonitor(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.LastSuccessfulRun != nil || state.TotalSuccessfulRuns != 0 {
		t.Errorf("empty state = %+v", state)
	}

	err = repo.UpdateLogEntrySuccess(ctx, NewRunStats("nope", time.Now()), time.Now(), "")
	if err == nil {
		t.Error("updating an unknown run must fail")
	}
}

func TestRunLogWindow(t *testing.T) {
	repo := newRunLog(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -10)
	if err := repo.CreateLogEntry(ctx, "old", old); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateLogEntry(ctx, "new", time.Now()); err != nil {
		t.Fatal(err)
	}

	runs, err := repo.GetETLRunStats(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].RunID != "new" {
		t.Errorf("runs in window = %+v", runs)
	}
}
