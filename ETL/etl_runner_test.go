package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/artifacts"
	"github.com/LilVoxy/taxi_warehouse/ETL/config"
	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

const tripsCSV = `VendorID,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,RatecodeID,PULocationID,DOLocationID,payment_type,fare_amount,total_amount
1,2024-01-15 08:30:00,2024-01-15 08:45:00,1,3.0,1,100,200,1,12.5,15.0
2,2024-01-15 18:00:00,2024-01-15 18:30:00,1,10,2,100,100,2,30,35
1,2024-01-15 08:30:00,2024-01-15 08:45:00,1,3.0,1,100,200,1,12.5,15.0
1,2024-01-15 10:00:00,2024-01-15 09:50:00,1,3.0,1,100,200,1,12.5,15.0
1,2024-01-15 11:00:00,2024-01-15 11:15:00,1,3.0,1,100,200,1,abc,15.0
1,2024-01-15 12:00:00,2024-01-15 12:20:00,1,2.0,1,200,300,3,10,0
`

const zonesCSV = `LocationID,Borough,Zone,service_zone
100,Manhattan,Midtown,Yellow Zone
200,Queens,Astoria,Boro Zone
`

func testConfig(t *testing.T) config.ETLConfig {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "trips.csv")
	zones := filepath.Join(dir, "zones.csv")
	if err := os.WriteFile(input, []byte(tripsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(zones, []byte(zonesCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultETLConfig
	cfg.Warehouse = config.DatabaseConfig{Dialect: "sqlite", Path: filepath.Join(dir, "taxi.db")}
	cfg.InputPath = input
	cfg.ZoneLookupPath = zones
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.BatchSize = 2
	cfg.DimensionChunkSize = 2
	cfg.Workers = 2
	cfg.KeyCache = config.KeyCacheConfig{Backend: "memory"}
	cfg.LogFile = ""
	return cfg
}

func newRunner(t *testing.T, cfg config.ETLConfig) *ETLRunner {
	t.Helper()
	runner, err := NewETLRunner(context.Background(), cfg, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewETLRunner: %v", err)
	}
	t.Cleanup(func() { runner.Close() })
	return runner
}

func TestExecuteETL(t *testing.T) {
	cfg := testConfig(t)
	runner := newRunner(t, cfg)
	ctx := context.Background()

	stats, err := runner.ExecuteETL(ctx)
	if err != nil {
		t.Fatalf("ExecuteETL: %v", err)
	}

	checks := []struct {
		name      string
		got, want int
	}{
		{"processed", stats.RecordsProcessed, 6},
		{"quarantined", stats.QuarantinedRecords, 2},
		{"valid", stats.ValidRecords, 4},
		{"duplicates", stats.DuplicatesDropped, 1},
		{"resolved", stats.FactsResolved, 3},
		{"rejected", stats.FactsRejected, 1},
		{"loaded", stats.FactsLoaded, 2},
		{"unresolved", stats.FactsUnresolved, 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for name, d := range stats.Dimensions {
		if d.Candidates != 3 || d.Inserted != 3 {
			t.Errorf("dimension %s = %+v, want 3/3", name, d)
		}
	}
	if stats.RejectionCounts[models.ReasonInvalidDuration] != 1 || stats.RejectionCounts[models.ReasonMalformedRecord] != 1 {
		t.Errorf("rejections = %v", stats.RejectionCounts)
	}

	run, err := runner.etlLogRepo.GetRun(ctx, stats.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v, %v", run, err)
	}
	if run.Status != models.RunStatusSuccess || run.FactsLoaded != 2 || run.RecordsQuarantined != 2 {
		t.Errorf("run log = %+v", run)
	}

	report, err := artifacts.ReadReport(run.ReportPath)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if report.RunID != stats.RunID || report.AnomalyRate != "33.33%" || report.Artifacts == nil {
		t.Fatalf("report = %+v", report)
	}
	if report.Artifacts.Report != run.ReportPath {
		t.Errorf("report path = %q, want %q", report.Artifacts.Report, run.ReportPath)
	}
	if !strings.HasSuffix(report.Artifacts.Transformed, artifacts.CompressedSuffix) {
		t.Errorf("dataset not compressed: %s", report.Artifacts.Transformed)
	}

	var borough string
	err = runner.warehouse.DB.QueryRow("SELECT borough FROM dim_location WHERE location_id = 300").Scan(&borough)
	if err != nil || borough != models.UnknownBorough {
		t.Errorf("borough of zone 300 = %q, %v", borough, err)
	}

	// повторный запуск на тех же данных не меняет хранилище
	again, err := runner.ExecuteETL(ctx)
	if err != nil {
		t.Fatalf("second ExecuteETL: %v", err)
	}
	if again.RunID == stats.RunID {
		t.Error("run id reused")
	}
	if again.FactsLoaded != 0 || again.FactsSkipped != 2 {
		t.Errorf("second run loaded=%d skipped=%d, want 0/2", again.FactsLoaded, again.FactsSkipped)
	}
	for name, d := range again.Dimensions {
		if d.Inserted != 0 {
			t.Errorf("second run inserted %d rows into %s", d.Inserted, name)
		}
	}

	var facts int
	if err := runner.warehouse.DB.QueryRow("SELECT COUNT(*) FROM fact_trips").Scan(&facts); err != nil || facts != 2 {
		t.Errorf("fact_trips = %d, %v", facts, err)
	}

	state, err := runner.etlLogRepo.GetETLStateMonitor(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.TotalSuccessfulRuns != 2 || state.TotalFactsLoaded != 2 {
		t.Errorf("state = %+v", state)
	}
}

func TestExecuteETLFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "missing.csv")
	runner := newRunner(t, cfg)
	ctx := context.Background()

	stats, err := runner.ExecuteETL(ctx)
	if err == nil {
		t.Fatal("expected extract failure")
	}

	run, err := runner.etlLogRepo.GetRun(ctx, stats.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v, %v", run, err)
	}
	if run.Status != models.RunStatusFailed || run.ErrorMessage == "" || run.EndTime == nil {
		t.Errorf("run log = %+v", run)
	}
}

func TestStartScheduler(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunInterval = time.Hour
	runner := newRunner(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.StartScheduler(ctx) }()

	// первый запуск выполняется сразу после старта планировщика
	deadline := time.Now().Add(10 * time.Second)
	for {
		run, err := runner.etlLogRepo.GetLastSuccessfulRun(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if run != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduled run did not complete")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("StartScheduler: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunUnknownMode(t *testing.T) {
	if err := run(context.Background(), "hourly", ""); !errors.Is(err, errUnknownMode) {
		t.Errorf("err = %v, want errUnknownMode", err)
	}
}
