package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BatchSize != 100 || cfg.Warehouse.Dialect != "postgres" || cfg.RunInterval != time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  dialect: sqlite
  path: /tmp/taxi.db
input_path: data/trips.csv
run_interval: 30m
batch_size: 250
key_cache:
  backend: memory
api:
  poll_interval: 2s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Warehouse.Dialect != "sqlite" || cfg.InputPath != "data/trips.csv" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RunInterval != 30*time.Minute || cfg.API.PollInterval != 2*time.Second {
		t.Errorf("durations = %v / %v", cfg.RunInterval, cfg.API.PollInterval)
	}
	// поля, которых нет в файле, остаются по умолчанию
	if cfg.BatchSize != 250 || cfg.Workers != 4 || cfg.API.Listen != ":8080" {
		t.Errorf("merged = %+v", cfg)
	}

	dsn, err := cfg.Warehouse.BuildDSN()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dsn, "file:/tmp/taxi.db?") || !strings.Contains(dsn, "foreign_keys(1)") {
		t.Errorf("dsn = %q", dsn)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("ETL_DB_PASSWORD", "s3cret")
	t.Setenv("ETL_REDIS_ADDR", "redis:6379")
	t.Setenv("ETL_WORKERS", "8")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Warehouse.Password != "s3cret" || cfg.Workers != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.KeyCache.Backend != "redis" || cfg.KeyCache.RedisAddr != "redis:6379" {
		t.Errorf("key cache = %+v", cfg.KeyCache)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"dialect", "warehouse:\n  dialect: oracle\n", "oracle"},
		{"batch size", "batch_size: 0\n", "batch_size"},
		{"workers", "workers: -1\n", "workers"},
		{"redis without addr", "key_cache:\n  backend: redis\n", "redis_addr"},
		{"unknown cache", "key_cache:\n  backend: memcached\n", "memcached"},
		{"bad yaml", "batch_size: [\n", "ошибка разбора"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must fail")
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{"explicit", DatabaseConfig{Dialect: "mysql", DSN: "user@/db"}, "user@/db"},
		{"postgres", DatabaseConfig{Dialect: "postgres", Host: "db", Port: 5432, User: "etl", Password: "pw", DBName: "taxi"},
			"postgres://etl:pw@db:5432/taxi"},
		{"mysql", DatabaseConfig{Dialect: "mysql", Host: "db", Port: 3306, User: "etl", Password: "pw", DBName: "taxi"},
			"etl:pw@tcp(db:3306)/taxi?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.BuildDSN()
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("BuildDSN() = %q, want prefix %q", got, tt.want)
			}
		})
	}

	if _, err := (DatabaseConfig{Dialect: "sqlite"}).BuildDSN(); err == nil {
		t.Error("sqlite without path must fail")
	}
}
