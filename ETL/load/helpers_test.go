package load

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

// newTestDB открывает sqlite в памяти со звёздной схемой
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// база в памяти живёт, пока жив её единственный коннект
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := warehouse.EnsureSchema(context.Background(), db, warehouse.SQLite); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
