package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// Имена таблиц хранилища
const (
	TableDimTime     = "dim_time"
	TableDimLocation = "dim_location"
	TableDimPayment  = "dim_payment"
	TableFactTrips   = "fact_trips"
	TableETLRunLog   = "etl_run_log"
)

type ddl struct {
	serialPK   string
	bigSerial  string
	timestamp  string
	tableTrail string
}

func (d Dialect) ddl() ddl {
	switch d {
	case MySQL:
		return ddl{
			serialPK:   "INT AUTO_INCREMENT PRIMARY KEY",
			bigSerial:  "BIGINT AUTO_INCREMENT PRIMARY KEY",
			timestamp:  "DATETIME",
			tableTrail: " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		}
	case Postgres:
		return ddl{
			serialPK:  "SERIAL PRIMARY KEY",
			bigSerial: "BIGSERIAL PRIMARY KEY",
			timestamp: "TIMESTAMP",
		}
	default:
		return ddl{
			serialPK:  "INTEGER PRIMARY KEY AUTOINCREMENT",
			bigSerial: "INTEGER PRIMARY KEY AUTOINCREMENT",
			timestamp: "DATETIME",
		}
	}
}

// StarSchemaDDL возвращает DDL таблиц измерений и фактов.
// Таблицы создаются только если их нет: повторный запуск не теряет данных.
func (d Dialect) StarSchemaDDL() []string {
	t := d.ddl()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			time_pk %s,
			datetime %s UNIQUE NOT NULL,
			hour SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
			day_of_week VARCHAR(9) NOT NULL,
			time_period VARCHAR(20) NOT NULL
		)%s`, TableDimTime, t.serialPK, t.timestamp, t.tableTrail),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			location_pk %s,
			location_id INTEGER UNIQUE NOT NULL,
			borough VARCHAR(50) NOT NULL DEFAULT 'Unknown'
		)%s`, TableDimLocation, t.serialPK, t.tableTrail),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			payment_pk %s,
			payment_type VARCHAR(20) UNIQUE NOT NULL
		)%s`, TableDimPayment, t.serialPK, t.tableTrail),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			trip_id %s,
			time_pk INTEGER NOT NULL REFERENCES %s(time_pk),
			pickup_loc_pk INTEGER NOT NULL REFERENCES %s(location_pk),
			dropoff_loc_pk INTEGER NOT NULL REFERENCES %s(location_pk),
			payment_pk INTEGER NOT NULL REFERENCES %s(payment_pk),
			passenger_count SMALLINT CHECK (passenger_count > 0),
			trip_distance NUMERIC(8,2) CHECK (trip_distance > 0),
			fare_amount NUMERIC(8,2) CHECK (fare_amount > 0),
			total_amount NUMERIC(8,2) CHECK (total_amount > 0),
			duration_min NUMERIC(8,2) CHECK (duration_min > 0),
			avg_speed NUMERIC(8,2) CHECK (avg_speed > 0),
			trip_key VARCHAR(96) UNIQUE NOT NULL,
			run_id VARCHAR(36) NOT NULL
		)%s`, TableFactTrips, t.bigSerial, TableDimTime, TableDimLocation, TableDimLocation, TableDimPayment, t.tableTrail),
	}
}

// RunLogDDL возвращает DDL журнала запусков ETL
func (d Dialect) RunLogDDL() string {
	t := d.ddl()
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id VARCHAR(36) PRIMARY KEY,
		start_time %s NOT NULL,
		end_time %s NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'in_progress',
		records_processed INTEGER DEFAULT 0,
		records_valid INTEGER DEFAULT 0,
		records_quarantined INTEGER DEFAULT 0,
		duplicates_dropped INTEGER DEFAULT 0,
		facts_loaded INTEGER DEFAULT 0,
		facts_skipped INTEGER DEFAULT 0,
		facts_unresolved INTEGER DEFAULT 0,
		facts_rejected INTEGER DEFAULT 0,
		report_path VARCHAR(512) NULL,
		error_message TEXT,
		execution_time_seconds FLOAT
	)%s`, TableETLRunLog, t.timestamp, t.timestamp, t.tableTrail)
}

// EnsureSchema создает таблицы звёздной схемы, если они ещё не существуют
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range d.StarSchemaDDL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка при создании звёздной схемы: %w", err)
		}
	}
	return nil
}
