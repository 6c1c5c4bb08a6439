package config

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

// Warehouse содержит подключение к хранилищу и его диалект
type Warehouse struct {
	DB      *sql.DB
	Dialect warehouse.Dialect
}

// BuildDSN формирует строку подключения для выбранного диалекта
func (c DatabaseConfig) BuildDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	dialect, err := warehouse.ParseDialect(c.Dialect)
	if err != nil {
		return "", err
	}

	switch dialect {
	case warehouse.MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		cfg.DBName = c.DBName
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	case warehouse.Postgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.DBName,
		}
		return u.String(), nil
	default:
		if c.Path == "" {
			return "", fmt.Errorf("для sqlite необходимо указать warehouse.path")
		}
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", c.Path), nil
	}
}

// ConnectWarehouse устанавливает подключение к хранилищу
func ConnectWarehouse(ctx context.Context, config DatabaseConfig) (*Warehouse, error) {
	dialect, err := warehouse.ParseDialect(config.Dialect)
	if err != nil {
		return nil, err
	}

	dsn, err := config.BuildDSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	// Настройка параметров подключения
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	if dialect == warehouse.SQLite {
		// sqlite допускает только одного писателя
		db.SetMaxOpenConns(1)
	}

	// Проверка подключения
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с хранилищем: %w", err)
	}

	return &Warehouse{DB: db, Dialect: dialect}, nil
}

// Close закрывает подключение к хранилищу
func (w *Warehouse) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	if err := w.DB.Close(); err != nil {
		return fmt.Errorf("ошибка при закрытии соединения с хранилищем: %w", err)
	}
	return nil
}
