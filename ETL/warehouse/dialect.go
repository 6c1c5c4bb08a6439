// Package warehouse описывает SQL-диалекты хранилища и DDL звёздной схемы.
package warehouse

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect - поддерживаемый движок хранилища
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect проверяет имя диалекта из конфигурации
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	case "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("неизвестный диалект хранилища: %q", name)
	}
}

// DriverName возвращает имя драйвера database/sql
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	default:
		return string(d)
	}
}

// Rebind переписывает плейсхолдеры '?' в нумерованные для PostgreSQL
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertIfAbsent строит запрос "вставить, если натурального ключа нет".
// Существующая строка никогда не изменяется.
func (d Dialect) InsertIfAbsent(table string, columns []string, conflictColumn string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	switch d {
	case MySQL:
		// no-op update: RowsAffected = 0 для существующей строки
		query += fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s = %s", conflictColumn, conflictColumn)
	default:
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", conflictColumn)
	}
	return d.Rebind(query)
}

// LockingRead возвращает суффикс для чтения последней зафиксированной версии строки.
// В MySQL обычный SELECT внутри транзакции читает снимок и может не увидеть строку,
// вставленную параллельным запуском после начала снимка.
func (d Dialect) LockingRead() string {
	if d == MySQL {
		return " LOCK IN SHARE MODE"
	}
	return ""
}
