package models

import "time"

// TimeKey - каноническая форма натурального ключа измерения времени:
// настенное время посадки, усечённое до секунд и трактуемое как UTC.
// И построение измерения, и поиск суррогатных ключей используют только этот тип.
type TimeKey int64

// NewTimeKey приводит момент времени к каноническому ключу.
// Часовой пояс отбрасывается: учитываются только показания часов.
func NewTimeKey(t time.Time) TimeKey {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	return TimeKey(wall.Unix())
}

// Time возвращает момент времени в UTC
func (k TimeKey) Time() time.Time {
	return time.Unix(int64(k), 0).UTC()
}

func (k TimeKey) String() string {
	return k.Time().Format("2006-01-02 15:04:05")
}
