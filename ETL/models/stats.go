package models

import (
	"sort"
	"time"
)

// DimensionLoadStats - статистика загрузки одного измерения
type DimensionLoadStats struct {
	Candidates int `json:"candidates"`
	Inserted   int `json:"inserted"`
}

// RunStats накапливает статистику одного запуска ETL.
// Передаётся по указателю через все этапы конвейера.
type RunStats struct {
	RunID     string
	StartTime time.Time

	RecordsProcessed   int
	ValidRecords       int
	QuarantinedRecords int
	RejectionCounts    map[RejectionReason]int
	DuplicatesDropped  int

	Dimensions map[string]DimensionLoadStats

	FactsResolved   int
	FactsUnresolved int
	FactsRejected   int
	FactsLoaded     int
	FactsSkipped    int
}

// NewRunStats создает пустой накопитель для запуска
func NewRunStats(runID string, startTime time.Time) *RunStats {
	return &RunStats{
		RunID:           runID,
		StartTime:       startTime,
		RejectionCounts: make(map[RejectionReason]int),
		Dimensions:      make(map[string]DimensionLoadStats),
	}
}

// AddRejection учитывает запись, отправленную в карантин
func (s *RunStats) AddRejection(reason RejectionReason) {
	s.RejectionCounts[reason]++
	s.QuarantinedRecords++
}

// RecordDimension сохраняет статистику загрузки измерения
func (s *RunStats) RecordDimension(name string, candidates, inserted int) {
	s.Dimensions[name] = DimensionLoadStats{Candidates: candidates, Inserted: inserted}
}

// AnomalyRate возвращает долю записей в карантине в процентах
func (s *RunStats) AnomalyRate() float64 {
	if s.RecordsProcessed == 0 {
		return 0
	}
	return float64(s.QuarantinedRecords) / float64(s.RecordsProcessed) * 100
}

// RejectionDetails возвращает счётчики причин в виде строковых ключей
func (s *RunStats) RejectionDetails() map[string]int {
	details := make(map[string]int, len(s.RejectionCounts))
	for reason, count := range s.RejectionCounts {
		details[string(reason)] = count
	}
	return details
}

// SortedReasons возвращает причины в алфавитном порядке (для стабильного вывода в лог)
func (s *RunStats) SortedReasons() []RejectionReason {
	reasons := make([]RejectionReason, 0, len(s.RejectionCounts))
	for reason := range s.RejectionCounts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
