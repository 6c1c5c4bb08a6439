package load

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// LoadManager отвечает за управление процессом загрузки данных в хранилище
type LoadManager struct {
	reconciler *Reconciler
	facts      *FactLoader
	logger     *utils.ETLLogger
}

// NewLoadManager создает новый экземпляр LoadManager
func NewLoadManager(store DimensionStore, facts *FactLoader, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		reconciler: NewReconciler(store, logger),
		facts:      facts,
		logger:     logger,
	}
}

// Load выполняет фазу загрузки данных ETL-процесса.
// Принимает обработанные данные из фазы Transform.
func (m *LoadManager) Load(ctx context.Context, data *models.TransformedData, stats *models.RunStats) error {
	startTime := time.Now()
	m.logger.Info("Начало фазы Load (Загрузка данных)")

	// 1. Измерения и сопоставление ключей
	facts, err := m.reconciler.Reconcile(ctx, data, stats)
	if err != nil {
		m.logger.Error("Ошибка при сопоставлении ключей: %v", err)
		return fmt.Errorf("ошибка при загрузке измерений: %w", err)
	}

	// 2. Факты поездок
	if len(facts) > 0 {
		if err := m.facts.LoadFacts(ctx, facts, stats); err != nil {
			m.logger.Error("Ошибка при загрузке фактов поездок: %v", err)
			return fmt.Errorf("ошибка при загрузке фактов поездок: %w", err)
		}
	}

	m.logger.Info("Фаза Load завершена. Длительность: %v", time.Since(startTime))
	return nil
}
