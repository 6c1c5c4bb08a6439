package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// Transformer координирует процесс преобразования сырых поездок
type Transformer struct {
	workers    int
	logger     *utils.ETLLogger
	classifier *AnomalyClassifier
	encoder    *FeatureEncoder
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(workers int, logger *utils.ETLLogger) *Transformer {
	return &Transformer{
		workers:    workers,
		logger:     logger,
		classifier: NewAnomalyClassifier(workers, logger),
		encoder:    NewFeatureEncoder(workers),
	}
}

// Transform выполняет полный процесс преобразования:
// метрики -> классификация -> признаки -> удаление дублей -> кандидаты измерений
func (t *Transformer) Transform(ctx context.Context, extracted *models.ExtractedData, stats *models.RunStats) (*models.TransformedData, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform (Преобразование данных)")
	stats.RecordsProcessed += len(extracted.Trips)

	// 1. Расчёт метрик
	enriched, err := mapConcurrently(ctx, t.workers, extracted.Trips, CalculateMetrics)
	if err != nil {
		return nil, fmt.Errorf("ошибка при расчёте метрик: %w", err)
	}

	// 2. Классификация аномалий
	valid, quarantined, err := t.classifier.Partition(ctx, enriched, stats)
	if err != nil {
		return nil, fmt.Errorf("ошибка при классификации аномалий: %w", err)
	}
	t.logger.Debug("Классификация: валидных %d, в карантине %d", len(valid), len(quarantined))

	// 3. Временные и категориальные признаки
	encoded, err := t.encoder.EncodeAll(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("ошибка при кодировании признаков: %w", err)
	}

	// 4. Удаление повторяющихся поездок
	encoded, dropped := DropDuplicateTrips(encoded)
	stats.DuplicatesDropped += dropped
	if dropped > 0 {
		t.logger.Warn("Удалено повторяющихся поездок: %d", dropped)
	}

	// 5. Кандидаты измерений
	candidates := NewDimensionBuilder(extracted.Zones).Build(encoded)
	t.logger.Debug("Кандидаты измерений: время %d, локации %d, оплата %d",
		len(candidates.Times), len(candidates.Locations), len(candidates.Payments))

	t.logger.Info("Фаза Transform завершена. Длительность: %v", time.Since(startTime))
	return &models.TransformedData{
		Valid:       encoded,
		Quarantined: quarantined,
		Candidates:  candidates,
	}, nil
}
