package load

import (
	"context"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// DimensionStore - контракт get-or-create для таблиц измерений.
// Каждый метод вставляет отсутствующие натуральные ключи, не трогая существующие строки,
// и возвращает суррогатный ключ для каждого кандидата и число реально вставленных строк.
type DimensionStore interface {
	EnsureTimes(ctx context.Context, candidates []models.TimeCandidate) (map[models.TimeKey]int64, int, error)
	EnsureLocations(ctx context.Context, candidates []models.LocationCandidate) (map[int]int64, int, error)
	EnsurePayments(ctx context.Context, candidates []models.PaymentCandidate) (map[string]int64, int, error)
}

// KeyMaps содержит соответствие натуральных ключей суррогатным для всех измерений
type KeyMaps struct {
	Times     map[models.TimeKey]int64
	Locations map[int]int64
	Payments  map[string]int64
}
