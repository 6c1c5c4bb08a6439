package load

import (
	"context"
	"fmt"
	"sort"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// Reconciler загружает измерения и сопоставляет каждой поездке суррогатные ключи
type Reconciler struct {
	store  DimensionStore
	logger *utils.ETLLogger
}

// NewReconciler создает новый экземпляр Reconciler
func NewReconciler(store DimensionStore, logger *utils.ETLLogger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// UpsertDimensions выполняет get-or-create для всех кандидатов измерений.
// Строки, зафиксированные до ошибки, учитываются в stats.
func (r *Reconciler) UpsertDimensions(ctx context.Context, candidates models.DimensionCandidates, stats *models.RunStats) (*KeyMaps, error) {
	times, inserted, err := r.store.EnsureTimes(ctx, candidates.Times)
	stats.RecordDimension(models.DimensionTime, len(candidates.Times), inserted)
	if err != nil {
		return nil, fmt.Errorf("ошибка при загрузке измерения времени: %w", err)
	}

	locations, inserted, err := r.store.EnsureLocations(ctx, candidates.Locations)
	stats.RecordDimension(models.DimensionLocation, len(candidates.Locations), inserted)
	if err != nil {
		return nil, fmt.Errorf("ошибка при загрузке измерения локаций: %w", err)
	}

	payments, inserted, err := r.store.EnsurePayments(ctx, candidates.Payments)
	stats.RecordDimension(models.DimensionPayment, len(candidates.Payments), inserted)
	if err != nil {
		return nil, fmt.Errorf("ошибка при загрузке измерения оплаты: %w", err)
	}

	for _, name := range []string{models.DimensionTime, models.DimensionLocation, models.DimensionPayment} {
		d := stats.Dimensions[name]
		r.logger.Info("Измерение %s: кандидатов %d, вставлено новых %d", name, d.Candidates, d.Inserted)
	}

	return &KeyMaps{Times: times, Locations: locations, Payments: payments}, nil
}

// Resolve сопоставляет поездкам суррогатные ключи.
// Поездка без хотя бы одного ключа не попадает в результат и учитывается как неразрешённая.
func (r *Reconciler) Resolve(trips []models.EncodedTrip, keys *KeyMaps, stats *models.RunStats) []models.ResolvedFact {
	facts := make([]models.ResolvedFact, 0, len(trips))
	missing := make(map[string]int)
	var samples []string

	for _, t := range trips {
		timePK, okTime := keys.Times[models.NewTimeKey(t.PickupAt)]
		puPK, okPU := keys.Locations[t.PickupLocationID]
		doPK, okDO := keys.Locations[t.DropoffLocationID]
		payPK, okPay := keys.Payments[t.PaymentLabel]

		if !okTime {
			missing[models.DimensionTime]++
		}
		if !okPU || !okDO {
			missing[models.DimensionLocation]++
		}
		if !okPay {
			missing[models.DimensionPayment]++
		}
		if !(okTime && okPU && okDO && okPay) {
			stats.FactsUnresolved++
			if len(samples) < 5 {
				samples = append(samples, t.TripKey())
			}
			continue
		}

		facts = append(facts, models.ResolvedFact{
			TimePK:          timePK,
			PickupLocPK:     puPK,
			DropoffLocPK:    doPK,
			PaymentPK:       payPK,
			PassengerCount:  t.PassengerCount,
			TripDistance:    t.TripDistance,
			FareAmount:      t.FareAmount,
			TotalAmount:     t.TotalAmount,
			DurationMinutes: t.DurationMinutes,
			AvgSpeed:        t.AvgSpeed,
			TripKey:         t.TripKey(),
			RunID:           stats.RunID,
		})
	}
	stats.FactsResolved += len(facts)

	if len(missing) > 0 {
		dims := make([]string, 0, len(missing))
		for name := range missing {
			dims = append(dims, name)
		}
		sort.Strings(dims)
		for _, name := range dims {
			r.logger.Warnw("Не найден ключ измерения", "dimension", name, "trips", missing[name])
		}
		r.logger.Debug("Примеры неразрешённых поездок: %v", samples)
	}

	return facts
}

// Reconcile загружает измерения и возвращает факты с разрешёнными ключами
func (r *Reconciler) Reconcile(ctx context.Context, data *models.TransformedData, stats *models.RunStats) ([]models.ResolvedFact, error) {
	keys, err := r.UpsertDimensions(ctx, data.Candidates, stats)
	if err != nil {
		return nil, err
	}
	facts := r.Resolve(data.Valid, keys, stats)
	r.logger.Info("Сопоставление ключей: разрешено %d, не разрешено %d", len(facts), stats.FactsUnresolved)
	return facts, nil
}
