package load

import (
	"context"
	"errors"
	"testing"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

// countingStore выдаёт ключи по порядку и считает обращения
type countingStore struct {
	calls  int
	seen   []int
	nextPK int64
}

func (s *countingStore) EnsureTimes(_ context.Context, c []models.TimeCandidate) (map[models.TimeKey]int64, int, error) {
	s.calls++
	keys := make(map[models.TimeKey]int64)
	for _, x := range c {
		s.nextPK++
		keys[x.Key] = s.nextPK
	}
	return keys, len(c), nil
}

func (s *countingStore) EnsureLocations(_ context.Context, c []models.LocationCandidate) (map[int]int64, int, error) {
	s.calls++
	keys := make(map[int]int64)
	for _, x := range c {
		s.nextPK++
		s.seen = append(s.seen, x.LocationID)
		keys[x.LocationID] = s.nextPK
	}
	return keys, len(c), nil
}

func (s *countingStore) EnsurePayments(_ context.Context, c []models.PaymentCandidate) (map[string]int64, int, error) {
	s.calls++
	keys := make(map[string]int64)
	for _, x := range c {
		s.nextPK++
		keys[x.PaymentType] = s.nextPK
	}
	return keys, len(c), nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string) (int64, bool, error) {
	return 0, false, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, string, int64) error {
	return errors.New("connection refused")
}

func TestCachedDimensionStore(t *testing.T) {
	inner := &countingStore{}
	cache := NewMemoryKeyCache()
	store := NewCachedDimensionStore(inner, cache, utils.NewNopLogger())
	ctx := context.Background()

	first, inserted, err := store.EnsureLocations(ctx, []models.LocationCandidate{{LocationID: 1}, {LocationID: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 2 || cache.Len() != 2 {
		t.Fatalf("inserted=%d cached=%d, want 2/2", inserted, cache.Len())
	}

	second, inserted, err := store.EnsureLocations(ctx, []models.LocationCandidate{{LocationID: 2}, {LocationID: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}
	if second[2] != first[2] {
		t.Errorf("cached pk %d, want %d", second[2], first[2])
	}
	if got := inner.seen; len(got) != 3 || got[2] != 3 {
		t.Errorf("store saw %v, want [1 2 3]", got)
	}

	// всё уже в кэше: хранилище не вызывается
	calls := inner.calls
	if _, _, err := store.EnsureLocations(ctx, []models.LocationCandidate{{LocationID: 1}, {LocationID: 3}}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != calls {
		t.Errorf("store called on full cache hit")
	}
}

func TestCachedDimensionStoreFallsBack(t *testing.T) {
	inner := &countingStore{}
	store := NewCachedDimensionStore(inner, brokenCache{}, utils.NewNopLogger())

	keys, inserted, err := store.EnsurePayments(context.Background(), []models.PaymentCandidate{{PaymentType: "Cash"}})
	if err != nil {
		t.Fatalf("cache errors must not fail the load: %v", err)
	}
	if inserted != 1 || keys["Cash"] == 0 {
		t.Errorf("keys=%v inserted=%d", keys, inserted)
	}
}

func TestCachedStoreOverSQL(t *testing.T) {
	db := newTestDB(t)
	cache := NewMemoryKeyCache()
	store := NewCachedDimensionStore(NewSQLDimensionStore(db, warehouse.SQLite, 10, utils.NewNopLogger()), cache, utils.NewNopLogger())
	ctx := context.Background()

	candidates := []models.TimeCandidate{{Key: 1705307400, Hour: 8, DayOfWeek: "Monday", TimePeriod: "Morning"}}
	first, _, err := store.EnsureTimes(ctx, candidates)
	if err != nil {
		t.Fatal(err)
	}
	pk, ok, _ := cache.Get(ctx, models.DimensionTime, "1705307400")
	if !ok || pk != first[1705307400] {
		t.Errorf("cache holds %d (%v), want %d", pk, ok, first[1705307400])
	}
}
