package load

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// KeyCache хранит соответствие натуральных ключей измерений суррогатным
type KeyCache interface {
	Get(ctx context.Context, dimension, naturalKey string) (int64, bool, error)
	Set(ctx context.Context, dimension, naturalKey string, pk int64) error
}

// MemoryKeyCache - кэш ключей в памяти процесса
type MemoryKeyCache struct {
	mu   sync.RWMutex
	keys map[string]int64
}

// NewMemoryKeyCache создает пустой кэш в памяти
func NewMemoryKeyCache() *MemoryKeyCache {
	return &MemoryKeyCache{keys: make(map[string]int64)}
}

func (c *MemoryKeyCache) Get(_ context.Context, dimension, naturalKey string) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pk, ok := c.keys[cacheKey(dimension, naturalKey)]
	return pk, ok, nil
}

func (c *MemoryKeyCache) Set(_ context.Context, dimension, naturalKey string, pk int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[cacheKey(dimension, naturalKey)] = pk
	return nil
}

// Len возвращает количество закэшированных ключей
func (c *MemoryKeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// RedisKeyCache - общий для нескольких процессов кэш ключей в Redis
type RedisKeyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisKeyCache создает кэш поверх существующего клиента Redis.
// Нулевой ttl означает хранение без срока истечения.
func NewRedisKeyCache(client redis.UniversalClient, ttl time.Duration) *RedisKeyCache {
	return &RedisKeyCache{client: client, ttl: ttl}
}

func (c *RedisKeyCache) Get(ctx context.Context, dimension, naturalKey string) (int64, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(dimension, naturalKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения ключа из redis: %w", err)
	}
	return val, true, nil
}

func (c *RedisKeyCache) Set(ctx context.Context, dimension, naturalKey string, pk int64) error {
	if err := c.client.Set(ctx, cacheKey(dimension, naturalKey), pk, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи ключа в redis: %w", err)
	}
	return nil
}

func cacheKey(dimension, naturalKey string) string {
	return "dim:" + dimension + ":" + naturalKey
}

// CachedDimensionStore проверяет кэш перед обращением к хранилищу.
// Ошибки кэша не прерывают загрузку: запрос уходит в хранилище.
type CachedDimensionStore struct {
	store  DimensionStore
	cache  KeyCache
	logger *utils.ETLLogger
}

// NewCachedDimensionStore оборачивает store кэшем ключей
func NewCachedDimensionStore(store DimensionStore, cache KeyCache, logger *utils.ETLLogger) *CachedDimensionStore {
	return &CachedDimensionStore{store: store, cache: cache, logger: logger}
}

func (s *CachedDimensionStore) EnsureTimes(ctx context.Context, candidates []models.TimeCandidate) (map[models.TimeKey]int64, int, error) {
	return cachedEnsure(ctx, s, models.DimensionTime, candidates,
		func(c models.TimeCandidate) models.TimeKey { return c.Key },
		func(k models.TimeKey) string { return strconv.FormatInt(int64(k), 10) },
		s.store.EnsureTimes,
	)
}

func (s *CachedDimensionStore) EnsureLocations(ctx context.Context, candidates []models.LocationCandidate) (map[int]int64, int, error) {
	return cachedEnsure(ctx, s, models.DimensionLocation, candidates,
		func(c models.LocationCandidate) int { return c.LocationID },
		strconv.Itoa,
		s.store.EnsureLocations,
	)
}

func (s *CachedDimensionStore) EnsurePayments(ctx context.Context, candidates []models.PaymentCandidate) (map[string]int64, int, error) {
	return cachedEnsure(ctx, s, models.DimensionPayment, candidates,
		func(c models.PaymentCandidate) string { return c.PaymentType },
		func(k string) string { return k },
		s.store.EnsurePayments,
	)
}

func cachedEnsure[C any, K comparable](
	ctx context.Context,
	s *CachedDimensionStore,
	dimension string,
	candidates []C,
	naturalKey func(C) K,
	format func(K) string,
	ensure func(context.Context, []C) (map[K]int64, int, error),
) (map[K]int64, int, error) {
	keys := make(map[K]int64, len(candidates))
	var misses []C
	var cacheErr error

	for _, c := range candidates {
		k := naturalKey(c)
		pk, ok, err := s.cache.Get(ctx, dimension, format(k))
		if err != nil {
			cacheErr = err
		}
		if ok {
			keys[k] = pk
			continue
		}
		misses = append(misses, c)
	}

	inserted := 0
	if len(misses) > 0 {
		resolved, n, err := ensure(ctx, misses)
		if err != nil {
			return nil, n, err
		}
		inserted = n
		for k, pk := range resolved {
			keys[k] = pk
			if err := s.cache.Set(ctx, dimension, format(k), pk); err != nil {
				cacheErr = err
			}
		}
	}

	if cacheErr != nil {
		s.logger.Warn("Кэш ключей измерения %s недоступен, использовано хранилище: %v", dimension, cacheErr)
	}
	s.logger.Debug("Измерение %s: из кэша %d, из хранилища %d", dimension, len(candidates)-len(misses), len(misses))
	return keys, inserted, nil
}
