package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/LilVoxy/taxi_warehouse/ETL/artifacts"
	"github.com/LilVoxy/taxi_warehouse/ETL/config"
	"github.com/LilVoxy/taxi_warehouse/ETL/extractors"
	"github.com/LilVoxy/taxi_warehouse/ETL/load"
	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/transform"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

type ETLRunner struct {
	config      config.ETLConfig
	warehouse   *config.Warehouse
	redis       *redis.Client
	logger      *utils.ETLLogger
	extractor   *extractors.Extractor
	transformer *transform.Transformer
	writer      *artifacts.ArtifactWriter
	loadManager *load.LoadManager
	etlLogRepo  models.ETLLogRepository

	// один запуск за раз, даже если планировщик и ручной вызов пересеклись
	mu sync.Mutex
}

// NewETLRunner создает новый экземпляр ETLRunner
func NewETLRunner(ctx context.Context, etlConfig config.ETLConfig, logger *utils.ETLLogger) (*ETLRunner, error) {
	logger.Info("Инициализация ETL Runner")

	// Подключаемся к хранилищу
	wh, err := config.ConnectWarehouse(ctx, etlConfig.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	// Звёздная схема и журнал запусков
	if err := warehouse.EnsureSchema(ctx, wh.DB, wh.Dialect); err != nil {
		wh.Close()
		return nil, err
	}
	etlLogRepo := models.NewSQLETLLogRepository(wh.DB, wh.Dialect)
	if err := etlLogRepo.CreateETLLogTable(ctx); err != nil {
		wh.Close()
		return nil, fmt.Errorf("ошибка при создании таблицы логов ETL: %w", err)
	}

	runner := &ETLRunner{
		config:      etlConfig,
		warehouse:   wh,
		logger:      logger,
		extractor:   extractors.NewExtractor(logger),
		transformer: transform.NewTransformer(etlConfig.Workers, logger),
		writer:      artifacts.NewArtifactWriter(etlConfig.OutputDir, etlConfig.CompressArtifacts, logger),
		etlLogRepo:  etlLogRepo,
	}

	var store load.DimensionStore = load.NewSQLDimensionStore(wh.DB, wh.Dialect, etlConfig.DimensionChunkSize, logger)
	if cache := runner.keyCache(ctx); cache != nil {
		store = load.NewCachedDimensionStore(store, cache, logger)
	}
	facts := load.NewFactLoader(wh.DB, wh.Dialect, etlConfig.BatchSize, logger)
	runner.loadManager = load.NewLoadManager(store, facts, logger)

	return runner, nil
}

// keyCache создает кэш суррогатных ключей согласно конфигурации.
// Недоступный Redis не мешает запуску: загрузка идёт без кэша.
func (r *ETLRunner) keyCache(ctx context.Context) load.KeyCache {
	switch r.config.KeyCache.Backend {
	case "memory":
		return load.NewMemoryKeyCache()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: r.config.KeyCache.RedisAddr,
			DB:   r.config.KeyCache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			r.logger.Warn("Redis %s недоступен, кэш ключей отключён: %v", r.config.KeyCache.RedisAddr, err)
			client.Close()
			return nil
		}
		r.redis = client
		r.logger.Info("Кэш ключей измерений: redis %s", r.config.KeyCache.RedisAddr)
		return load.NewRedisKeyCache(client, r.config.KeyCache.TTL)
	default:
		return nil
	}
}

// Close закрывает соединения с хранилищем и кэшем
func (r *ETLRunner) Close() error {
	r.logger.Info("Завершение работы ETL Runner")
	err := r.warehouse.Close()
	if r.redis != nil {
		err = multierr.Append(err, r.redis.Close())
	}
	return err
}

// ExecuteETL выполняет полный ETL процесс
func (r *ETLRunner) ExecuteETL(ctx context.Context) (*models.RunStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startTime := time.Now()
	stats := models.NewRunStats(uuid.NewString(), startTime)
	r.logger.LogETLStart(stats.RunID)

	// Создаем запись в журнале ETL
	if err := r.etlLogRepo.CreateLogEntry(ctx, stats.RunID, startTime); err != nil {
		r.logger.Error("Ошибка при создании записи в журнале ETL: %v", err)
		return stats, fmt.Errorf("ошибка при создании записи в журнале ETL: %w", err)
	}

	// 1. Фаза извлечения данных (Extract)
	extractedData, err := r.extractor.Extract(ctx, r.config.InputPath, r.config.ZoneLookupPath)
	if err != nil {
		return stats, r.fail(ctx, stats, "", fmt.Errorf("ошибка в фазе Extract: %w", err))
	}

	// 2. Фаза трансформации данных (Transform)
	transformedData, err := r.transformer.Transform(ctx, extractedData, stats)
	if err != nil {
		return stats, r.fail(ctx, stats, "", fmt.Errorf("ошибка в фазе Transform: %w", err))
	}

	paths, err := r.writer.WriteDatasets(transformedData, startTime)
	if err != nil {
		return stats, r.fail(ctx, stats, "", fmt.Errorf("ошибка записи артефактов: %w", err))
	}

	// 3. Фаза загрузки данных (Load)
	loadErr := r.loadManager.Load(ctx, transformedData, stats)

	// Отчёт пишется и при ошибке загрузки
	report := artifacts.BuildReport(stats, transformedData.Valid, extractedData.SourcePath, startTime)
	report.SetLoadResult(stats, loadErr)
	report.Artifacts = &paths
	reportPath, reportErr := r.writer.WriteReport(report)
	if reportErr != nil {
		r.logger.Error("Ошибка при записи отчёта: %v", reportErr)
	}

	if loadErr != nil {
		return stats, r.fail(ctx, stats, reportPath, fmt.Errorf("ошибка в фазе Load: %w", loadErr))
	}
	if reportErr != nil {
		return stats, r.fail(ctx, stats, "", fmt.Errorf("ошибка записи отчёта: %w", reportErr))
	}

	// Обновляем запись в журнале с информацией об успешном выполнении
	if err := r.etlLogRepo.UpdateLogEntrySuccess(ctx, stats, time.Now(), reportPath); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
	}

	r.logger.LogETLComplete(stats.RunID, startTime, stats.RecordsProcessed, stats.QuarantinedRecords, stats.FactsLoaded)
	return stats, nil
}

// fail логирует ошибку фазы и отмечает запуск как неудачный
func (r *ETLRunner) fail(ctx context.Context, stats *models.RunStats, reportPath string, err error) error {
	r.logger.Error("%v", err)
	// журнал обновляется даже если контекст запуска уже отменён
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if updErr := r.etlLogRepo.UpdateLogEntryFailure(logCtx, stats, time.Now(), reportPath, err.Error()); updErr != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале ETL: %v", updErr)
	}
	return err
}

// StartScheduler запускает планировщик для регулярного выполнения ETL
func (r *ETLRunner) StartScheduler(ctx context.Context) error {
	scheduler := gocron.NewScheduler(time.UTC)

	r.logger.Info("Запуск планировщика ETL с интервалом %v", r.config.RunInterval)

	_, err := scheduler.Every(r.config.RunInterval).SingletonMode().Do(func() {
		r.logger.Info("Запланированный запуск ETL процесса")
		if _, err := r.ExecuteETL(ctx); err != nil {
			r.logger.Error("Ошибка при выполнении запланированного ETL: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка при настройке планировщика: %w", err)
	}

	// Запускаем планировщик
	scheduler.StartAsync()

	// Ожидаем сигнал остановки из контекста
	<-ctx.Done()

	// Останавливаем планировщик
	scheduler.Stop()
	r.logger.Info("Планировщик ETL остановлен")
	return nil
}

func newLogger(cfg config.ETLConfig) *utils.ETLLogger {
	return utils.NewETLLogger(cfg.EnableDetailedLogging, utils.LogOptions{
		FilePath:   cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})
}

// RunOnce запускает ETL процесс один раз
func RunOnce(ctx context.Context, cfg config.ETLConfig) error {
	logger := newLogger(cfg)
	defer logger.Sync()

	runner, err := NewETLRunner(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ошибка при создании ETL Runner: %w", err)
	}

	_, err = runner.ExecuteETL(ctx)
	return multierr.Append(err, runner.Close())
}

// RunScheduled запускает ETL процесс по расписанию до отмены контекста
func RunScheduled(ctx context.Context, cfg config.ETLConfig) error {
	logger := newLogger(cfg)
	defer logger.Sync()

	runner, err := NewETLRunner(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ошибка при создании ETL Runner: %w", err)
	}

	err = runner.StartScheduler(ctx)
	return multierr.Append(err, runner.Close())
}

var errUnknownMode = errors.New("неизвестный режим работы")

func run(ctx context.Context, mode, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	switch mode {
	case "once":
		return RunOnce(ctx, cfg)
	case "scheduled":
		return RunScheduled(ctx, cfg)
	default:
		return fmt.Errorf("%w: %s (доступные режимы: scheduled, once)", errUnknownMode, mode)
	}
}

func main() {
	// Параметры командной строки
	modePtr := flag.String("mode", "scheduled", "Режим работы: scheduled или once")
	configPtr := flag.String("config", "", "Путь к YAML-файлу конфигурации")
	flag.Parse()

	// Контекст отменяется при получении сигнала завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Запуск ETL Runner в режиме:", *modePtr)

	if err := run(ctx, *modePtr, *configPtr); err != nil {
		log.Printf("ETL Runner завершился с ошибкой: %v", err)
		stop()
		os.Exit(1)
	}

	log.Println("ETL Runner завершил работу")
}
