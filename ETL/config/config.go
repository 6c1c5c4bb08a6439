package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LilVoxy/taxi_warehouse/ETL/warehouse"
)

// ETLConfig содержит конфигурацию для ETL-процесса
type ETLConfig struct {
	// Хранилище (целевая БД звёздной схемы)
	Warehouse DatabaseConfig `yaml:"warehouse"`

	// Исходный файл поездок (.csv или .parquet)
	InputPath string `yaml:"input_path"`

	// Справочник зон такси (LocationID,Borough,Zone,service_zone), необязателен
	ZoneLookupPath string `yaml:"zone_lookup_path"`

	// Каталог для артефактов трансформации
	OutputDir string `yaml:"output_dir"`

	// Сжимать наборы данных snappy
	CompressArtifacts bool `yaml:"compress_artifacts"`

	// Интервал запуска ETL
	RunInterval time.Duration `yaml:"run_interval"`

	// Количество фактов в одной транзакции загрузки
	BatchSize int `yaml:"batch_size"`

	// Количество строк измерения в одной транзакции
	DimensionChunkSize int `yaml:"dimension_chunk_size"`

	// Количество параллельных обработчиков на этапах трансформации
	Workers int `yaml:"workers"`

	// Кэш суррогатных ключей
	KeyCache KeyCacheConfig `yaml:"key_cache"`

	// Сервер отчётов о запусках
	API APIConfig `yaml:"api"`

	// Включение/отключение логирования
	EnableDetailedLogging bool `yaml:"enable_detailed_logging"`

	// Файл логов с ротацией
	LogFile string `yaml:"log_file"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Dialect  string `yaml:"dialect"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	// Путь к файлу для sqlite
	Path string `yaml:"path"`
	// Готовая строка подключения; если задана, остальные поля игнорируются
	DSN string `yaml:"dsn"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// KeyCacheConfig содержит настройки кэша суррогатных ключей
type KeyCacheConfig struct {
	// memory, redis или пусто (без кэша)
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// APIConfig содержит настройки сервера отчётов
type APIConfig struct {
	Listen       string        `yaml:"listen"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Значения конфигурации по умолчанию
var (
	DefaultWarehouseConfig = DatabaseConfig{
		Dialect:         string(warehouse.Postgres),
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		DBName:          "db_taxi",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}

	DefaultETLConfig = ETLConfig{
		Warehouse:          DefaultWarehouseConfig,
		InputPath:          "data_source/echantillon.parquet",
		OutputDir:          "output/transform",
		CompressArtifacts:  true,
		RunInterval:        1 * time.Hour,
		BatchSize:          100,
		DimensionChunkSize: 500,
		Workers:            4,
		API: APIConfig{
			Listen:       ":8080",
			PollInterval: 5 * time.Second,
		},
		EnableDetailedLogging: false,
		LogFile:               "etl.log",
	}
)

// LoadConfig читает YAML-файл поверх значений по умолчанию.
// Пустой путь означает конфигурацию по умолчанию.
func LoadConfig(path string) (ETLConfig, error) {
	config := DefaultETLConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return ETLConfig{}, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		if err := yaml.Unmarshal(raw, &config); err != nil {
			return ETLConfig{}, fmt.Errorf("ошибка разбора файла конфигурации %s: %w", path, err)
		}
	}

	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return ETLConfig{}, err
	}
	return config, nil
}

// Validate проверяет согласованность конфигурации
func (c ETLConfig) Validate() error {
	if _, err := warehouse.ParseDialect(c.Warehouse.Dialect); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size должен быть положительным, получено %d", c.BatchSize)
	}
	if c.DimensionChunkSize <= 0 {
		return fmt.Errorf("dimension_chunk_size должен быть положительным, получено %d", c.DimensionChunkSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers должен быть положительным, получено %d", c.Workers)
	}
	switch c.KeyCache.Backend {
	case "", "memory":
	case "redis":
		if c.KeyCache.RedisAddr == "" {
			return fmt.Errorf("key_cache.redis_addr обязателен для backend=redis")
		}
	default:
		return fmt.Errorf("неизвестный backend кэша ключей: %q", c.KeyCache.Backend)
	}
	return nil
}

// applyEnv переопределяет секреты и адреса из переменных окружения
func applyEnv(c *ETLConfig) {
	if v := os.Getenv("ETL_DB_PASSWORD"); v != "" {
		c.Warehouse.Password = v
	}
	if v := os.Getenv("ETL_DB_DSN"); v != "" {
		c.Warehouse.DSN = v
	}
	if v := os.Getenv("ETL_REDIS_ADDR"); v != "" {
		c.KeyCache.Backend = "redis"
		c.KeyCache.RedisAddr = v
	}
	if v := os.Getenv("ETL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
}
