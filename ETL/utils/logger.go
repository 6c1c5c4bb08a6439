package utils

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ETLLogger представляет логгер для ETL-процесса
type ETLLogger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// LogOptions задаёт параметры файла логов
type LogOptions struct {
	// Путь к файлу логов; пустая строка отключает запись в файл
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewETLLogger создает новый экземпляр логгера для ETL.
// Консольный вывод идёт в stderr, в файл пишется JSON с ротацией.
func NewETLLogger(verbose bool, opts LogOptions) *ETLLogger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &ETLLogger{
		sugar: base.Sugar(),
		base:  base,
	}
}

// NewNopLogger возвращает логгер, который ничего не пишет (для тестов)
func NewNopLogger() *ETLLogger {
	base := zap.NewNop()
	return &ETLLogger{sugar: base.Sugar(), base: base}
}

// With возвращает логгер с дополнительными полями
func (l *ETLLogger) With(keysAndValues ...interface{}) *ETLLogger {
	sugar := l.sugar.With(keysAndValues...)
	return &ETLLogger{sugar: sugar, base: sugar.Desugar()}
}

// Zap возвращает базовый zap-логгер
func (l *ETLLogger) Zap() *zap.Logger {
	return l.base
}

// Info логирует информационное сообщение
func (l *ETLLogger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warn логирует предупреждение
func (l *ETLLogger) Warn(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error логирует сообщение об ошибке
func (l *ETLLogger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Debug логирует отладочное сообщение (только если включен verbose режим)
func (l *ETLLogger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infow логирует сообщение со структурированными полями
func (l *ETLLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warnw логирует предупреждение со структурированными полями
func (l *ETLLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Sync сбрасывает буферы логгера
func (l *ETLLogger) Sync() {
	_ = l.sugar.Sync()
}

// LogETLStart логирует начало ETL-процесса
func (l *ETLLogger) LogETLStart(runID string) {
	l.Infow("Начало выполнения ETL-процесса", "run_id", runID)
}

// LogETLComplete логирует завершение ETL-процесса
func (l *ETLLogger) LogETLComplete(runID string, startTime time.Time, processed, quarantined, loaded int) {
	l.Infow("ETL-процесс завершён",
		"run_id", runID,
		"duration", time.Since(startTime),
		"processed", processed,
		"quarantined", quarantined,
		"facts_loaded", loaded,
	)
}

// LogExtractStart логирует начало фазы извлечения данных
func (l *ETLLogger) LogExtractStart(path string) {
	l.Infow("Начало фазы Extract (Извлечение данных)", "source", path)
}

// LogExtractComplete логирует завершение фазы извлечения данных
func (l *ETLLogger) LogExtractComplete(trips int, malformed int, duration time.Duration) {
	l.Infow("Фаза Extract завершена", "trips", trips, "malformed", malformed, "duration", duration)
}
