// main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/taxi_warehouse/ETL/config"
	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
	"github.com/LilVoxy/taxi_warehouse/routes"
	"github.com/LilVoxy/taxi_warehouse/websocket"
)

func main() {
	configPtr := flag.String("config", "", "Путь к YAML-файлу конфигурации")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPtr)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := utils.NewETLLogger(cfg.EnableDetailedLogging, utils.LogOptions{})
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Error("Сервер остановлен с ошибкой: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Сервер остановлен")
}

func serve(cfg config.ETLConfig, logger *utils.ETLLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Подключение к хранилищу
	wh, err := config.ConnectWarehouse(ctx, cfg.Warehouse)
	if err != nil {
		return err
	}
	defer func() {
		if err := wh.Close(); err != nil {
			logger.Error("%v", err)
		}
	}()

	// Журнал может ещё не существовать, если ETL ни разу не запускался
	runLog := models.NewSQLETLLogRepository(wh.DB, wh.Dialect)
	if err := runLog.CreateETLLogTable(ctx); err != nil {
		return err
	}

	// Лента статусов запусков
	feed := websocket.NewManager(runLog, cfg.API.PollInterval, logger)
	go feed.Run(ctx)

	router := mux.NewRouter()
	routes.SetupRoutes(router, runLog, feed.HandleConnections, logger)

	// Настраиваем сервер
	server := &http.Server{
		Addr:         cfg.API.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Сервер отчётов запущен на %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Получен сигнал завершения, закрываем соединения...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
