// routes/api_routes.go
package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// RunLogReader - доступ на чтение к журналу запусков ETL
type RunLogReader interface {
	GetRun(ctx context.Context, runID string) (*models.ETLRunLog, error)
	GetLatestRun(ctx context.Context) (*models.ETLRunLog, error)
	GetETLRunStats(ctx context.Context, days int) ([]models.ETLRunLog, error)
	GetETLStateMonitor(ctx context.Context) (*models.ETLStateMonitor, error)
}

// SetupRoutes настраивает все маршруты API и WebSocket.
// feed может быть nil: тогда лента запусков не регистрируется.
func SetupRoutes(router *mux.Router, runs RunLogReader, feed http.HandlerFunc, logger *utils.ETLLogger) {
	h := &runHandlers{runs: runs, logger: logger}

	// Применяем CORS middleware
	router.Use(corsMiddleware)

	// Лента статусов запусков
	if feed != nil {
		router.HandleFunc("/ws/runs", feed)
	}

	// API запусков
	router.HandleFunc("/api/runs", h.listRuns).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs/latest", h.latestRun).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs/{runId}", h.getRun).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs/{runId}/report", h.getReport).Methods("GET", "OPTIONS")

	// Сводка состояния ETL
	router.HandleFunc("/api/state", h.state).Methods("GET", "OPTIONS")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
