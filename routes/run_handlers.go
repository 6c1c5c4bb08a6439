// routes/run_handlers.go
package routes

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/taxi_warehouse/ETL/artifacts"
	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

const (
	defaultDays = 7
	maxDays     = 365
)

// RunsResponse - ответ со списком запусков
type RunsResponse struct {
	Days int                `json:"days"`
	Runs []models.ETLRunLog `json:"runs"`
}

type runHandlers struct {
	runs   RunLogReader
	logger *utils.ETLLogger
}

func (h *runHandlers) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		h.logger.Error("%s %s: %s: %v", r.Method, r.URL.Path, msg, err)
	}
	h.write(w, r, status, ErrorResponse{Error: msg})
}

func (h *runHandlers) write(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := writeResponse(w, r, status, data); err != nil {
		h.logger.Error("Ошибка при формировании ответа: %v", err)
	}
}

// listRuns возвращает запуски за последние days дней
func (h *runHandlers) listRuns(w http.ResponseWriter, r *http.Request) {
	days := defaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDays {
			h.fail(w, r, http.StatusBadRequest, "Параметр days должен быть целым числом от 1 до 365", nil)
			return
		}
		days = n
	}

	runs, err := h.runs.GetETLRunStats(r.Context(), days)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Ошибка при получении списка запусков", err)
		return
	}
	h.write(w, r, http.StatusOK, RunsResponse{Days: days, Runs: runs})
}

func (h *runHandlers) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetLatestRun(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Ошибка при получении последнего запуска", err)
		return
	}
	if run == nil {
		h.fail(w, r, http.StatusNotFound, "Запусков ещё не было", nil)
		return
	}
	h.write(w, r, http.StatusOK, run)
}

func (h *runHandlers) getRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Ошибка при получении запуска", err)
		return
	}
	if run == nil {
		h.fail(w, r, http.StatusNotFound, "Запуск не найден", nil)
		return
	}
	h.write(w, r, http.StatusOK, run)
}

// getReport возвращает отчёт о трансформации для запуска.
// Файл отчёта общий для всех запусков, поэтому отчёт более позднего запуска не отдаётся.
func (h *runHandlers) getReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Ошибка при получении запуска", err)
		return
	}
	if run == nil || run.ReportPath == "" {
		h.fail(w, r, http.StatusNotFound, "Отчёт для запуска не найден", nil)
		return
	}

	report, err := artifacts.ReadReport(run.ReportPath)
	if err != nil {
		h.fail(w, r, http.StatusNotFound, "Файл отчёта недоступен", err)
		return
	}
	if report.RunID != runID {
		h.fail(w, r, http.StatusGone, "Отчёт перезаписан более поздним запуском", nil)
		return
	}
	h.write(w, r, http.StatusOK, report)
}

func (h *runHandlers) state(w http.ResponseWriter, r *http.Request) {
	state, err := h.runs.GetETLStateMonitor(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Ошибка при получении состояния ETL", err)
		return
	}
	h.write(w, r, http.StatusOK, state)
}
