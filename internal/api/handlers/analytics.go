// Package handlers provides HTTP handlers for the analytics API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/analytics"
	"github.com/drfirst/rxinsight/internal/api/middleware"
	"github.com/drfirst/rxinsight/internal/domain/record"
)

// Analytics is the query side served by AnalyticsHandler.
type Analytics interface {
	Dashboard(ctx context.Context) (*analytics.Dashboard, error)
	Summary(ctx context.Context, from, to *time.Time) (*analytics.Summary, error)
	Medications(ctx context.Context) (*analytics.MedicationStats, error)
	Labs(ctx context.Context, labs []string) (*analytics.LabStats, error)
	PatientRecords(ctx context.Context, subjectID string) ([]record.Raw, error)
	PatientHistory(ctx context.Context, subjectID string) (*analytics.PatientHistory, error)
}

// AnalyticsHandler serves dashboards and statistics
type AnalyticsHandler struct {
	svc    Analytics
	logger *zap.Logger
}

// NewAnalyticsHandler creates a new handler
func NewAnalyticsHandler(svc Analytics, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// Routes returns the handler routes
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/analytics", h.Dashboard)
	r.Route("/stats", func(r chi.Router) {
		r.Get("/summary", h.Summary)
		r.Get("/medications", h.Medications)
		r.Get("/labs", h.Labs)
	})
	r.Route("/patients/{id}", func(r chi.Router) {
		r.Get("/prescriptions", h.PatientRecords)
		r.Get("/history", h.PatientHistory)
	})
	return r
}

// Dashboard handles GET /analytics
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, "analytics", err)
		return
	}
	h.json(w, http.StatusOK, dash)
}

// Summary handles GET /stats/summary?from=&to=
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	from, err := analytics.ParseBound(r.URL.Query().Get("from"), false)
	if err != nil {
		h.jsonError(w, "invalid from: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := analytics.ParseBound(r.URL.Query().Get("to"), true)
	if err != nil {
		h.jsonError(w, "invalid to: "+err.Error(), http.StatusBadRequest)
		return
	}
	if from != nil && to != nil && from.After(*to) {
		h.jsonError(w, "from must not be after to", http.StatusBadRequest)
		return
	}

	summary, err := h.svc.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, "summary", err)
		return
	}
	h.json(w, http.StatusOK, summary)
}

// Medications handles GET /stats/medications
func (h *AnalyticsHandler) Medications(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Medications(r.Context())
	if err != nil {
		h.fail(w, r, "medication stats", err)
		return
	}
	h.json(w, http.StatusOK, stats)
}

// Labs handles GET /stats/labs?lab=...
func (h *AnalyticsHandler) Labs(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Labs(r.Context(), analytics.NonBlank(r.URL.Query()["lab"]))
	if err != nil {
		h.fail(w, r, "lab stats", err)
		return
	}
	h.json(w, http.StatusOK, stats)
}

// PatientRecords handles GET /patients/{id}/prescriptions
func (h *AnalyticsHandler) PatientRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.PatientRecords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "patient prescriptions", err)
		return
	}
	h.json(w, http.StatusOK, map[string]interface{}{
		"count":         len(records),
		"prescriptions": records,
	})
}

// PatientHistory handles GET /patients/{id}/history
func (h *AnalyticsHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.PatientHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "patient history", err)
		return
	}
	h.json(w, http.StatusOK, history)
}

func (h *AnalyticsHandler) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, analytics.ErrSubjectRequired) {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error("request failed",
		zap.String("what", what),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err))
	h.jsonError(w, "failed to compute "+what, http.StatusInternalServerError)
}

func (h *AnalyticsHandler) json(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *AnalyticsHandler) jsonError(w http.ResponseWriter, message string, code int) {
	h.json(w, code, map[string]string{"error": message})
}
