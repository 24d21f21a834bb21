package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/noema/internal/memory"
	"github.com/nidhogg/noema/internal/mind"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	mind   *mind.Mind
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(m *mind.Mind, logger *zap.Logger) *Handler {
	return &Handler{mind: m, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/events", h.submitEvent)
		r.Post("/outcome", h.reportOutcome)

		r.Get("/memories/recent", h.recentMemories)
		r.Post("/memories/query", h.queryMemories)

		r.Get("/self/{owner}", h.selfDescription)
		r.Get("/behaviors", h.listBehaviors)
		r.Get("/curiosity/suggestion", h.curiositySuggestion)
		r.Get("/metrics", h.metrics)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "creature": "noema"})
}

type eventRequest struct {
	OwnerID string          `json:"owner_id"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) submitEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.OwnerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner_id is required"})
		return
	}

	// Payloads keep their JSON shape: objects become key/value features,
	// strings are tokenized, anything else degrades inside the encoder.
	var payload any
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			payload = string(req.Payload)
		}
	}

	result, err := h.mind.SubmitEvent(r.Context(), req.OwnerID, payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type outcomeRequest struct {
	OwnerID string `json:"owner_id"`
	LoopID  string `json:"loop_id"`
	Success bool   `json:"success"`
}

func (h *Handler) reportOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.LoopID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "loop_id is required"})
		return
	}

	applied, err := h.mind.ReportOutcome(r.Context(), req.OwnerID, req.LoopID, req.Success)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	// Unknown loops are not an error: decay may have removed them.
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (h *Handler) recentMemories(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}

	records, err := h.mind.RecentMemories(r.Context(), owner, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*memory.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) queryMemories(w http.ResponseWriter, r *http.Request) {
	var q memory.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	records, err := h.mind.QueryMemories(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*memory.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) selfDescription(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	desc, err := h.mind.SelfDescription(r.Context(), owner)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if desc.Name == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "owner not found"})
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *Handler) listBehaviors(w http.ResponseWriter, r *http.Request) {
	loops, err := h.mind.Behaviors(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, loops)
}

func (h *Handler) curiositySuggestion(w http.ResponseWriter, r *http.Request) {
	category, hint, err := h.mind.Suggestion(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"category": category,
		"hint":     hint,
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.mind.Metrics(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
