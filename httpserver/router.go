// Package httpserver provides a plain REST wrapper around the analyzer
// for clients that do not speak MCP (dashboards, CI jobs, curl).
package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	ouicomply "github.com/KJFromMicromonic/OuiComply"
)

// Handler bundles the dependencies the REST surface needs.
type Handler struct {
	analyzer *ouicomply.Analyzer
	memory   *ouicomply.TeamMemory
	log      *slog.Logger
}

// New builds the handler. memory may be nil; history endpoints then
// return 404.
func New(analyzer *ouicomply.Analyzer, memory *ouicomply.TeamMemory, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{analyzer: analyzer, memory: memory, log: log}
}

// Router assembles the chi router with middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Post("/analyze", h.handleAnalyze)
	r.Get("/frameworks", h.handleFrameworks)
	r.Get("/history", h.handleHistory)
	r.Get("/trends", h.handleTrends)
	r.Get("/cache/stats", h.handleCacheStats)
	r.Delete("/cache", h.handleClearCache)

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type analyzeRequest struct {
	DocumentText   string   `json:"document_text"`
	DocumentBase64 string   `json:"document_base64"`
	MediaType      string   `json:"media_type"`
	Frameworks     []string `json:"frameworks"`
	AnalysisDepth  string   `json:"analysis_depth"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.DocumentText == "" && req.DocumentBase64 == "" {
		writeError(w, http.StatusBadRequest, "either document_text or document_base64 is required")
		return
	}

	areq := ouicomply.AnalysisRequest{
		DocumentText: req.DocumentText,
		MediaType:    req.MediaType,
		Frameworks:   req.Frameworks,
		Depth:        req.AnalysisDepth,
	}
	if req.DocumentBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.DocumentBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "document_base64 is not valid base64")
			return
		}
		areq.DocumentBytes = data
	}

	result := h.analyzer.Analyze(r.Context(), areq)
	if h.memory != nil {
		if _, err := h.memory.Store(result); err != nil {
			h.log.Warn("storing analysis in team memory failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleFrameworks(w http.ResponseWriter, _ *http.Request) {
	var catalog []ouicomply.Framework
	for _, id := range ouicomply.FrameworkIDs() {
		catalog = append(catalog, ouicomply.LookupFramework(id))
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.memory == nil {
		writeError(w, http.StatusNotFound, "team memory is disabled")
		return
	}
	entries, err := h.memory.History(r.URL.Query().Get("framework"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleTrends(w http.ResponseWriter, _ *http.Request) {
	if h.memory == nil {
		writeError(w, http.StatusNotFound, "team memory is disabled")
		return
	}
	trends, err := h.memory.Trends()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.CacheStats())
}

func (h *Handler) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	h.analyzer.ClearCache()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
