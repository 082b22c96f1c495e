package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/exporter"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/jobs"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	jobs    *jobs.Manager
	logger  *zap.Logger
	exports func(format string)
}

func NewHandlers(manager *jobs.Manager, logger *zap.Logger, exportCounter func(format string)) *Handlers {
	return &Handlers{jobs: manager, logger: logger, exports: exportCounter}
}

// ScrapeRequest queues a new scrape job.
type ScrapeRequest struct {
	Query    string `json:"query"`
	MaxPages int    `json:"max_pages"`
}

func (h *Handlers) SubmitScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxPages == 0 {
		req.MaxPages = 3
	}

	job, err := h.jobs.Submit(req.Query, req.MaxPages)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, ok := h.jobs.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

// GetProducts returns the canonical record set for the dashboard.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.Records())
}

// GetProductDetail fetches a known product's detail page on demand and
// returns its extended attributes.
func (h *Handlers) GetProductDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	detail, err := h.jobs.ProductDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrUnknownProduct) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("detail fetch failed", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusBadGateway, "failed to fetch product detail")
		return
	}
	h.respondJSON(w, http.StatusOK, detail)
}

// ExportProducts streams the record set in the requested format as a
// file download.
func (h *Handlers) ExportProducts(w http.ResponseWriter, r *http.Request) {
	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := exporter.Export(h.jobs.Records(), format)
	if err != nil {
		h.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	if h.exports != nil {
		h.exports(string(format))
	}

	filename := fmt.Sprintf("products_%s.%s", time.Now().UTC().Format("20060102_150405"), format.Ext())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write export", zap.Error(err))
	}
}

// GetStats aggregates job counters for the dashboard summary cards.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		Jobs            int  `json:"jobs"`
		Completed       int  `json:"completed"`
		Failed          int  `json:"failed"`
		Records         int  `json:"records"`
		PagesFetched    int  `json:"pages_fetched"`
		PagesFailed     int  `json:"pages_failed"`
		ProductsDropped int  `json:"products_dropped"`
		Blocked         bool `json:"blocked"`
	}{}

	for _, job := range h.jobs.List() {
		stats.Jobs++
		switch job.Status {
		case jobs.StatusCompleted:
			stats.Completed++
		case jobs.StatusFailed:
			stats.Failed++
		}
		if job.Summary != nil {
			stats.PagesFetched += job.Summary.PagesFetched
			stats.PagesFailed += job.Summary.PagesFailed
			stats.ProductsDropped += job.Summary.ProductsDropped
			if job.Summary.Blocked {
				stats.Blocked = true
			}
		}
	}
	stats.Records = len(h.jobs.Records())

	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
