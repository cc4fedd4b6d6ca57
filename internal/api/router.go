// Package api serves stored weeks, manual imports and ingest runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mwb/internal"
	"mwb/internal/ingest"
	"mwb/internal/logging"
)

const maxBodyBytes = 4 << 20

type WeekReader interface {
	ImportIssue(ctx context.Context, year int, month time.Month) []internal.WeekProgram
	ListUntil(ctx context.Context, year int, month time.Month) []internal.WeekProgram
	ImportText(text string) *internal.WeekProgram
}

type Ingester interface {
	Run(ctx context.Context, mode ingest.Mode, opts ingest.RunOptions) (ingest.Summary, error)
	UpsertWeeks(ctx context.Context, issueKey string, weeks []internal.WeekProgram) (int, error)
	DeleteIssue(ctx context.Context, issueKey string) (int64, error)
}

type Config struct {
	Weeks    WeekReader
	Ingest   Ingester
	Logger   *logging.Logger
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

type handler struct {
	weeks  WeekReader
	ingest Ingester
	log    *logging.Logger
	now    func() time.Time
}

// New builds the router. Ingest routes are mounted only when an Ingester is set.
func New(cfg Config) http.Handler {
	h := &handler{weeks: cfg.Weeks, ingest: cfg.Ingest, log: cfg.Logger, now: cfg.Now}
	if h.log == nil {
		h.log = logging.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if h.weeks != nil {
		r.Get("/weeks", h.getIssue)
		r.Get("/weeks/range", h.getRange)
		r.Post("/import/text", h.importText)
	}
	if h.ingest != nil {
		r.Get("/ingest", h.runIngest)
		r.Post("/ingest", h.changeIssue)
	}
	return r
}

func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func (h *handler) getIssue(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonth(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weeks := h.weeks.ImportIssue(r.Context(), year, month)
	writeJSON(w, http.StatusOK, map[string]any{"weeks": weeks, "count": len(weeks)})
}

func (h *handler) getRange(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.yearMonth(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weeks := h.weeks.ListUntil(r.Context(), year, month)
	writeJSON(w, http.StatusOK, map[string]any{"weeks": weeks, "count": len(weeks)})
}

type importTextRequest struct {
	Text string `json:"text"`
}

func (h *handler) importText(w http.ResponseWriter, r *http.Request) {
	var req importTextRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	week := h.weeks.ImportText(req.Text)
	if week == nil {
		writeError(w, http.StatusUnprocessableEntity, "no parts found in text")
		return
	}
	writeJSON(w, http.StatusOK, week)
}

func (h *handler) runIngest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := ingest.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := ingest.RunOptions{}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"year", &opts.Year},
		{"start_year", &opts.StartYear},
		{"end_year", &opts.EndYear},
	} {
		v, err := optionalInt(q.Get(p.name))
		if err != nil {
			writeError(w, http.StatusBadRequest, p.name+" must be a number")
			return
		}
		*p.dst = v
	}
	month, err := optionalInt(q.Get("month_start"))
	if err != nil || month < 0 || month > 12 {
		writeError(w, http.StatusBadRequest, "month_start must be 1-12")
		return
	}
	opts.Month = time.Month(month)

	summary, err := h.ingest.Run(r.Context(), mode, opts)
	if err != nil {
		h.log.Error("ingest run failed", "mode", mode, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type changeIssueRequest struct {
	Action   string                 `json:"action"`
	IssueKey string                 `json:"issueKey"`
	Weeks    []internal.WeekProgram `json:"weeks"`
}

func (h *handler) changeIssue(w http.ResponseWriter, r *http.Request) {
	var req changeIssueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IssueKey == "" {
		writeError(w, http.StatusBadRequest, "issueKey required")
		return
	}

	switch req.Action {
	case "", "upsert":
		n, err := h.ingest.UpsertWeeks(r.Context(), req.IssueKey, req.Weeks)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issueKey": req.IssueKey, "upserted": n})
	case "delete_issue":
		n, err := h.ingest.DeleteIssue(r.Context(), req.IssueKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issueKey": req.IssueKey, "deleted": n})
	default:
		writeError(w, http.StatusBadRequest, "unsupported action: "+req.Action)
	}
}

// yearMonth reads year and the named month parameter, defaulting to today.
func (h *handler) yearMonth(r *http.Request, monthParam string) (int, time.Month, error) {
	now := h.now()
	q := r.URL.Query()
	year, err := optionalInt(q.Get("year"))
	if err != nil {
		return 0, 0, errors.New("year must be a number")
	}
	if year == 0 {
		year = now.Year()
	}
	month, err := optionalInt(q.Get(monthParam))
	if err != nil || month < 0 || month > 12 {
		return 0, 0, errors.New(monthParam + " must be 1-12")
	}
	if month == 0 {
		month = int(now.Month())
	}
	return year, time.Month(month), nil
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
