package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/messdesk/messdesk/internal/platform/httpx"
	"github.com/messdesk/messdesk/internal/tenant"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// Handler serves the mess audit trail. The router mounts it admin-only.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches audit trail routes. Exports are rate limited since a
// full export scans the whole trail.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.With(httprate.Limit(exportRateLimit, exportRateWindow, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Get("/export.csv", h.exportCSV)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	result, err := h.service.Timeline(r.Context(), scope.MessID(), filters)
	if err != nil {
		h.logger.Error("audit: timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": result.Rows,
		"meta": map[string]any{
			"page":        result.Paging.Page,
			"per_page":    result.Paging.PerPage,
			"total":       result.Paging.Total,
			"total_pages": result.Paging.TotalPages,
		},
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rows, err := h.service.Export(r.Context(), scope.MessID(), filters)
	if err != nil {
		h.logger.Error("audit: export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	doc, err := WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit: write csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	_, _ = w.Write(doc)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	f := TimelineFilters{
		Action: q.Get("action"),
		Entity: q.Get("entity"),
	}
	var err error
	if f.Page, err = parseIntParam(q.Get("page")); err != nil {
		return TimelineFilters{}, err
	}
	if f.PageSize, err = parseIntParam(q.Get("per_page")); err != nil {
		return TimelineFilters{}, err
	}
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		return TimelineFilters{}, err
	}
	if f.To, err = parseTimeParam(q.Get("to")); err != nil {
		return TimelineFilters{}, err
	}
	return f, nil
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
