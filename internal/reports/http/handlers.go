package reportshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/clinic-reports/internal/platform/httpx"
	"github.com/odyssey-erp/clinic-reports/internal/records"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
)

const requestTimeout = 5 * time.Second

// ReportService defines the report contract used by the handler.
type ReportService interface {
	Summary(ctx context.Context, rng reports.DateRange) (reports.FinancialSummary, error)
	Compare(ctx context.Context, rng reports.DateRange) (reports.Comparison, error)
	Rollups(ctx context.Context, dimension reports.Dimension, rng reports.DateRange) (reports.RollupReport, error)
	Trend(ctx context.Context, rng reports.DateRange, g reports.Granularity) ([]reports.TrendPoint, error)
	Overview(ctx context.Context, rng reports.DateRange) (reports.Overview, error)
}

// AuditLog exposes the calculation history.
type AuditLog interface {
	Entries() []reports.AuditEntry
	Capacity() int
	Reset()
}

// CacheBumper invalidates cached reports.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// Handler serves the JSON report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	audit    AuditLog
	cache    CacheBumper
	validate *validator.Validate
	// adminHash guards the mutating routes when set.
	adminHash string
}

// Option customises a Handler.
type Option func(*Handler)

// WithAdminTokenHash requires a bearer token matching the bcrypt hash on
// the audit reset and cache bump routes.
func WithAdminTokenHash(hash string) Option {
	return func(h *Handler) {
		h.adminHash = hash
	}
}

// NewHandler constructs the reports HTTP handler. audit and cache may be nil.
func NewHandler(logger *slog.Logger, service ReportService, audit AuditLog, cache CacheBumper, opts ...Option) *Handler {
	h := &Handler{
		logger:   logger,
		service:  service,
		audit:    audit,
		cache:    cache,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type filterForm struct {
	Start       string `validate:"omitempty,datetime=2006-01-02"`
	End         string `validate:"omitempty,datetime=2006-01-02"`
	Granularity string `validate:"omitempty,oneof=day month quarter year"`
}

type auditForm struct {
	Limit int `validate:"gte=0,lte=10000"`
}

type filters struct {
	rng         reports.DateRange
	granularity reports.Granularity
}

type validationError struct {
	fields []string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", strings.Join(v.fields, ", "))
}

func (h *Handler) parseFilters(r *http.Request) (filters, error) {
	q := r.URL.Query()
	form := filterForm{
		Start:       strings.TrimSpace(q.Get("start")),
		End:         strings.TrimSpace(q.Get("end")),
		Granularity: strings.ToLower(strings.TrimSpace(q.Get("granularity"))),
	}
	if err := h.validate.Struct(form); err != nil {
		return filters{}, toValidationError(err)
	}
	rng, err := reports.ParseDateRange(form.Start, form.End)
	if err != nil {
		return filters{}, validationError{fields: []string{"start", "end"}}
	}
	g, err := reports.ParseGranularity(form.Granularity)
	if err != nil {
		return filters{}, validationError{fields: []string{"granularity"}}
	}
	return filters{rng: rng, granularity: g}, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := validationError{}
	for _, fe := range fieldErrs {
		out.fields = append(out.fields, strings.ToLower(fe.Field()))
	}
	return out
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		h.handleError(w, "parse filters", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx, f.rng)
	if err != nil {
		h.handleError(w, "summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		h.handleError(w, "parse filters", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cmp, err := h.service.Compare(ctx, f.rng)
	if err != nil {
		h.handleError(w, "compare", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cmp)
}

func (h *Handler) handleRollup(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		h.handleError(w, "parse filters", err)
		return
	}
	dimension, err := reports.ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		h.handleError(w, "rollup dimension", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.Rollups(ctx, dimension, f.rng)
	if err != nil {
		h.handleError(w, "rollup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		h.handleError(w, "parse filters", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	points, err := h.service.Trend(ctx, f.rng, f.granularity)
	if err != nil {
		h.handleError(w, "trend", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"granularity": f.granularity,
		"points":      points,
	})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		h.handleError(w, "parse filters", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	overview, err := h.service.Overview(ctx, f.rng)
	if err != nil {
		h.handleError(w, "overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) handleAuditList(w http.ResponseWriter, r *http.Request) {
	form := auditForm{}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.handleError(w, "parse limit", validationError{fields: []string{"limit"}})
			return
		}
		form.Limit = limit
	}
	if err := h.validate.Struct(form); err != nil {
		h.handleError(w, "parse limit", toValidationError(err))
		return
	}

	var entries []reports.AuditEntry
	capacity := 0
	if h.audit != nil {
		entries = h.audit.Entries()
		capacity = h.audit.Capacity()
	}
	if entries == nil {
		entries = []reports.AuditEntry{}
	}
	total := len(entries)
	if form.Limit > 0 && form.Limit < total {
		entries = entries[total-form.Limit:]
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"capacity": capacity,
		"total":    total,
		"entries":  entries,
	})
}

func (h *Handler) handleAuditReset(w http.ResponseWriter, r *http.Request) {
	if h.audit != nil {
		h.audit.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCacheBump(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httpx.JSON(w, http.StatusAccepted, map[string]any{"version": 0})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ver, err := h.cache.Bump(ctx)
	if err != nil {
		h.handleError(w, "bump cache", err)
		return
	}
	if h.logger != nil {
		h.logger.Info("report cache bumped", slog.Int64("version", ver))
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"version": ver})
}

func (h *Handler) handleError(w http.ResponseWriter, op string, err error) {
	var vErr validationError
	switch {
	case errors.As(err, &vErr):
		httpx.InvalidFields(w, vErr.fields)
		return
	case errors.Is(err, reports.ErrUnknownDimension):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, reports.ErrUnboundedRange),
		errors.Is(err, reports.ErrInvertedRange),
		errors.Is(err, reports.ErrInvalidDate),
		errors.Is(err, reports.ErrInvalidGranularity):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, records.ErrSnapshotUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		h.logError(op, err)
		err = fmt.Errorf("%w: %v", httpx.ErrUnavailable, err)
	default:
		h.logError(op, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}
