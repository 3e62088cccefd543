package metricshttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agencyops/agencyops/internal/metrics"
	"github.com/agencyops/agencyops/internal/metrics/export"
	"github.com/agencyops/agencyops/internal/platform/httpx"
)

const defaultRequestTimeout = 5 * time.Second

// MetricsService defines the computations served over HTTP.
type MetricsService interface {
	GetPeriodMetrics(ctx context.Context, filter metrics.PeriodFilter) (metrics.PeriodMetrics, error)
	GetMonthlyRevenue(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.RevenueBreakdown, error)
	GetMonthlyCosts(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.CostBreakdown, error)
	GetMonthlyCapacity(ctx context.Context, companyID uuid.UUID, year, month int) (metrics.CapacityBreakdown, error)
	GetRevenueChart(ctx context.Context, companyID uuid.UUID, year int) (metrics.RevenueChart, error)
}

// Handler serves the dashboard metrics API.
type Handler struct {
	logger    *slog.Logger
	service   MetricsService
	validator *validator.Validate
	csvPool   sync.Pool
	now       func() time.Time
	timeout   time.Duration
}

// NewHandler constructs the metrics HTTP handler.
func NewHandler(logger *slog.Logger, service MetricsService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	h := &Handler{
		logger:    logger,
		service:   service,
		validator: v,
		now:       time.Now,
		timeout:   defaultRequestTimeout,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithTimeout bounds every service call made for a request.
func (h *Handler) WithTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

type periodQuery struct {
	CompanyID   string `query:"company_id" validate:"required,uuid"`
	StartDate   string `query:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `query:"end_date" validate:"required,datetime=2006-01-02"`
	Aggregation string `query:"aggregation" validate:"omitempty,oneof=monthly quarterly yearly"`
}

type monthQuery struct {
	CompanyID string `query:"company_id" validate:"required,uuid"`
	Year      string `query:"year" validate:"omitempty,number"`
	Month     string `query:"month" validate:"omitempty,number"`
}

func (h *Handler) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parsePeriod(r)
	if err != nil {
		h.respondError(w, "parse period filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.service.GetPeriodMetrics(ctx, filter)
	if err != nil {
		h.respondError(w, "load period metrics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(out))
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	out, ok := h.loadExport(w, r)
	if !ok {
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WritePeriodCSV(buf, out); err != nil {
		h.respondError(w, "write period csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(out, "csv")))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	out, ok := h.loadExport(w, r)
	if !ok {
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WritePeriodXLSX(buf, out); err != nil {
		h.respondError(w, "write period xlsx", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(out, "xlsx")))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream xlsx", err)
	}
}

func (h *Handler) loadExport(w http.ResponseWriter, r *http.Request) (metrics.PeriodMetrics, bool) {
	filter, err := h.parsePeriod(r)
	if err != nil {
		h.respondError(w, "parse period filter", err)
		return metrics.PeriodMetrics{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.service.GetPeriodMetrics(ctx, filter)
	if err != nil {
		h.respondError(w, "load period metrics", err)
		return metrics.PeriodMetrics{}, false
	}
	return out, true
}

func (h *Handler) handleRevenueChart(w http.ResponseWriter, r *http.Request) {
	q := monthQuery{
		CompanyID: strings.TrimSpace(r.URL.Query().Get("company_id")),
		Year:      strings.TrimSpace(r.URL.Query().Get("year")),
	}
	if err := h.validate(q); err != nil {
		h.respondError(w, "parse chart query", err)
		return
	}
	companyID := uuid.MustParse(q.CompanyID)
	year, err := atoiOr("year", q.Year, h.now().UTC().Year())
	if err != nil {
		h.respondError(w, "parse chart query", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	chart, err := h.service.GetRevenueChart(ctx, companyID, year)
	if err != nil {
		h.respondError(w, "load revenue chart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toChartResponse(chart))
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q := monthQuery{
		CompanyID: strings.TrimSpace(r.URL.Query().Get("company_id")),
		Year:      strings.TrimSpace(r.URL.Query().Get("year")),
		Month:     strings.TrimSpace(r.URL.Query().Get("month")),
	}
	if err := h.validate(q); err != nil {
		h.respondError(w, "parse monthly query", err)
		return
	}
	now := h.now().UTC()
	companyID := uuid.MustParse(q.CompanyID)
	year, err := atoiOr("year", q.Year, now.Year())
	if err != nil {
		h.respondError(w, "parse monthly query", err)
		return
	}
	month, err := atoiOr("month", q.Month, int(now.Month()))
	if err != nil {
		h.respondError(w, "parse monthly query", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var body interface{}
	switch kind := chi.URLParam(r, "kind"); kind {
	case "revenue":
		var rev metrics.RevenueBreakdown
		rev, err = h.service.GetMonthlyRevenue(ctx, companyID, year, month)
		body = toRevenueResponse(rev)
	case "costs":
		var cost metrics.CostBreakdown
		cost, err = h.service.GetMonthlyCosts(ctx, companyID, year, month)
		body = toCostResponse(cost)
	case "capacity":
		var capa metrics.CapacityBreakdown
		capa, err = h.service.GetMonthlyCapacity(ctx, companyID, year, month)
		body = toCapacityResponse(capa)
	case "summary":
		body, err = h.loadMonthlySummary(ctx, companyID, year, month)
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("unknown breakdown %q", kind))
		return
	}
	if err != nil {
		h.respondError(w, "load monthly breakdown", err)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}

func (h *Handler) loadMonthlySummary(ctx context.Context, companyID uuid.UUID, year, month int) (monthlySummaryResponse, error) {
	var data monthlySummaryResponse
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rev, err := h.service.GetMonthlyRevenue(ctx, companyID, year, month)
		if err != nil {
			return err
		}
		data.Revenue = toRevenueResponse(rev)
		return nil
	})

	g.Go(func() error {
		cost, err := h.service.GetMonthlyCosts(ctx, companyID, year, month)
		if err != nil {
			return err
		}
		data.Costs = toCostResponse(cost)
		return nil
	})

	g.Go(func() error {
		capa, err := h.service.GetMonthlyCapacity(ctx, companyID, year, month)
		if err != nil {
			return err
		}
		data.Capacity = toCapacityResponse(capa)
		return nil
	})

	if err := g.Wait(); err != nil {
		return monthlySummaryResponse{}, err
	}
	data.Year, data.Month = year, month
	return data, nil
}

func (h *Handler) parsePeriod(r *http.Request) (metrics.PeriodFilter, error) {
	values := r.URL.Query()
	q := periodQuery{
		CompanyID:   strings.TrimSpace(values.Get("company_id")),
		StartDate:   strings.TrimSpace(values.Get("start_date")),
		EndDate:     strings.TrimSpace(values.Get("end_date")),
		Aggregation: strings.ToLower(strings.TrimSpace(values.Get("aggregation"))),
	}
	if err := h.validate(q); err != nil {
		return metrics.PeriodFilter{}, err
	}
	start, _ := time.Parse(time.DateOnly, q.StartDate)
	end, _ := time.Parse(time.DateOnly, q.EndDate)
	return metrics.PeriodFilter{
		CompanyID:   uuid.MustParse(q.CompanyID),
		Start:       start,
		End:         end,
		Aggregation: metrics.Aggregation(q.Aggregation),
	}, nil
}

func (h *Handler) validate(q interface{}) error {
	err := h.validator.Struct(q)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		fields = append(fields, fieldErr.Field())
	}
	return validationError{field: strings.Join(fields, ", ")}
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logError(context, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}

func (v validationError) Unwrap() error {
	return httpx.ErrValidation
}

// atoiOr parses an optional integer parameter. Only an absent value takes the
// fallback; anything unparsable, overflow included, is a validation error.
func atoiOr(field, v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, validationError{field: field}
	}
	return n, nil
}

func exportName(m metrics.PeriodMetrics, ext string) string {
	return fmt.Sprintf("agency-metrics-%s-%s.%s",
		m.Period.Start.Format("20060102"), m.Period.End.Format("20060102"), ext)
}
