package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/clinic-reports/internal/records"
)

// ErrUnknownDimension indicates an unsupported rollup dimension.
var ErrUnknownDimension = errors.New("reports: unknown rollup dimension")

// Dimension names a per-entity rollup.
type Dimension string

const (
	DimensionPatients   Dimension = "patients"
	DimensionDoctors    Dimension = "doctors"
	DimensionSuppliers  Dimension = "suppliers"
	DimensionTreatments Dimension = "treatments"
	DimensionExpenses   Dimension = "expenses"
	DimensionMethods    Dimension = "methods"
	DimensionInventory  Dimension = "inventory"
)

// ExpiryWindowDays is the look-ahead used for expiring stock.
const ExpiryWindowDays = 30

// Dimensions lists every supported rollup dimension.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionPatients, DimensionDoctors, DimensionSuppliers, DimensionTreatments,
		DimensionExpenses, DimensionMethods, DimensionInventory,
	}
}

// ParseDimension validates a raw dimension name.
func ParseDimension(raw string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Dimensions() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownDimension, raw)
}

// RollupReport carries the rows of one dimension, sorted by their headline
// figure descending. Only the slice matching Dimension is populated.
type RollupReport struct {
	Dimension  Dimension            `json:"dimension"`
	Patients   []PatientBalance     `json:"patients,omitempty"`
	Doctors    []DoctorStats        `json:"doctors,omitempty"`
	Suppliers  []SupplierStats      `json:"suppliers,omitempty"`
	Treatments []TreatmentTypeStats `json:"treatments,omitempty"`
	Expenses   []Breakdown          `json:"expenses,omitempty"`
	Methods    []Breakdown          `json:"methods,omitempty"`
	Inventory  *InventoryStatus     `json:"inventory,omitempty"`
}

// Overview bundles the dashboard views for one range. Comparison is nil when
// the range cannot be compared.
type Overview struct {
	Summary    FinancialSummary `json:"summary"`
	Comparison *Comparison      `json:"comparison,omitempty"`
	Trend      []TrendPoint     `json:"trend"`
}

// Service coordinates snapshot loading, calculation and the cache layer.
type Service struct {
	source     records.Source
	cache      *Cache
	aggregator *Aggregator
	comparator *Comparator
	now        func() time.Time
}

// NewService wires a record source with the calculators and an optional cache.
func NewService(source records.Source, cache *Cache, aggregator *Aggregator) *Service {
	if aggregator == nil {
		aggregator = &Aggregator{}
	}
	return &Service{
		source:     source,
		cache:      cache,
		aggregator: aggregator,
		comparator: NewComparator(aggregator),
		now:        time.Now,
	}
}

// Audit exposes the audit log attached to the aggregator.
func (s *Service) Audit() *AuditLog {
	return s.aggregator.Audit()
}

// Cache exposes the cache helper, which may be nil.
func (s *Service) Cache() *Cache {
	return s.cache
}

func (s *Service) snapshot(ctx context.Context) (records.Snapshot, error) {
	if s.source == nil {
		return records.Snapshot{}, fmt.Errorf("%w: no record source configured", records.ErrSnapshotUnavailable)
	}
	return s.source.Snapshot(ctx)
}

// cached resolves key through the cache, falling back to loader directly when
// caching is disabled. Cache hits skip the calculation and its audit entry.
func cached[T any](ctx context.Context, c *Cache, key string, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return loader(ctx)
	}
	versioned, err := c.BuildKey(ctx, key)
	if err != nil {
		return zero, err
	}
	var out T
	err = c.FetchJSON(ctx, versioned, &out, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

// Summary returns the FinancialSummary for rng.
func (s *Service) Summary(ctx context.Context, rng DateRange) (FinancialSummary, error) {
	return cached(ctx, s.cache, keySummary(rng), func(ctx context.Context) (FinancialSummary, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return FinancialSummary{}, err
		}
		return s.aggregator.Aggregate(InputsFrom(snap), rng), nil
	})
}

// Compare returns rng against the equal-length window before it.
func (s *Service) Compare(ctx context.Context, rng DateRange) (Comparison, error) {
	if _, _, err := PreviousWindow(rng); err != nil {
		return Comparison{}, err
	}
	return cached(ctx, s.cache, keyCompare(rng), func(ctx context.Context) (Comparison, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return Comparison{}, err
		}
		return s.comparator.Compare(InputsFrom(snap), rng)
	})
}

// Rollups returns the per-entity rows of dimension for rng.
func (s *Service) Rollups(ctx context.Context, dimension Dimension, rng DateRange) (RollupReport, error) {
	if _, err := ParseDimension(string(dimension)); err != nil {
		return RollupReport{}, err
	}
	return cached(ctx, s.cache, keyRollup(dimension, rng), func(ctx context.Context) (RollupReport, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return RollupReport{}, err
		}
		return s.rollup(snap, dimension, rng), nil
	})
}

func (s *Service) rollup(snap records.Snapshot, dimension Dimension, rng DateRange) RollupReport {
	report := RollupReport{Dimension: dimension}
	switch dimension {
	case DimensionPatients:
		report.Patients = SortedDesc(PatientBalances(snap, rng), func(b PatientBalance) float64 { return b.OutstandingBalance })
	case DimensionDoctors:
		report.Doctors = SortedDesc(DoctorPerformance(snap, rng), func(d DoctorStats) float64 { return d.TotalRevenue })
	case DimensionSuppliers:
		report.Suppliers = SortedDesc(SupplierActivity(snap, rng), func(st SupplierStats) float64 { return st.TotalInvoiced })
	case DimensionTreatments:
		report.Treatments = SortedDesc(TreatmentTypes(snap, rng), func(t TreatmentTypeStats) float64 { return t.Total })
	case DimensionExpenses:
		report.Expenses = SortedDesc(ExpenseCategories(snap, rng), func(b Breakdown) float64 { return b.Total })
	case DimensionMethods:
		report.Methods = SortedDesc(PaymentMethods(snap, rng), func(b Breakdown) float64 { return b.Total })
	case DimensionInventory:
		asOf := rng.End
		if asOf.IsZero() {
			asOf = s.now().UTC()
		}
		status := InventoryValuation(snap.InventoryItems, asOf, ExpiryWindowDays)
		report.Inventory = &status
	}
	return report
}

// Trend returns the bucketed series for rng.
func (s *Service) Trend(ctx context.Context, rng DateRange, g Granularity) ([]TrendPoint, error) {
	return cached(ctx, s.cache, keyTrend(g, rng), func(ctx context.Context) ([]TrendPoint, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return s.aggregator.Trend(InputsFrom(snap), rng, g), nil
	})
}

// Overview returns the summary, comparison and monthly trend of rng, all
// computed from one snapshot and cached together. Ranges that cannot be
// compared still yield the other views.
func (s *Service) Overview(ctx context.Context, rng DateRange) (Overview, error) {
	return cached(ctx, s.cache, keyOverview(rng), func(ctx context.Context) (Overview, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return Overview{}, err
		}
		return s.overview(ctx, InputsFrom(snap), rng)
	})
}

func (s *Service) overview(ctx context.Context, in Inputs, rng DateRange) (Overview, error) {
	var out Overview
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Summary = s.aggregator.Aggregate(in, rng)
		return nil
	})
	g.Go(func() error {
		cmp, err := s.comparator.Compare(in, rng)
		if errors.Is(err, ErrUnboundedRange) || errors.Is(err, ErrInvertedRange) {
			return nil
		}
		if err != nil {
			return err
		}
		out.Comparison = &cmp
		return nil
	})
	g.Go(func() error {
		out.Trend = s.aggregator.Trend(in, rng, GranularityMonth)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// Warm computes and caches the summary of every window, returning how many
// were refreshed before the first failure.
func (s *Service) Warm(ctx context.Context, windows []NamedRange) (int, error) {
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.Summary(ctx, w.Range); err != nil {
			return i, fmt.Errorf("warm %s: %w", w.Name, err)
		}
	}
	return len(windows), nil
}
