package reports

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidGranularity indicates an unsupported trend bucket size.
var ErrInvalidGranularity = errors.New("reports: invalid granularity")

// Granularity is the bucket size of a trend series.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// maxTrendBuckets caps zero-filling of very long daily ranges.
const maxTrendBuckets = 3660

// ParseGranularity validates a raw granularity, defaulting to month.
func ParseGranularity(raw string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return GranularityMonth, nil
	case GranularityDay, GranularityMonth, GranularityQuarter, GranularityYear:
		return g, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidGranularity, raw)
	}
}

// TrendPoint is the summary of one bucket.
type TrendPoint struct {
	Period            string  `json:"period"`
	TotalPayments     float64 `json:"total_payments"`
	DoctorRevenue     float64 `json:"doctor_revenue"`
	ClinicRevenue     float64 `json:"clinic_revenue"`
	OperatingExpenses float64 `json:"operating_expenses"`
	NetProfit         float64 `json:"net_profit"`
	CashFlow          float64 `json:"cash_flow"`
	TreatmentCount    int     `json:"treatment_count"`
}

// bucketStart truncates t to the start of its bucket.
func bucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityQuarter:
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDay:
		return t.AddDate(0, 0, 1)
	case GranularityQuarter:
		return t.AddDate(0, 3, 0)
	case GranularityYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// bucketLabel renders a bucket start as 2024-03-01, 2024-03, 2024-Q1 or 2024.
func bucketLabel(t time.Time, g Granularity) string {
	switch g {
	case GranularityDay:
		return t.Format(dayLayout)
	case GranularityQuarter:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case GranularityYear:
		return fmt.Sprintf("%d", t.Year())
	default:
		return t.Format("2006-01")
	}
}

// Trend buckets the filtered records by g and applies the summary formulas
// per bucket. Records without a date cannot be placed and are skipped. When
// both bounds are set, empty buckets inside the range are emitted as zeros.
// The audit entry carries the summary of the whole filtered range.
func (a *Aggregator) Trend(in Inputs, rng DateRange, g Granularity) []TrendPoint {
	started := time.Now()
	filtered := in.Filter(rng)

	buckets := make(map[time.Time]*Inputs)
	slot := func(at time.Time, ok bool) *Inputs {
		if !ok {
			return nil
		}
		key := bucketStart(at, g)
		b, found := buckets[key]
		if !found {
			b = &Inputs{}
			buckets[key] = b
		}
		return b
	}
	for _, p := range filtered.Payments {
		if b := slot(p.OccurredOn()); b != nil {
			b.Payments = append(b.Payments, p)
		}
	}
	for _, e := range filtered.Expenses {
		if b := slot(e.OccurredOn()); b != nil {
			b.Expenses = append(b.Expenses, e)
		}
	}
	for _, t := range filtered.TreatmentRecords {
		if b := slot(t.OccurredOn()); b != nil {
			b.TreatmentRecords = append(b.TreatmentRecords, t)
		}
	}

	if !rng.Start.IsZero() && !rng.End.IsZero() && !rng.Inverted() {
		cursor := bucketStart(rng.Start, g)
		last := bucketStart(rng.End, g)
		for n := 0; !cursor.After(last) && n < maxTrendBuckets; n++ {
			if _, ok := buckets[cursor]; !ok {
				buckets[cursor] = &Inputs{}
			}
			cursor = nextBucket(cursor, g)
		}
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	points := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		s := Summarize(*buckets[k])
		points = append(points, TrendPoint{
			Period:            bucketLabel(k, g),
			TotalPayments:     s.TotalPayments,
			DoctorRevenue:     s.DoctorRevenue,
			ClinicRevenue:     s.ClinicRevenue,
			OperatingExpenses: s.OperatingExpenses,
			NetProfit:         s.NetProfit,
			CashFlow:          s.CashFlow,
			TreatmentCount:    s.Counts.TreatmentRecords,
		})
	}
	total := Summarize(filtered)
	total.StartDate = formatDay(rng.Start)
	total.EndDate = formatDay(rng.End)
	params := rangeParams(rng)
	params["granularity"] = string(g)
	a.observe(CalcTrend, params, total, time.Since(started))
	return points
}
