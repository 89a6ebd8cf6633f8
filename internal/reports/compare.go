package reports

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrUnboundedRange indicates a comparison over a range missing a bound.
	ErrUnboundedRange = errors.New("reports: comparison needs both start and end dates")
	// ErrInvertedRange indicates a comparison over a range whose start is after its end.
	ErrInvertedRange = errors.New("reports: start date is after end date")
)

// Polarity tells whether growth in a metric is good news.
type Polarity int

const (
	HigherIsBetter Polarity = iota
	LowerIsBetter
)

type comparableField struct {
	name     string
	polarity Polarity
	value    func(FinancialSummary) float64
}

var comparedFields = []comparableField{
	{"total_payments", HigherIsBetter, func(s FinancialSummary) float64 { return s.TotalPayments }},
	{"clinic_revenue", HigherIsBetter, func(s FinancialSummary) float64 { return s.ClinicRevenue }},
	{"doctor_revenue", HigherIsBetter, func(s FinancialSummary) float64 { return s.DoctorRevenue }},
	{"net_profit", HigherIsBetter, func(s FinancialSummary) float64 { return s.NetProfit }},
	{"cash_flow", HigherIsBetter, func(s FinancialSummary) float64 { return s.CashFlow }},
	{"treatment_count", HigherIsBetter, func(s FinancialSummary) float64 { return float64(s.Counts.TreatmentRecords) }},
	{"patient_count", HigherIsBetter, func(s FinancialSummary) float64 { return float64(s.Counts.Patients) }},
	{"payment_count", HigherIsBetter, func(s FinancialSummary) float64 { return float64(s.Counts.Payments) }},
	{"operating_expenses", LowerIsBetter, func(s FinancialSummary) float64 { return s.OperatingExpenses }},
	{"doctor_payments_total", LowerIsBetter, func(s FinancialSummary) float64 { return s.DoctorPaymentsTotal }},
	{"total_supplier_invoices", LowerIsBetter, func(s FinancialSummary) float64 { return s.TotalSupplierInvoices }},
	{"expense_count", LowerIsBetter, func(s FinancialSummary) float64 { return float64(s.Counts.Expenses) }},
}

// Delta is the movement of one metric against the previous period. Percent
// is nil when the previous value is zero: no trend can be stated.
type Delta struct {
	Field      string   `json:"field"`
	Current    float64  `json:"current"`
	Previous   float64  `json:"previous"`
	Percent    *float64 `json:"percent,omitempty"`
	IsPositive bool     `json:"is_positive"`
}

// Defined reports whether a percentage could be computed.
func (d Delta) Defined() bool {
	return d.Percent != nil
}

// Comparison holds a period, its predecessor and per-field deltas.
type Comparison struct {
	Current        FinancialSummary `json:"current"`
	Previous       FinancialSummary `json:"previous"`
	PreviousWindow DateRange        `json:"previous_window"`
	PeriodDays     int              `json:"period_days"`
	Deltas         []Delta          `json:"deltas"`
}

// Delta returns the delta for field.
func (c Comparison) Delta(field string) (Delta, bool) {
	for _, d := range c.Deltas {
		if d.Field == field {
			return d, true
		}
	}
	return Delta{}, false
}

// PreviousWindow returns the equal-length window ending the day before rng
// starts, along with the period length in days.
func PreviousWindow(rng DateRange) (DateRange, int, error) {
	if rng.Start.IsZero() || rng.End.IsZero() {
		return DateRange{}, 0, ErrUnboundedRange
	}
	start := startOfDay(rng.Start)
	end := startOfDay(rng.End)
	if start.After(end) {
		return DateRange{}, 0, ErrInvertedRange
	}
	days := daysBetween(start, end) + 1
	return DateRange{
		Start: start.AddDate(0, 0, -days),
		End:   end.AddDate(0, 0, -days),
	}, days, nil
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Comparator aggregates a period and its predecessor.
type Comparator struct {
	aggregator *Aggregator
}

// NewComparator wires a Comparator around an Aggregator.
func NewComparator(aggregator *Aggregator) *Comparator {
	return &Comparator{aggregator: aggregator}
}

// Compare aggregates rng and the window immediately before it.
func (c *Comparator) Compare(in Inputs, rng DateRange) (Comparison, error) {
	prevRange, days, err := PreviousWindow(rng)
	if err != nil {
		return Comparison{}, err
	}
	var agg *Aggregator
	if c != nil {
		agg = c.aggregator
	}
	current := agg.aggregate(CalcCompareCurrent, in, rng)
	previous := agg.aggregate(CalcComparePrevious, in, prevRange)
	return Comparison{
		Current:        current,
		Previous:       previous,
		PreviousWindow: prevRange,
		PeriodDays:     days,
		Deltas:         ComputeDeltas(current, previous),
	}, nil
}

// ComputeDeltas compares every tracked field of two summaries.
func ComputeDeltas(current, previous FinancialSummary) []Delta {
	deltas := make([]Delta, 0, len(comparedFields))
	for _, f := range comparedFields {
		cur, prev := f.value(current), f.value(previous)
		deltas = append(deltas, Delta{
			Field:      f.name,
			Current:    cur,
			Previous:   prev,
			Percent:    changePercent(cur, prev),
			IsPositive: isPositive(f.polarity, cur, prev),
		})
	}
	return deltas
}

func changePercent(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	pct := math.Abs(current-previous) / math.Abs(previous) * 100
	return &pct
}

func isPositive(p Polarity, current, previous float64) bool {
	if p == LowerIsBetter {
		return current <= previous
	}
	return current >= previous
}
