package reports

import (
	"time"

	"github.com/odyssey-erp/clinic-reports/internal/records"
)

// Calculation types written to the audit log and metrics.
const (
	CalcSummary         = "summary"
	CalcCompareCurrent  = "compare.current"
	CalcComparePrevious = "compare.previous"
	CalcTrend           = "trend"
)

// Inputs are the record sets the aggregator consumes.
type Inputs struct {
	Payments         []records.Payment
	Expenses         []records.Expense
	TreatmentRecords []records.TreatmentRecord
	DoctorPayments   []records.DoctorPayment
	SupplierInvoices []records.SupplierInvoice
}

// InputsFrom extracts the aggregator inputs from a snapshot.
func InputsFrom(s records.Snapshot) Inputs {
	return Inputs{
		Payments:         s.Payments,
		Expenses:         s.Expenses,
		TreatmentRecords: s.TreatmentRecords,
		DoctorPayments:   s.DoctorPayments,
		SupplierInvoices: s.SupplierInvoices,
	}
}

// Filter narrows every record set to rng using each kind's own date.
func (in Inputs) Filter(rng DateRange) Inputs {
	return Inputs{
		Payments:         FilterByDate(in.Payments, rng, records.Payment.OccurredOn),
		Expenses:         FilterByDate(in.Expenses, rng, records.Expense.OccurredOn),
		TreatmentRecords: FilterByDate(in.TreatmentRecords, rng, records.TreatmentRecord.OccurredOn),
		DoctorPayments:   FilterByDate(in.DoctorPayments, rng, records.DoctorPayment.OccurredOn),
		SupplierInvoices: FilterByDate(in.SupplierInvoices, rng, records.SupplierInvoice.OccurredOn),
	}
}

// RecordCounts sizes each filtered record set.
type RecordCounts struct {
	Payments         int `json:"payments"`
	Expenses         int `json:"expenses"`
	TreatmentRecords int `json:"treatment_records"`
	DoctorPayments   int `json:"doctor_payments"`
	SupplierInvoices int `json:"supplier_invoices"`
	Patients         int `json:"patients"`
}

// FinancialSummary is the derived figure set shared by every report view.
type FinancialSummary struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	TotalPayments         float64 `json:"total_payments"`
	DoctorRevenue         float64 `json:"doctor_revenue"`
	ClinicRevenue         float64 `json:"clinic_revenue"`
	OperatingExpenses     float64 `json:"operating_expenses"`
	DoctorPaymentsTotal   float64 `json:"doctor_payments_total"`
	TotalSupplierInvoices float64 `json:"total_supplier_invoices"`
	UnpaidInvoices        float64 `json:"unpaid_invoices"`
	PaidInvoices          float64 `json:"paid_invoices"`
	TotalTreatmentCost    float64 `json:"total_treatment_cost"`
	AccountsReceivable    float64 `json:"accounts_receivable"`
	NetProfit             float64 `json:"net_profit"`
	CashFlow              float64 `json:"cash_flow"`

	CashAndEquivalents float64 `json:"cash_and_equivalents"`
	TotalAssets        float64 `json:"total_assets"`
	AccountsPayable    float64 `json:"accounts_payable"`
	TotalLiabilities   float64 `json:"total_liabilities"`
	Equity             float64 `json:"equity"`

	Counts RecordCounts `json:"counts"`
}

// Recorder receives timing for each calculation.
type Recorder interface {
	ObserveCalculation(kind string, elapsed time.Duration)
}

// Aggregator computes FinancialSummary values. The zero value is usable and
// skips auditing and metrics.
type Aggregator struct {
	audit    *AuditLog
	recorder Recorder
}

// NewAggregator wires an Aggregator with an optional audit log and recorder.
func NewAggregator(audit *AuditLog, recorder Recorder) *Aggregator {
	return &Aggregator{audit: audit, recorder: recorder}
}

// Audit exposes the attached audit log, which may be nil.
func (a *Aggregator) Audit() *AuditLog {
	if a == nil {
		return nil
	}
	return a.audit
}

// Aggregate filters in by rng and derives the summary.
func (a *Aggregator) Aggregate(in Inputs, rng DateRange) FinancialSummary {
	return a.aggregate(CalcSummary, in, rng)
}

func (a *Aggregator) aggregate(kind string, in Inputs, rng DateRange) FinancialSummary {
	started := time.Now()
	summary := Summarize(in.Filter(rng))
	summary.StartDate = formatDay(rng.Start)
	summary.EndDate = formatDay(rng.End)
	a.observe(kind, rangeParams(rng), summary, time.Since(started))
	return summary
}

// observe appends the audit entry and reports the timing. A panicking
// recorder is swallowed so the calculation result stands.
func (a *Aggregator) observe(kind string, params map[string]string, summary FinancialSummary, elapsed time.Duration) {
	if a == nil {
		return
	}
	a.audit.Record(AuditEntry{
		CalculationType: kind,
		Params:          params,
		Result:          summary,
		Counts:          summary.Counts,
	})
	if a.recorder != nil {
		defer func() { _ = recover() }()
		a.recorder.ObserveCalculation(kind, elapsed)
	}
}

// Summarize applies the summary formulas to already-filtered inputs.
//
// NetProfit leaves out doctor disbursements and supplier invoices; both are
// reported as their own cash and liability lines.
func Summarize(in Inputs) FinancialSummary {
	var s FinancialSummary
	patients := make(map[string]struct{})

	for _, p := range in.Payments {
		s.TotalPayments += p.Amount
		s.DoctorRevenue += p.DoctorShare
		if p.PatientID != "" {
			patients[p.PatientID] = struct{}{}
		}
	}
	for _, e := range in.Expenses {
		s.OperatingExpenses += e.Amount
	}
	for _, d := range in.DoctorPayments {
		s.DoctorPaymentsTotal += d.Amount
	}
	for _, inv := range in.SupplierInvoices {
		s.TotalSupplierInvoices += inv.Amount
		switch inv.Status {
		case records.InvoiceStatusUnpaid:
			s.UnpaidInvoices += inv.Amount
		case records.InvoiceStatusPaid:
			s.PaidInvoices += inv.Amount
		}
	}
	for _, t := range in.TreatmentRecords {
		s.TotalTreatmentCost += t.TotalTreatmentCost
		if t.PatientID != "" {
			patients[t.PatientID] = struct{}{}
		}
	}

	s.ClinicRevenue = s.TotalPayments - s.DoctorRevenue
	s.AccountsReceivable = s.TotalTreatmentCost - s.TotalPayments
	s.NetProfit = s.TotalPayments - s.DoctorRevenue - s.OperatingExpenses
	s.CashFlow = s.TotalPayments - s.OperatingExpenses
	s.CashAndEquivalents = s.CashFlow
	s.TotalAssets = s.CashAndEquivalents + s.AccountsReceivable
	s.AccountsPayable = s.UnpaidInvoices
	s.TotalLiabilities = s.AccountsPayable
	s.Equity = s.NetProfit

	s.Counts = RecordCounts{
		Payments:         len(in.Payments),
		Expenses:         len(in.Expenses),
		TreatmentRecords: len(in.TreatmentRecords),
		DoctorPayments:   len(in.DoctorPayments),
		SupplierInvoices: len(in.SupplierInvoices),
		Patients:         len(patients),
	}
	return s
}

func rangeParams(rng DateRange) map[string]string {
	return map[string]string{
		"start_date": formatDay(rng.Start),
		"end_date":   formatDay(rng.End),
	}
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dayLayout)
}
