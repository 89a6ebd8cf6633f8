package reports

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/clinic-reports/internal/records"
)

func TestAggregateSingleDay(t *testing.T) {
	in := Inputs{
		Payments: []records.Payment{{Amount: 1000, DoctorShare: 400, ClinicShare: ptr(600.0), Date: day("2024-03-01")}},
		Expenses: []records.Expense{{Amount: 200, Date: day("2024-03-01")}},
	}
	s := (&Aggregator{}).Aggregate(in, mustRange(t, "2024-03-01", "2024-03-01"))

	if s.TotalPayments != 1000 || s.DoctorRevenue != 400 || s.ClinicRevenue != 600 {
		t.Fatalf("unexpected revenue split %+v", s)
	}
	if s.OperatingExpenses != 200 {
		t.Fatalf("expected operating expenses 200 got %v", s.OperatingExpenses)
	}
	if s.NetProfit != 400 {
		t.Fatalf("expected net profit 400 got %v", s.NetProfit)
	}
	if s.CashFlow != 800 {
		t.Fatalf("expected cash flow 800 got %v", s.CashFlow)
	}
	if s.StartDate != "2024-03-01" || s.EndDate != "2024-03-01" {
		t.Fatalf("expected range echo, got %s..%s", s.StartDate, s.EndDate)
	}
}

func TestAggregateNoOverlapIsZero(t *testing.T) {
	in := Inputs{
		Payments: []records.Payment{{Amount: 1000, DoctorShare: 400, Date: day("2024-03-01")}},
		Expenses: []records.Expense{{Amount: 200, Date: day("2024-03-01")}},
	}
	s := (&Aggregator{}).Aggregate(in, mustRange(t, "2024-03-02", "2024-03-02"))
	assert.Zero(t, s.TotalPayments)
	assert.Zero(t, s.DoctorRevenue)
	assert.Zero(t, s.OperatingExpenses)
	assert.Zero(t, s.NetProfit)
	assert.Zero(t, s.CashFlow)
	assert.Equal(t, RecordCounts{}, s.Counts)
}

func TestAggregateSupplierInvoiceStatus(t *testing.T) {
	in := Inputs{SupplierInvoices: []records.SupplierInvoice{
		{Amount: 500, Status: records.InvoiceStatusUnpaid},
		{Amount: 300, Status: records.InvoiceStatusPaid},
	}}
	s := (&Aggregator{}).Aggregate(in, DateRange{})
	assert.Equal(t, 500.0, s.UnpaidInvoices)
	assert.Equal(t, 300.0, s.PaidInvoices)
	assert.Equal(t, 800.0, s.TotalSupplierInvoices)
	assert.Equal(t, 500.0, s.AccountsPayable)
	assert.Equal(t, 500.0, s.TotalLiabilities)
}

func TestAggregateInvertedRangeIsAllZero(t *testing.T) {
	s := (&Aggregator{}).Aggregate(InputsFrom(clinicSnapshot()), mustRange(t, "2024-03-10", "2024-03-01"))
	want := FinancialSummary{StartDate: "2024-03-10", EndDate: "2024-03-01"}
	assert.Equal(t, want, s)
}

func TestAggregateFullBook(t *testing.T) {
	s := (&Aggregator{}).Aggregate(InputsFrom(clinicSnapshot()), DateRange{})
	assert.Equal(t, 2300.0, s.TotalPayments)
	assert.Equal(t, 920.0, s.DoctorRevenue)
	assert.Equal(t, 1380.0, s.ClinicRevenue)
	assert.Equal(t, 1575.0, s.OperatingExpenses)
	assert.Equal(t, 500.0, s.DoctorPaymentsTotal)
	assert.Equal(t, 3000.0, s.TotalTreatmentCost)
	assert.Equal(t, 700.0, s.AccountsReceivable)
	assert.Equal(t, -195.0, s.NetProfit)
	assert.Equal(t, 725.0, s.CashFlow)
	assert.Equal(t, 725.0, s.CashAndEquivalents)
	assert.Equal(t, 1425.0, s.TotalAssets)
	assert.Equal(t, -195.0, s.Equity)
	assert.Equal(t, RecordCounts{
		Payments: 3, Expenses: 4, TreatmentRecords: 3, DoctorPayments: 1, SupplierInvoices: 2, Patients: 2,
	}, s.Counts)
}

func TestAggregateMarchKeepsUndatedExpense(t *testing.T) {
	s := (&Aggregator{}).Aggregate(InputsFrom(clinicSnapshot()), mustRange(t, "2024-03-01", "2024-03-31"))
	assert.Equal(t, 1500.0, s.TotalPayments)
	assert.Equal(t, 875.0, s.OperatingExpenses)
	assert.Equal(t, 25.0, s.NetProfit)
	assert.Equal(t, 625.0, s.CashFlow)
	assert.Equal(t, 500.0, s.AccountsReceivable)
	assert.Equal(t, 3, s.Counts.Expenses)
}

// Doctor disbursements and supplier invoices do not reduce net profit.
func TestNetProfitExcludesDisbursementsAndInvoices(t *testing.T) {
	base := Inputs{
		Payments: []records.Payment{{Amount: 1000, DoctorShare: 400}},
		Expenses: []records.Expense{{Amount: 100}},
	}
	withOutflows := base
	withOutflows.DoctorPayments = []records.DoctorPayment{{Amount: 400}}
	withOutflows.SupplierInvoices = []records.SupplierInvoice{{Amount: 250, Status: records.InvoiceStatusPaid}}

	a := Summarize(base)
	b := Summarize(withOutflows)
	require.Equal(t, 500.0, a.NetProfit)
	assert.Equal(t, a.NetProfit, b.NetProfit)
	assert.Equal(t, a.CashFlow, b.CashFlow)
	assert.Equal(t, 400.0, b.DoctorPaymentsTotal)
}

func TestSummaryIdentitiesHoldExactly(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		var in Inputs
		payments, expenses := r.Intn(20), r.Intn(10)
		for j := 0; j < payments; j++ {
			amount := float64(r.Intn(100000)) / 100
			in.Payments = append(in.Payments, records.Payment{Amount: amount, DoctorShare: amount * r.Float64()})
		}
		for j := 0; j < expenses; j++ {
			in.Expenses = append(in.Expenses, records.Expense{Amount: float64(r.Intn(50000)) / 100})
		}
		s := Summarize(in)
		if s.NetProfit != s.TotalPayments-s.DoctorRevenue-s.OperatingExpenses {
			t.Fatalf("net profit identity broken: %+v", s)
		}
		if s.ClinicRevenue != s.TotalPayments-s.DoctorRevenue {
			t.Fatalf("clinic revenue identity broken: %+v", s)
		}
		if s.TotalAssets != s.CashAndEquivalents+s.AccountsReceivable {
			t.Fatalf("asset identity broken: %+v", s)
		}
	}
}

func TestFixtureTreatmentsBalanceShares(t *testing.T) {
	for _, tr := range clinicSnapshot().TreatmentRecords {
		if !tr.SharesBalanced(1e-9) {
			t.Fatalf("treatment %s shares do not add up", tr.ID)
		}
	}
}

type countingRecorder struct {
	kinds []string
}

func (r *countingRecorder) ObserveCalculation(kind string, _ time.Duration) {
	r.kinds = append(r.kinds, kind)
}

type panickingRecorder struct{}

func (panickingRecorder) ObserveCalculation(string, time.Duration) { panic("boom") }

func TestAggregateRecordsAuditAndMetrics(t *testing.T) {
	audit := NewAuditLog(10)
	rec := &countingRecorder{}
	agg := NewAggregator(audit, rec)

	s := agg.Aggregate(InputsFrom(clinicSnapshot()), mustRange(t, "2024-03-01", "2024-03-31"))
	require.Equal(t, 1, audit.Len())
	entry := audit.Entries()[0]
	assert.Equal(t, CalcSummary, entry.CalculationType)
	assert.Equal(t, "2024-03-01", entry.Params["start_date"])
	assert.Equal(t, "2024-03-31", entry.Params["end_date"])
	assert.Equal(t, s, entry.Result)
	assert.Equal(t, s.Counts, entry.Counts)
	assert.Equal(t, []string{CalcSummary}, rec.kinds)
}

func TestAggregateSurvivesPanickingRecorder(t *testing.T) {
	audit := NewAuditLog(10)
	agg := NewAggregator(audit, panickingRecorder{})
	s := agg.Aggregate(InputsFrom(clinicSnapshot()), DateRange{})
	assert.Equal(t, 2300.0, s.TotalPayments)
	assert.Equal(t, 1, audit.Len())
}

func ptr[T any](v T) *T {
	return &v
}
