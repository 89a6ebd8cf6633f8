package main

import (
	"encoding/json"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/clinic-reports/internal/reports"
)

var printer = message.NewPrinter(language.English)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func renderSummary(out io.Writer, rng reports.DateRange, s reports.FinancialSummary) error {
	printer.Fprintf(out, "Period %s\n", rng)
	tw := newTable(out)
	rows := []struct {
		label string
		value float64
	}{
		{"Total payments", s.TotalPayments},
		{"Doctor revenue", s.DoctorRevenue},
		{"Clinic revenue", s.ClinicRevenue},
		{"Operating expenses", s.OperatingExpenses},
		{"Doctor payments", s.DoctorPaymentsTotal},
		{"Supplier invoices", s.TotalSupplierInvoices},
		{"Unpaid invoices", s.UnpaidInvoices},
		{"Treatment cost", s.TotalTreatmentCost},
		{"Accounts receivable", s.AccountsReceivable},
		{"Net profit", s.NetProfit},
		{"Cash flow", s.CashFlow},
		{"Total assets", s.TotalAssets},
		{"Total liabilities", s.TotalLiabilities},
		{"Equity", s.Equity},
	}
	for _, row := range rows {
		printer.Fprintf(tw, "%s\t%.2f\t\n", row.label, row.value)
	}
	return tw.Flush()
}

func renderComparison(out io.Writer, rng reports.DateRange, cmp reports.Comparison) error {
	printer.Fprintf(out, "Period %s vs %s (%d days)\n", rng, cmp.PreviousWindow, cmp.PeriodDays)
	tw := newTable(out)
	printer.Fprintf(tw, "Field\tCurrent\tPrevious\tChange\t\n")
	for _, d := range cmp.Deltas {
		change := "n/a"
		if d.Defined() {
			change = printer.Sprintf("%+.1f%%", *d.Percent)
		}
		printer.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\t\n", d.Field, d.Current, d.Previous, change)
	}
	return tw.Flush()
}

func renderTrend(out io.Writer, points []reports.TrendPoint) error {
	tw := newTable(out)
	printer.Fprintf(tw, "Period\tPayments\tExpenses\tNet profit\tTreatments\t\n")
	for _, p := range points {
		printer.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", p.Period, p.TotalPayments, p.OperatingExpenses, p.NetProfit, p.TreatmentCount)
	}
	return tw.Flush()
}
