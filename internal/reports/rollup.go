package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/clinic-reports/internal/records"
)

// Placeholders for dangling references. UnknownKey groups records whose
// reference is blank; real ids are never blank so it cannot collide with
// one. UnknownLabel is how that group is shown in breakdowns.
const (
	UnknownKey      = ""
	UnknownLabel    = "unknown"
	UnknownPatient  = "Unknown patient"
	UnknownDentist  = "Unknown dentist"
	UnknownSupplier = "Unknown supplier"
)

// Metric names a numeric projection summed per group.
type Metric[T any] struct {
	Name  string
	Value func(T) float64
}

// Group holds the member count and metric totals for one key.
type Group struct {
	Count  int                `json:"count"`
	Totals map[string]float64 `json:"totals"`
}

// Rollup groups items by key and sums each metric per group. Map iteration
// order carries no meaning.
func Rollup[T any, K comparable](items []T, key func(T) K, metrics ...Metric[T]) map[K]Group {
	out := make(map[K]Group)
	for _, item := range items {
		k := key(item)
		g, ok := out[k]
		if !ok {
			g = Group{Totals: make(map[string]float64, len(metrics))}
			for _, m := range metrics {
				g.Totals[m.Name] = 0
			}
		}
		g.Count++
		for _, m := range metrics {
			g.Totals[m.Name] += m.Value(item)
		}
		out[k] = g
	}
	return out
}

// Ratio divides num by den, returning 0 when den is 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Percent is Ratio scaled to 100.
func Percent(num, den float64) float64 {
	return Ratio(num, den) * 100
}

func keyOrUnknown(id string) string {
	if strings.TrimSpace(id) == "" {
		return UnknownKey
	}
	return id
}

func lookupName(names map[string]string, id, placeholder string) string {
	if name, ok := names[id]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return placeholder
}

// PatientBalance is the per-patient receivable position.
type PatientBalance struct {
	PatientID          string    `json:"patient_id"`
	Name               string    `json:"name"`
	TreatmentCount     int       `json:"treatment_count"`
	TotalRevenue       float64   `json:"total_revenue"`
	PaymentCount       int       `json:"payment_count"`
	TotalPaid          float64   `json:"total_paid"`
	OutstandingBalance float64   `json:"outstanding_balance"`
	AveragePayment     float64   `json:"average_payment"`
	LastPaymentDate    time.Time `json:"last_payment_date,omitempty"`
}

// PatientBalances rolls treatments and payments up per patient. A positive
// OutstandingBalance means the patient still owes the clinic.
func PatientBalances(s records.Snapshot, rng DateRange) map[string]PatientBalance {
	names := make(map[string]string, len(s.Patients))
	for _, p := range s.Patients {
		names[p.ID] = p.Name
	}
	treatments := Rollup(FilterByDate(s.TreatmentRecords, rng, records.TreatmentRecord.OccurredOn),
		func(t records.TreatmentRecord) string { return keyOrUnknown(t.PatientID) },
		Metric[records.TreatmentRecord]{Name: "revenue", Value: func(t records.TreatmentRecord) float64 { return t.TotalTreatmentCost }},
	)
	payments := FilterByDate(s.Payments, rng, records.Payment.OccurredOn)
	paid := Rollup(payments,
		func(p records.Payment) string { return keyOrUnknown(p.PatientID) },
		Metric[records.Payment]{Name: "paid", Value: func(p records.Payment) float64 { return p.Amount }},
	)
	last := make(map[string]time.Time)
	for _, p := range payments {
		k := keyOrUnknown(p.PatientID)
		if p.Date.After(last[k]) {
			last[k] = p.Date
		}
	}

	out := make(map[string]PatientBalance, len(s.Patients))
	for _, p := range s.Patients {
		out[p.ID] = PatientBalance{PatientID: p.ID, Name: lookupName(names, p.ID, UnknownPatient)}
	}
	for id := range treatments {
		if _, ok := out[id]; !ok {
			out[id] = PatientBalance{PatientID: id, Name: lookupName(names, id, UnknownPatient)}
		}
	}
	for id := range paid {
		if _, ok := out[id]; !ok {
			out[id] = PatientBalance{PatientID: id, Name: lookupName(names, id, UnknownPatient)}
		}
	}
	for id, b := range out {
		t := treatments[id]
		p := paid[id]
		b.TreatmentCount = t.Count
		b.TotalRevenue = t.Totals["revenue"]
		b.PaymentCount = p.Count
		b.TotalPaid = p.Totals["paid"]
		b.OutstandingBalance = b.TotalRevenue - b.TotalPaid
		b.AveragePayment = Ratio(b.TotalPaid, float64(b.PaymentCount))
		b.LastPaymentDate = last[id]
		out[id] = b
	}
	return out
}

// DoctorStats is the per-dentist performance and settlement position.
type DoctorStats struct {
	DentistID             string  `json:"dentist_id"`
	Name                  string  `json:"name"`
	TreatmentCount        int     `json:"treatment_count"`
	TotalRevenue          float64 `json:"total_revenue"`
	TotalDoctorShare      float64 `json:"total_doctor_share"`
	TotalClinicShare      float64 `json:"total_clinic_share"`
	DoctorPercentage      float64 `json:"doctor_percentage"`
	AverageTreatmentValue float64 `json:"average_treatment_value"`
	PaymentCount          int     `json:"payment_count"`
	TotalPaymentsReceived float64 `json:"total_payments_received"`
	NetBalance            float64 `json:"net_balance"`
}

// DoctorPerformance rolls treatments and disbursements up per dentist. Every
// dentist in the dimension table is present even without activity. A
// positive NetBalance means the clinic still owes the doctor.
func DoctorPerformance(s records.Snapshot, rng DateRange) map[string]DoctorStats {
	names := make(map[string]string, len(s.Dentists))
	for _, d := range s.Dentists {
		names[d.ID] = d.Name
	}
	treatments := Rollup(FilterByDate(s.TreatmentRecords, rng, records.TreatmentRecord.OccurredOn),
		func(t records.TreatmentRecord) string { return keyOrUnknown(t.DentistID) },
		Metric[records.TreatmentRecord]{Name: "revenue", Value: func(t records.TreatmentRecord) float64 { return t.TotalTreatmentCost }},
		Metric[records.TreatmentRecord]{Name: "doctor_share", Value: func(t records.TreatmentRecord) float64 { return t.DoctorShare }},
		Metric[records.TreatmentRecord]{Name: "clinic_share", Value: func(t records.TreatmentRecord) float64 { return t.ClinicShare }},
	)
	disbursed := Rollup(FilterByDate(s.DoctorPayments, rng, records.DoctorPayment.OccurredOn),
		func(d records.DoctorPayment) string { return keyOrUnknown(d.DentistID) },
		Metric[records.DoctorPayment]{Name: "amount", Value: func(d records.DoctorPayment) float64 { return d.Amount }},
	)

	out := make(map[string]DoctorStats, len(s.Dentists))
	seed := func(id string) {
		if _, ok := out[id]; !ok {
			out[id] = DoctorStats{DentistID: id, Name: lookupName(names, id, UnknownDentist)}
		}
	}
	for _, d := range s.Dentists {
		seed(d.ID)
	}
	for id := range treatments {
		seed(id)
	}
	for id := range disbursed {
		seed(id)
	}
	for id, st := range out {
		t := treatments[id]
		d := disbursed[id]
		st.TreatmentCount = t.Count
		st.TotalRevenue = t.Totals["revenue"]
		st.TotalDoctorShare = t.Totals["doctor_share"]
		st.TotalClinicShare = t.Totals["clinic_share"]
		st.DoctorPercentage = Percent(st.TotalDoctorShare, st.TotalRevenue)
		st.AverageTreatmentValue = Ratio(st.TotalRevenue, float64(st.TreatmentCount))
		st.PaymentCount = d.Count
		st.TotalPaymentsReceived = d.Totals["amount"]
		st.NetBalance = st.TotalDoctorShare - st.TotalPaymentsReceived
		out[id] = st
	}
	return out
}

// SupplierStats summarises invoices, linked expenses and stock per supplier.
type SupplierStats struct {
	SupplierID     string  `json:"supplier_id"`
	Name           string  `json:"name"`
	InvoiceCount   int     `json:"invoice_count"`
	TotalInvoiced  float64 `json:"total_invoiced"`
	PaidAmount     float64 `json:"paid_amount"`
	UnpaidAmount   float64 `json:"unpaid_amount"`
	PaidPercentage float64 `json:"paid_percentage"`
	ExpenseCount   int     `json:"expense_count"`
	ExpenseTotal   float64 `json:"expense_total"`
	InventoryValue float64 `json:"inventory_value"`
}

// SupplierActivity rolls invoices and supplier-linked expenses up per
// supplier. Inventory value reflects current stock and ignores rng.
func SupplierActivity(s records.Snapshot, rng DateRange) map[string]SupplierStats {
	names := make(map[string]string, len(s.Suppliers))
	for _, sup := range s.Suppliers {
		names[sup.ID] = sup.Name
	}
	invoices := Rollup(FilterByDate(s.SupplierInvoices, rng, records.SupplierInvoice.OccurredOn),
		func(inv records.SupplierInvoice) string { return keyOrUnknown(inv.SupplierID) },
		Metric[records.SupplierInvoice]{Name: "total", Value: func(inv records.SupplierInvoice) float64 { return inv.Amount }},
		Metric[records.SupplierInvoice]{Name: "paid", Value: func(inv records.SupplierInvoice) float64 {
			if inv.Status == records.InvoiceStatusPaid {
				return inv.Amount
			}
			return 0
		}},
		Metric[records.SupplierInvoice]{Name: "unpaid", Value: func(inv records.SupplierInvoice) float64 {
			if inv.Status == records.InvoiceStatusUnpaid {
				return inv.Amount
			}
			return 0
		}},
	)
	linked := make([]records.Expense, 0)
	for _, e := range FilterByDate(s.Expenses, rng, records.Expense.OccurredOn) {
		if e.SupplierID != "" {
			linked = append(linked, e)
		}
	}
	expenses := Rollup(linked,
		func(e records.Expense) string { return e.SupplierID },
		Metric[records.Expense]{Name: "amount", Value: func(e records.Expense) float64 { return e.Amount }},
	)
	stock := Rollup(s.InventoryItems,
		func(i records.InventoryItem) string { return keyOrUnknown(i.SupplierID) },
		Metric[records.InventoryItem]{Name: "value", Value: records.InventoryItem.StockValue},
	)

	out := make(map[string]SupplierStats, len(s.Suppliers))
	seed := func(id string) {
		if _, ok := out[id]; !ok {
			out[id] = SupplierStats{SupplierID: id, Name: lookupName(names, id, UnknownSupplier)}
		}
	}
	for _, sup := range s.Suppliers {
		seed(sup.ID)
	}
	for id := range invoices {
		seed(id)
	}
	for id := range expenses {
		seed(id)
	}
	for id := range stock {
		seed(id)
	}
	for id, st := range out {
		inv := invoices[id]
		st.InvoiceCount = inv.Count
		st.TotalInvoiced = inv.Totals["total"]
		st.PaidAmount = inv.Totals["paid"]
		st.UnpaidAmount = inv.Totals["unpaid"]
		st.PaidPercentage = Percent(st.PaidAmount, st.TotalInvoiced)
		st.ExpenseCount = expenses[id].Count
		st.ExpenseTotal = expenses[id].Totals["amount"]
		st.InventoryValue = stock[id].Totals["value"]
		out[id] = st
	}
	return out
}

// Breakdown is a generic per-label share of a total.
type Breakdown struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Share   float64 `json:"share"`
}

// TreatmentTypeStats rolls treatments up by treatment name.
type TreatmentTypeStats struct {
	Breakdown
	DoctorShare float64 `json:"doctor_share"`
	ClinicShare float64 `json:"clinic_share"`
}

// TreatmentTypes groups treatments by name. Share is the percentage of total
// treatment revenue.
func TreatmentTypes(s records.Snapshot, rng DateRange) map[string]TreatmentTypeStats {
	groups := Rollup(FilterByDate(s.TreatmentRecords, rng, records.TreatmentRecord.OccurredOn),
		func(t records.TreatmentRecord) string { return keyOrUnknown(t.TreatmentName) },
		Metric[records.TreatmentRecord]{Name: "revenue", Value: func(t records.TreatmentRecord) float64 { return t.TotalTreatmentCost }},
		Metric[records.TreatmentRecord]{Name: "doctor_share", Value: func(t records.TreatmentRecord) float64 { return t.DoctorShare }},
		Metric[records.TreatmentRecord]{Name: "clinic_share", Value: func(t records.TreatmentRecord) float64 { return t.ClinicShare }},
	)
	var total float64
	for _, g := range groups {
		total += g.Totals["revenue"]
	}
	out := make(map[string]TreatmentTypeStats, len(groups))
	for name, g := range groups {
		out[name] = TreatmentTypeStats{
			Breakdown:   breakdown(name, g, "revenue", total),
			DoctorShare: g.Totals["doctor_share"],
			ClinicShare: g.Totals["clinic_share"],
		}
	}
	return out
}

// ExpenseCategories groups operating expenses by category.
func ExpenseCategories(s records.Snapshot, rng DateRange) map[string]Breakdown {
	groups := Rollup(FilterByDate(s.Expenses, rng, records.Expense.OccurredOn),
		func(e records.Expense) string { return keyOrUnknown(string(e.Category)) },
		Metric[records.Expense]{Name: "amount", Value: func(e records.Expense) float64 { return e.Amount }},
	)
	return breakdowns(groups, "amount")
}

// PaymentMethods groups patient payments by method.
func PaymentMethods(s records.Snapshot, rng DateRange) map[string]Breakdown {
	groups := Rollup(FilterByDate(s.Payments, rng, records.Payment.OccurredOn),
		func(p records.Payment) string { return keyOrUnknown(string(p.Method)) },
		Metric[records.Payment]{Name: "amount", Value: func(p records.Payment) float64 { return p.Amount }},
	)
	return breakdowns(groups, "amount")
}

func breakdowns(groups map[string]Group, metric string) map[string]Breakdown {
	var total float64
	for _, g := range groups {
		total += g.Totals[metric]
	}
	out := make(map[string]Breakdown, len(groups))
	for key, g := range groups {
		out[key] = breakdown(key, g, metric, total)
	}
	return out
}

func breakdown(key string, g Group, metric string, total float64) Breakdown {
	sum := g.Totals[metric]
	if key == UnknownKey {
		key = UnknownLabel
	}
	return Breakdown{
		Key:     key,
		Count:   g.Count,
		Total:   sum,
		Average: Ratio(sum, float64(g.Count)),
		Share:   Percent(sum, total),
	}
}

// InventoryStatus values the current stock.
type InventoryStatus struct {
	ItemCount      int     `json:"item_count"`
	UnitCount      int     `json:"unit_count"`
	TotalValue     float64 `json:"total_value"`
	AverageValue   float64 `json:"average_value"`
	OutOfStock     int     `json:"out_of_stock"`
	Expired        int     `json:"expired"`
	ExpiringSoon   int     `json:"expiring_soon"`
	ExpiredValue   float64 `json:"expired_value"`
	ExpiringWithin int     `json:"expiring_within_days"`
}

// InventoryValuation values stock as of asOf and counts items expiring
// within window days.
func InventoryValuation(items []records.InventoryItem, asOf time.Time, window int) InventoryStatus {
	status := InventoryStatus{ExpiringWithin: window}
	today := startOfDay(asOf)
	horizon := today.AddDate(0, 0, window)
	for _, item := range items {
		status.ItemCount++
		status.UnitCount += item.CurrentStock
		status.TotalValue += item.StockValue()
		if item.CurrentStock <= 0 {
			status.OutOfStock++
		}
		if item.ExpiryDate == nil {
			continue
		}
		expiry := startOfDay(*item.ExpiryDate)
		switch {
		case expiry.Before(today):
			status.Expired++
			status.ExpiredValue += item.StockValue()
		case !expiry.After(horizon):
			status.ExpiringSoon++
		}
	}
	status.AverageValue = Ratio(status.TotalValue, float64(status.ItemCount))
	return status
}

// SortedDesc flattens a rollup map ordered by value descending, ties broken by key.
func SortedDesc[T any](rows map[string]T, value func(T) float64) []T {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		vi, vj := value(rows[keys[i]]), value(rows[keys[j]])
		if vi != vj {
			return vi > vj
		}
		return keys[i] < keys[j]
	})
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, rows[k])
	}
	return out
}
