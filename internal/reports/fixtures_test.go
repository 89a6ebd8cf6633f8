package reports

import (
	"testing"
	"time"

	"github.com/odyssey-erp/clinic-reports/internal/records"
)

func day(raw string) time.Time {
	t, err := time.ParseInLocation(dayLayout, raw, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func mustRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	rng, err := ParseDateRange(start, end)
	if err != nil {
		t.Fatalf("parse range %s..%s: %v", start, end, err)
	}
	return rng
}

// clinicSnapshot is a small two-month book: two dentists (one idle), three
// patients, March and February activity plus one undated expense.
func clinicSnapshot() records.Snapshot {
	return records.Snapshot{
		Patients: []records.Patient{
			{ID: "p1", Name: "Lina Haddad"},
			{ID: "p2", Name: "Omar Saleh"},
			{ID: "p3", Name: "Rana Issa"},
		},
		Dentists: []records.Dentist{
			{ID: "d1", Name: "Dr. Karim"},
			{ID: "d2", Name: "Dr. Nour"},
		},
		Suppliers: []records.Supplier{
			{ID: "s1", Name: "DentalCo"},
			{ID: "s2", Name: "OrthoSupply"},
		},
		TreatmentRecords: []records.TreatmentRecord{
			{ID: "t1", PatientID: "p1", DentistID: "d1", TreatmentName: "Filling", TotalTreatmentCost: 1500, DoctorShare: 600, ClinicShare: 900, TreatmentDate: day("2024-03-01")},
			{ID: "t2", PatientID: "p2", DentistID: "d1", TreatmentName: "Cleaning", TotalTreatmentCost: 500, DoctorShare: 200, ClinicShare: 300, TreatmentDate: day("2024-03-05")},
			{ID: "t3", PatientID: "p1", DentistID: "d1", TreatmentName: "Filling", TotalTreatmentCost: 1000, DoctorShare: 400, ClinicShare: 600, TreatmentDate: day("2024-02-10")},
		},
		Payments: []records.Payment{
			{ID: "pay1", PatientID: "p1", Amount: 1000, DoctorShare: 400, Method: records.PaymentMethodCash, Date: day("2024-03-01")},
			{ID: "pay2", PatientID: "p2", Amount: 500, DoctorShare: 200, Method: records.PaymentMethodCard, Date: day("2024-03-06")},
			{ID: "pay3", PatientID: "p1", Amount: 800, DoctorShare: 320, Method: records.PaymentMethodCash, Date: day("2024-02-12")},
		},
		Expenses: []records.Expense{
			{ID: "e1", Description: "Rent", Amount: 700, Category: records.ExpenseCategoryRent, Date: day("2024-03-01")},
			{ID: "e2", Description: "Gloves", Amount: 150, Category: records.ExpenseCategorySupplies, Date: day("2024-03-03"), SupplierID: "s1"},
			{ID: "e3", Description: "Rent", Amount: 700, Category: records.ExpenseCategoryRent, Date: day("2024-02-01")},
			{ID: "e4", Description: "Unlabelled", Amount: 25, Category: records.ExpenseCategoryOther},
		},
		DoctorPayments: []records.DoctorPayment{
			{ID: "dp1", DentistID: "d1", Amount: 500, Date: day("2024-03-10")},
		},
		SupplierInvoices: []records.SupplierInvoice{
			{ID: "i1", SupplierID: "s1", InvoiceNumber: "INV-1", Amount: 500, InvoiceDate: day("2024-03-02"), Status: records.InvoiceStatusUnpaid},
			{ID: "i2", SupplierID: "s1", InvoiceNumber: "INV-2", Amount: 300, InvoiceDate: day("2024-03-04"), Status: records.InvoiceStatusPaid},
		},
		InventoryItems: []records.InventoryItem{
			{ID: "inv1", SupplierID: "s1", Name: "Composite", CurrentStock: 10, UnitCost: 12.5},
			{ID: "inv2", SupplierID: "s2", Name: "Brackets", CurrentStock: 0, UnitCost: 4},
		},
	}
}
