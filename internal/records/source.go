package records

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Source produces a consistent snapshot of clinic records.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// StaticSource serves a fixed in-memory snapshot.
type StaticSource struct {
	Data Snapshot
}

// Snapshot returns the wrapped snapshot.
func (s StaticSource) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return s.Data, nil
}

// FileSource reads a JSON snapshot from disk on every call.
type FileSource struct {
	Path string
}

// NewFileSource constructs a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Snapshot decodes the snapshot file.
func (s *FileSource) Snapshot(ctx context.Context) (Snapshot, error) {
	if s == nil || s.Path == "" {
		return Snapshot{}, fmt.Errorf("%w: snapshot path not configured", ErrSnapshotUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	return DecodeSnapshot(raw)
}

// DecodeSnapshot parses the JSON snapshot format. Dates are ISO strings.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode: %v", ErrSnapshotUnavailable, err)
	}
	return doc.toSnapshot(), nil
}

type snapshotDoc struct {
	Payments         []paymentDoc       `json:"payments"`
	Expenses         []expenseDoc       `json:"expenses"`
	TreatmentRecords []treatmentDoc     `json:"treatment_records"`
	DoctorPayments   []doctorPaymentDoc `json:"doctor_payments"`
	SupplierInvoices []invoiceDoc       `json:"supplier_invoices"`
	InventoryItems   []inventoryDoc     `json:"inventory_items"`
	Patients         []Patient          `json:"patients"`
	Dentists         []Dentist          `json:"dentists"`
	Suppliers        []Supplier         `json:"suppliers"`
}

type paymentDoc struct {
	ID                string   `json:"id"`
	PatientID         string   `json:"patient_id"`
	TreatmentRecordID string   `json:"treatment_record_id"`
	Amount            float64  `json:"amount"`
	DoctorShare       float64  `json:"doctor_share"`
	ClinicShare       *float64 `json:"clinic_share"`
	Method            string   `json:"method"`
	Date              string   `json:"date"`
	Notes             string   `json:"notes"`
}

type expenseDoc struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	SupplierID  string  `json:"supplier_id"`
}

type treatmentDoc struct {
	ID                    string  `json:"id"`
	PatientID             string  `json:"patient_id"`
	DentistID             string  `json:"dentist_id"`
	TreatmentDefinitionID string  `json:"treatment_definition_id"`
	TreatmentName         string  `json:"treatment_name"`
	TotalTreatmentCost    float64 `json:"total_treatment_cost"`
	DoctorShare           float64 `json:"doctor_share"`
	ClinicShare           float64 `json:"clinic_share"`
	TreatmentDate         string  `json:"treatment_date"`
	Notes                 string  `json:"notes"`
}

type doctorPaymentDoc struct {
	ID        string  `json:"id"`
	DentistID string  `json:"dentist_id"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Notes     string  `json:"notes"`
}

type invoiceDoc struct {
	ID            string  `json:"id"`
	SupplierID    string  `json:"supplier_id"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        float64 `json:"amount"`
	InvoiceDate   string  `json:"invoice_date"`
	Status        string  `json:"status"`
}

type inventoryDoc struct {
	ID           string  `json:"id"`
	SupplierID   string  `json:"supplier_id"`
	Name         string  `json:"name"`
	CurrentStock int     `json:"current_stock"`
	UnitCost     float64 `json:"unit_cost"`
	ExpiryDate   string  `json:"expiry_date"`
}

func (d snapshotDoc) toSnapshot() Snapshot {
	snap := Snapshot{
		Payments:         make([]Payment, 0, len(d.Payments)),
		Expenses:         make([]Expense, 0, len(d.Expenses)),
		TreatmentRecords: make([]TreatmentRecord, 0, len(d.TreatmentRecords)),
		DoctorPayments:   make([]DoctorPayment, 0, len(d.DoctorPayments)),
		SupplierInvoices: make([]SupplierInvoice, 0, len(d.SupplierInvoices)),
		InventoryItems:   make([]InventoryItem, 0, len(d.InventoryItems)),
		Patients:         d.Patients,
		Dentists:         d.Dentists,
		Suppliers:        d.Suppliers,
	}
	for _, p := range d.Payments {
		snap.Payments = append(snap.Payments, Payment{
			ID:                p.ID,
			PatientID:         p.PatientID,
			TreatmentRecordID: p.TreatmentRecordID,
			Amount:            p.Amount,
			DoctorShare:       p.DoctorShare,
			ClinicShare:       p.ClinicShare,
			Method:            PaymentMethod(p.Method),
			Date:              ParseDay(p.Date),
			Notes:             p.Notes,
		})
	}
	for _, e := range d.Expenses {
		snap.Expenses = append(snap.Expenses, Expense{
			ID:          e.ID,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    ExpenseCategory(e.Category),
			Date:        ParseDay(e.Date),
			SupplierID:  e.SupplierID,
		})
	}
	for _, t := range d.TreatmentRecords {
		snap.TreatmentRecords = append(snap.TreatmentRecords, TreatmentRecord{
			ID:                    t.ID,
			PatientID:             t.PatientID,
			DentistID:             t.DentistID,
			TreatmentDefinitionID: t.TreatmentDefinitionID,
			TreatmentName:         t.TreatmentName,
			TotalTreatmentCost:    t.TotalTreatmentCost,
			DoctorShare:           t.DoctorShare,
			ClinicShare:           t.ClinicShare,
			TreatmentDate:         ParseDay(t.TreatmentDate),
			Notes:                 t.Notes,
		})
	}
	for _, dp := range d.DoctorPayments {
		snap.DoctorPayments = append(snap.DoctorPayments, DoctorPayment{
			ID:        dp.ID,
			DentistID: dp.DentistID,
			Amount:    dp.Amount,
			Date:      ParseDay(dp.Date),
			Notes:     dp.Notes,
		})
	}
	for _, inv := range d.SupplierInvoices {
		snap.SupplierInvoices = append(snap.SupplierInvoices, SupplierInvoice{
			ID:            inv.ID,
			SupplierID:    inv.SupplierID,
			InvoiceNumber: inv.InvoiceNumber,
			Amount:        inv.Amount,
			InvoiceDate:   ParseDay(inv.InvoiceDate),
			Status:        NormalizeInvoiceStatus(inv.Status),
		})
	}
	for _, item := range d.InventoryItems {
		var expiry *time.Time
		if t := ParseDay(item.ExpiryDate); !t.IsZero() {
			expiry = &t
		}
		snap.InventoryItems = append(snap.InventoryItems, InventoryItem{
			ID:           item.ID,
			SupplierID:   item.SupplierID,
			Name:         item.Name,
			CurrentStock: item.CurrentStock,
			UnitCost:     item.UnitCost,
			ExpiryDate:   expiry,
		})
	}
	return snap
}
