package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrUndatedRecord rejects rows the record tables cannot store without a date.
var ErrUndatedRecord = errors.New("records: record has no date")

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const (
	upsertPatient = `INSERT INTO patients (id, name, phone) VALUES ($1, $2, NULLIF($3, ''))
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone`
	upsertDentist = `INSERT INTO dentists (id, name, specialty) VALUES ($1, $2, NULLIF($3, ''))
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, specialty = EXCLUDED.specialty`
	upsertSupplier = `INSERT INTO suppliers (id, name, contact) VALUES ($1, $2, NULLIF($3, ''))
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, contact = EXCLUDED.contact`
	upsertTreatment = `INSERT INTO treatment_records (id, patient_id, dentist_id, treatment_definition_id, treatment_name,
	total_cost, doctor_share, clinic_share, treatment_date, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
ON CONFLICT (id) DO UPDATE SET total_cost = EXCLUDED.total_cost, doctor_share = EXCLUDED.doctor_share,
	clinic_share = EXCLUDED.clinic_share, treatment_date = EXCLUDED.treatment_date, notes = EXCLUDED.notes`
	upsertPayment = `INSERT INTO payments (id, patient_id, treatment_record_id, amount, doctor_share, clinic_share, method, paid_on, notes)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''))
ON CONFLICT (id) DO UPDATE SET amount = EXCLUDED.amount, doctor_share = EXCLUDED.doctor_share,
	clinic_share = EXCLUDED.clinic_share, method = EXCLUDED.method, paid_on = EXCLUDED.paid_on, notes = EXCLUDED.notes`
	upsertExpense = `INSERT INTO expenses (id, description, amount, category, spent_on, supplier_id)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
ON CONFLICT (id) DO UPDATE SET description = EXCLUDED.description, amount = EXCLUDED.amount,
	category = EXCLUDED.category, spent_on = EXCLUDED.spent_on, supplier_id = EXCLUDED.supplier_id`
	upsertDoctorPayment = `INSERT INTO doctor_payments (id, dentist_id, amount, paid_on, notes)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
ON CONFLICT (id) DO UPDATE SET amount = EXCLUDED.amount, paid_on = EXCLUDED.paid_on, notes = EXCLUDED.notes`
	upsertInvoice = `INSERT INTO supplier_invoices (id, supplier_id, invoice_number, amount, invoice_date, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET amount = EXCLUDED.amount, invoice_date = EXCLUDED.invoice_date, status = EXCLUDED.status`
	upsertInventory = `INSERT INTO inventory_items (id, supplier_id, name, current_stock, unit_cost, expiry_date)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET current_stock = EXCLUDED.current_stock, unit_cost = EXCLUDED.unit_cost,
	expiry_date = EXCLUDED.expiry_date`
)

// Import upserts every row of snap inside one transaction and returns the
// number of rows written. Dimension tables are written first.
func (r *Repository) Import(ctx context.Context, snap Snapshot) (int, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("%w: repository not configured", ErrSnapshotUnavailable)
	}
	batch, err := buildImportBatch(snap)
	if err != nil {
		return 0, err
	}
	starter, ok := r.db.(txStarter)
	if !ok {
		sender, ok := r.db.(batchSender)
		if !ok {
			return 0, errors.New("records: connection cannot send batches")
		}
		return sendImport(ctx, sender, batch)
	}
	tx, err := starter.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("records: begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	n, err := sendImport(ctx, tx, batch)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("records: commit import: %w", err)
	}
	return n, nil
}

func sendImport(ctx context.Context, sender batchSender, batch *pgx.Batch) (int, error) {
	results := sender.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("records: import statement %d: %w", i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("records: import: %w", err)
	}
	return batch.Len(), nil
}

func buildImportBatch(snap Snapshot) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, p := range snap.Patients {
		batch.Queue(upsertPatient, p.ID, p.Name, p.Phone)
	}
	for _, d := range snap.Dentists {
		batch.Queue(upsertDentist, d.ID, d.Name, d.Specialty)
	}
	for _, s := range snap.Suppliers {
		batch.Queue(upsertSupplier, s.ID, s.Name, s.Contact)
	}
	for _, t := range snap.TreatmentRecords {
		if err := requireDate("treatment record", t.ID, t.TreatmentDate); err != nil {
			return nil, err
		}
		batch.Queue(upsertTreatment, t.ID, t.PatientID, t.DentistID, t.TreatmentDefinitionID, t.TreatmentName,
			t.TotalTreatmentCost, t.DoctorShare, t.ClinicShare, t.TreatmentDate, t.Notes)
	}
	for _, p := range snap.Payments {
		if err := requireDate("payment", p.ID, p.Date); err != nil {
			return nil, err
		}
		batch.Queue(upsertPayment, p.ID, p.PatientID, p.TreatmentRecordID, p.Amount, p.DoctorShare,
			p.EffectiveClinicShare(), string(p.Method), p.Date, p.Notes)
	}
	for _, e := range snap.Expenses {
		if err := requireDate("expense", e.ID, e.Date); err != nil {
			return nil, err
		}
		batch.Queue(upsertExpense, e.ID, e.Description, e.Amount, string(e.Category), e.Date, e.SupplierID)
	}
	for _, d := range snap.DoctorPayments {
		if err := requireDate("doctor payment", d.ID, d.Date); err != nil {
			return nil, err
		}
		batch.Queue(upsertDoctorPayment, d.ID, d.DentistID, d.Amount, d.Date, d.Notes)
	}
	for _, inv := range snap.SupplierInvoices {
		if err := requireDate("supplier invoice", inv.ID, inv.InvoiceDate); err != nil {
			return nil, err
		}
		batch.Queue(upsertInvoice, inv.ID, inv.SupplierID, inv.InvoiceNumber, inv.Amount, inv.InvoiceDate, string(inv.Status))
	}
	for _, item := range snap.InventoryItems {
		batch.Queue(upsertInventory, item.ID, item.SupplierID, item.Name, int32(item.CurrentStock), item.UnitCost, item.ExpiryDate)
	}
	return batch, nil
}

func requireDate(kind, id string, t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: %s %s", ErrUndatedRecord, kind, id)
	}
	return nil
}
