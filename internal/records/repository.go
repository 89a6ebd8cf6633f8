package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx used to load records. *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Repository loads snapshots from Postgres.
type Repository struct {
	db Querier
}

// NewRepository constructs a Repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier constructs a Repository over any Querier.
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{db: q}
}

const (
	queryPayments = `SELECT id::text, patient_id::text, COALESCE(treatment_record_id::text, ''),
	amount::float8, doctor_share::float8, clinic_share::float8, method, paid_on, COALESCE(notes, '')
FROM payments ORDER BY paid_on, id`
	queryExpenses = `SELECT id::text, description, amount::float8, category, spent_on, COALESCE(supplier_id::text, '')
FROM expenses ORDER BY spent_on, id`
	queryTreatments = `SELECT id::text, patient_id::text, dentist_id::text, treatment_definition_id::text, treatment_name,
	total_cost::float8, doctor_share::float8, clinic_share::float8, treatment_date, COALESCE(notes, '')
FROM treatment_records ORDER BY treatment_date, id`
	queryDoctorPayments = `SELECT id::text, dentist_id::text, amount::float8, paid_on, COALESCE(notes, '')
FROM doctor_payments ORDER BY paid_on, id`
	queryInvoices = `SELECT id::text, supplier_id::text, invoice_number, amount::float8, invoice_date, status
FROM supplier_invoices ORDER BY invoice_date, id`
	queryInventory = `SELECT id::text, COALESCE(supplier_id::text, ''), name, current_stock, unit_cost::float8, expiry_date
FROM inventory_items ORDER BY name, id`
	queryPatients  = `SELECT id::text, name, COALESCE(phone, '') FROM patients ORDER BY id`
	queryDentists  = `SELECT id::text, name, COALESCE(specialty, '') FROM dentists ORDER BY id`
	querySuppliers = `SELECT id::text, name, COALESCE(contact, '') FROM suppliers ORDER BY id`
)

// Snapshot reads every record kind. When the backing connection supports
// transactions the reads share one repeatable-read, read-only transaction.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	if r == nil || r.db == nil {
		return Snapshot{}, fmt.Errorf("%w: repository not configured", ErrSnapshotUnavailable)
	}
	starter, ok := r.db.(txStarter)
	if !ok {
		return load(ctx, r.db)
	}
	tx, err := starter.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: begin: %v", ErrSnapshotUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	snap, err := load(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return Snapshot{}, fmt.Errorf("%w: commit: %v", ErrSnapshotUnavailable, err)
	}
	return snap, nil
}

func load(ctx context.Context, q Querier) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Payments, err = queryAll(ctx, q, queryPayments, scanPayment); err != nil {
		return Snapshot{}, wrapLoad("payments", err)
	}
	if snap.Expenses, err = queryAll(ctx, q, queryExpenses, scanExpense); err != nil {
		return Snapshot{}, wrapLoad("expenses", err)
	}
	if snap.TreatmentRecords, err = queryAll(ctx, q, queryTreatments, scanTreatment); err != nil {
		return Snapshot{}, wrapLoad("treatment records", err)
	}
	if snap.DoctorPayments, err = queryAll(ctx, q, queryDoctorPayments, scanDoctorPayment); err != nil {
		return Snapshot{}, wrapLoad("doctor payments", err)
	}
	if snap.SupplierInvoices, err = queryAll(ctx, q, queryInvoices, scanInvoice); err != nil {
		return Snapshot{}, wrapLoad("supplier invoices", err)
	}
	if snap.InventoryItems, err = queryAll(ctx, q, queryInventory, scanInventory); err != nil {
		return Snapshot{}, wrapLoad("inventory", err)
	}
	if snap.Patients, err = queryAll(ctx, q, queryPatients, scanPatient); err != nil {
		return Snapshot{}, wrapLoad("patients", err)
	}
	if snap.Dentists, err = queryAll(ctx, q, queryDentists, scanDentist); err != nil {
		return Snapshot{}, wrapLoad("dentists", err)
	}
	if snap.Suppliers, err = queryAll(ctx, q, querySuppliers, scanSupplier); err != nil {
		return Snapshot{}, wrapLoad("suppliers", err)
	}
	return snap, nil
}

func wrapLoad(kind string, err error) error {
	return fmt.Errorf("%w: load %s: %v", ErrSnapshotUnavailable, kind, err)
}

func queryAll[T any](ctx context.Context, q Querier, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanPayment(rows pgx.Rows) (Payment, error) {
	var p Payment
	var method string
	err := rows.Scan(&p.ID, &p.PatientID, &p.TreatmentRecordID, &p.Amount, &p.DoctorShare, &p.ClinicShare, &method, &p.Date, &p.Notes)
	p.Method = PaymentMethod(method)
	return p, err
}

func scanExpense(rows pgx.Rows) (Expense, error) {
	var e Expense
	var category string
	err := rows.Scan(&e.ID, &e.Description, &e.Amount, &category, &e.Date, &e.SupplierID)
	e.Category = ExpenseCategory(category)
	return e, err
}

func scanTreatment(rows pgx.Rows) (TreatmentRecord, error) {
	var t TreatmentRecord
	err := rows.Scan(&t.ID, &t.PatientID, &t.DentistID, &t.TreatmentDefinitionID, &t.TreatmentName,
		&t.TotalTreatmentCost, &t.DoctorShare, &t.ClinicShare, &t.TreatmentDate, &t.Notes)
	return t, err
}

func scanDoctorPayment(rows pgx.Rows) (DoctorPayment, error) {
	var d DoctorPayment
	err := rows.Scan(&d.ID, &d.DentistID, &d.Amount, &d.Date, &d.Notes)
	return d, err
}

func scanInvoice(rows pgx.Rows) (SupplierInvoice, error) {
	var inv SupplierInvoice
	var status string
	err := rows.Scan(&inv.ID, &inv.SupplierID, &inv.InvoiceNumber, &inv.Amount, &inv.InvoiceDate, &status)
	inv.Status = NormalizeInvoiceStatus(status)
	return inv, err
}

func scanInventory(rows pgx.Rows) (InventoryItem, error) {
	var item InventoryItem
	var stock int32
	err := rows.Scan(&item.ID, &item.SupplierID, &item.Name, &stock, &item.UnitCost, &item.ExpiryDate)
	item.CurrentStock = int(stock)
	return item, err
}

func scanPatient(rows pgx.Rows) (Patient, error) {
	var p Patient
	err := rows.Scan(&p.ID, &p.Name, &p.Phone)
	return p, err
}

func scanDentist(rows pgx.Rows) (Dentist, error) {
	var d Dentist
	err := rows.Scan(&d.ID, &d.Name, &d.Specialty)
	return d, err
}

func scanSupplier(rows pgx.Rows) (Supplier, error) {
	var s Supplier
	err := rows.Scan(&s.ID, &s.Name, &s.Contact)
	return s, err
}
