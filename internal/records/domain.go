package records

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrSnapshotUnavailable indicates the record store could not produce a snapshot.
var ErrSnapshotUnavailable = errors.New("records: snapshot unavailable")

// PaymentMethod enumerates how a patient settled a payment.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodWallet   PaymentMethod = "WALLET"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

// ExpenseCategory enumerates clinic operating cost buckets.
type ExpenseCategory string

const (
	ExpenseCategoryRent        ExpenseCategory = "RENT"
	ExpenseCategorySalaries    ExpenseCategory = "SALARIES"
	ExpenseCategoryUtilities   ExpenseCategory = "UTILITIES"
	ExpenseCategorySupplies    ExpenseCategory = "SUPPLIES"
	ExpenseCategoryMaintenance ExpenseCategory = "MAINTENANCE"
	ExpenseCategoryMarketing   ExpenseCategory = "MARKETING"
	ExpenseCategoryOther       ExpenseCategory = "OTHER"
)

// InvoiceStatus enumerates supplier invoice settlement states.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "UNPAID"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
)

// NormalizeInvoiceStatus upper-cases and trims a raw status value.
func NormalizeInvoiceStatus(raw string) InvoiceStatus {
	return InvoiceStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// Payment is money received from a patient.
type Payment struct {
	ID                string        `json:"id"`
	PatientID         string        `json:"patient_id"`
	TreatmentRecordID string        `json:"treatment_record_id,omitempty"`
	Amount            float64       `json:"amount"`
	DoctorShare       float64       `json:"doctor_share"`
	ClinicShare       *float64      `json:"clinic_share,omitempty"`
	Method            PaymentMethod `json:"method"`
	Date              time.Time     `json:"date"`
	Notes             string        `json:"notes,omitempty"`
}

// OccurredOn returns the payment date.
func (p Payment) OccurredOn() (time.Time, bool) {
	return p.Date, !p.Date.IsZero()
}

// EffectiveClinicShare returns the stored clinic share or derives it from the amount.
func (p Payment) EffectiveClinicShare() float64 {
	if p.ClinicShare != nil {
		return *p.ClinicShare
	}
	return p.Amount - p.DoctorShare
}

// Expense is a clinic operating cost.
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Category    ExpenseCategory `json:"category"`
	Date        time.Time       `json:"date"`
	SupplierID  string          `json:"supplier_id,omitempty"`
}

// OccurredOn returns the expense date.
func (e Expense) OccurredOn() (time.Time, bool) {
	return e.Date, !e.Date.IsZero()
}

// TreatmentRecord is a billed treatment performed by a dentist.
type TreatmentRecord struct {
	ID                    string    `json:"id"`
	PatientID             string    `json:"patient_id"`
	DentistID             string    `json:"dentist_id"`
	TreatmentDefinitionID string    `json:"treatment_definition_id"`
	TreatmentName         string    `json:"treatment_name"`
	TotalTreatmentCost    float64   `json:"total_treatment_cost"`
	DoctorShare           float64   `json:"doctor_share"`
	ClinicShare           float64   `json:"clinic_share"`
	TreatmentDate         time.Time `json:"treatment_date"`
	Notes                 string    `json:"notes,omitempty"`
}

// OccurredOn returns the treatment date.
func (t TreatmentRecord) OccurredOn() (time.Time, bool) {
	return t.TreatmentDate, !t.TreatmentDate.IsZero()
}

// SharesBalanced reports whether doctor and clinic shares add up to the total cost within eps.
func (t TreatmentRecord) SharesBalanced(eps float64) bool {
	return math.Abs(t.DoctorShare+t.ClinicShare-t.TotalTreatmentCost) <= eps
}

// DoctorPayment is a clinic disbursement to a dentist.
type DoctorPayment struct {
	ID        string    `json:"id"`
	DentistID string    `json:"dentist_id"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes,omitempty"`
}

// OccurredOn returns the disbursement date.
func (d DoctorPayment) OccurredOn() (time.Time, bool) {
	return d.Date, !d.Date.IsZero()
}

// SupplierInvoice is a bill received from a supplier.
type SupplierInvoice struct {
	ID            string        `json:"id"`
	SupplierID    string        `json:"supplier_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Amount        float64       `json:"amount"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	Status        InvoiceStatus `json:"status"`
}

// OccurredOn returns the invoice date.
func (s SupplierInvoice) OccurredOn() (time.Time, bool) {
	return s.InvoiceDate, !s.InvoiceDate.IsZero()
}

// InventoryItem is a stocked consumable.
type InventoryItem struct {
	ID           string     `json:"id"`
	SupplierID   string     `json:"supplier_id"`
	Name         string     `json:"name"`
	CurrentStock int        `json:"current_stock"`
	UnitCost     float64    `json:"unit_cost"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
}

// StockValue returns the carrying value of the item.
func (i InventoryItem) StockValue() float64 {
	return float64(i.CurrentStock) * i.UnitCost
}

// Patient is a dimension row used for display names.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Dentist is a dimension row for treating doctors.
type Dentist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

// Supplier is a dimension row for vendors.
type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// Snapshot is one consistent read of every record kind.
type Snapshot struct {
	Payments         []Payment
	Expenses         []Expense
	TreatmentRecords []TreatmentRecord
	DoctorPayments   []DoctorPayment
	SupplierInvoices []SupplierInvoice
	InventoryItems   []InventoryItem
	Patients         []Patient
	Dentists         []Dentist
	Suppliers        []Supplier
}

// ParseDay parses an ISO calendar date (or RFC 3339 timestamp) in UTC.
// Malformed or empty input yields the zero time.
func ParseDay(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
