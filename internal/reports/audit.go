package reports

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuditCapacity bounds the audit log when no capacity is given.
const DefaultAuditCapacity = 1000

// AuditEntry captures one calculation for diagnostic replay.
type AuditEntry struct {
	ID              uuid.UUID         `json:"id"`
	At              time.Time         `json:"at"`
	CalculationType string            `json:"calculation_type"`
	Params          map[string]string `json:"params"`
	Result          FinancialSummary  `json:"result"`
	Counts          RecordCounts      `json:"counts"`
}

// AuditLog is a bounded in-memory ring buffer of calculations. Oldest entries
// are evicted first. A nil *AuditLog discards everything.
type AuditLog struct {
	mu       sync.Mutex
	entries  []AuditEntry
	next     int
	full     bool
	capacity int
	now      func() time.Time
}

// NewAuditLog constructs an AuditLog holding at most capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{
		entries:  make([]AuditEntry, capacity),
		capacity: capacity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an entry, evicting the oldest once full. It never panics.
func (l *AuditLog) Record(entry AuditEntry) {
	if l == nil {
		return
	}
	defer func() { _ = recover() }()

	if entry.ID == uuid.Nil {
		if id, err := uuid.NewRandom(); err == nil {
			entry.ID = id
		}
	}
	if entry.At.IsZero() {
		entry.At = l.now()
	}
	entry.Params = cloneParams(entry.Params)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
}

// Entries returns a copy of the log, oldest first.
func (l *AuditLog) Entries() []AuditEntry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []AuditEntry
	if l.full {
		out = make([]AuditEntry, 0, l.capacity)
		out = append(out, l.entries[l.next:]...)
		out = append(out, l.entries[:l.next]...)
	} else {
		out = make([]AuditEntry, 0, l.next)
		out = append(out, l.entries[:l.next]...)
	}
	for i := range out {
		out[i].Params = cloneParams(out[i].Params)
	}
	return out
}

// Len returns the number of retained entries.
func (l *AuditLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return l.capacity
	}
	return l.next
}

// Capacity returns the maximum number of retained entries.
func (l *AuditLog) Capacity() int {
	if l == nil {
		return 0
	}
	return l.capacity
}

// Reset drops every entry.
func (l *AuditLog) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]AuditEntry, l.capacity)
	l.next = 0
	l.full = false
}

func cloneParams(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
