package reports

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/clinic-reports/internal/records"
)

type countingSource struct {
	snap  records.Snapshot
	err   error
	calls atomic.Int32
}

func (s *countingSource) Snapshot(ctx context.Context) (records.Snapshot, error) {
	s.calls.Add(1)
	return s.snap, s.err
}

func (s *countingSource) count() int {
	return int(s.calls.Load())
}

// growingSource books a late payment after every load.
type growingSource struct {
	mu    sync.Mutex
	snap  records.Snapshot
	loads int
}

func (s *growingSource) Snapshot(ctx context.Context) (records.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.Payments = append([]records.Payment(nil), s.snap.Payments...)
	s.loads++
	s.snap.Payments = append(s.snap.Payments, records.Payment{
		ID: "late", PatientID: "p1", Amount: 5000, DoctorShare: 2000, Method: records.PaymentMethodCash, Date: day("2024-03-15"),
	})
	return out, nil
}

func newTestService(t *testing.T, source records.Source) (*Service, *AuditLog) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	audit := NewAuditLog(20)
	return NewService(source, NewCache(client, time.Minute), NewAggregator(audit, nil)), audit
}

func TestServiceSummaryCaches(t *testing.T) {
	source := &countingSource{snap: clinicSnapshot()}
	svc, audit := newTestService(t, source)
	ctx := context.Background()
	rng := mustRange(t, "2024-03-01", "2024-03-31")

	summary, err := svc.Summary(ctx, rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalPayments != 1500 {
		t.Fatalf("expected total payments 1500 got %v", summary.TotalPayments)
	}

	// Second call should hit cache.
	cached, err := svc.Summary(ctx, rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.count() != 1 {
		t.Fatalf("expected cached result, source called %d times", source.count())
	}
	if cached != summary {
		t.Fatalf("cached summary differs: %+v vs %+v", cached, summary)
	}
	if audit.Len() != 1 {
		t.Fatalf("expected one audit entry, got %d", audit.Len())
	}

	// Bumping the cache should trigger reload.
	if _, err := svc.Cache().Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	source.snap.Payments = source.snap.Payments[:1]
	summary, err = svc.Summary(ctx, rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalPayments != 1000 {
		t.Fatalf("expected refreshed value 1000 got %v", summary.TotalPayments)
	}
	if source.count() != 2 {
		t.Fatalf("expected source to refresh, calls %d", source.count())
	}
}

func TestServiceWithoutCacheComputesEveryTime(t *testing.T) {
	source := &countingSource{snap: clinicSnapshot()}
	svc := NewService(source, nil, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Summary(ctx, DateRange{}); err != nil {
			t.Fatalf("summary: %v", err)
		}
	}
	if source.count() != 2 {
		t.Fatalf("expected 2 source calls got %d", source.count())
	}
	if svc.Audit() != nil {
		t.Fatalf("expected no audit log")
	}
}

func TestServiceCompareKeepsUndefinedDeltasThroughCache(t *testing.T) {
	snap := records.Snapshot{Payments: []records.Payment{{Amount: 1000, DoctorShare: 400, Date: day("2024-03-05")}}}
	svc, _ := newTestService(t, records.StaticSource{Data: snap})
	ctx := context.Background()
	rng := mustRange(t, "2024-03-01", "2024-03-31")

	for i := 0; i < 2; i++ {
		cmp, err := svc.Compare(ctx, rng)
		if err != nil {
			t.Fatalf("compare: %v", err)
		}
		d, ok := cmp.Delta("total_payments")
		if !ok || d.Defined() {
			t.Fatalf("expected undefined delta, got %+v", d)
		}
		if !cmp.PreviousWindow.Start.Equal(day("2024-01-30")) {
			t.Fatalf("unexpected previous window %v", cmp.PreviousWindow)
		}
	}
}

func TestServiceCompareRejectsOpenRange(t *testing.T) {
	source := &countingSource{snap: clinicSnapshot()}
	svc, _ := newTestService(t, source)
	_, err := svc.Compare(context.Background(), DateRange{Start: day("2024-03-01")})
	if !errors.Is(err, ErrUnboundedRange) {
		t.Fatalf("expected ErrUnboundedRange got %v", err)
	}
	if source.count() != 0 {
		t.Fatalf("open range should not load records")
	}
}

func TestServiceRollups(t *testing.T) {
	svc, _ := newTestService(t, records.StaticSource{Data: clinicSnapshot()})
	ctx := context.Background()

	report, err := svc.Rollups(ctx, DimensionDoctors, DateRange{})
	if err != nil {
		t.Fatalf("rollups: %v", err)
	}
	if len(report.Doctors) != 2 || report.Doctors[0].DentistID != "d1" {
		t.Fatalf("unexpected doctors %+v", report.Doctors)
	}
	if report.Patients != nil {
		t.Fatalf("only the requested dimension should be populated")
	}

	inventory, err := svc.Rollups(ctx, DimensionInventory, mustRange(t, "2024-03-01", "2024-03-31"))
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if inventory.Inventory == nil || inventory.Inventory.TotalValue != 125 {
		t.Fatalf("unexpected inventory %+v", inventory.Inventory)
	}

	if _, err := svc.Rollups(ctx, Dimension("chairs"), DateRange{}); !errors.Is(err, ErrUnknownDimension) {
		t.Fatalf("expected ErrUnknownDimension got %v", err)
	}
}

func TestServiceOverview(t *testing.T) {
	svc, _ := newTestService(t, records.StaticSource{Data: clinicSnapshot()})
	ctx := context.Background()

	overview, err := svc.Overview(ctx, mustRange(t, "2024-03-01", "2024-03-31"))
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Summary.TotalPayments != 1500 {
		t.Fatalf("unexpected summary %+v", overview.Summary)
	}
	if overview.Comparison == nil || overview.Comparison.Previous.TotalPayments != 800 {
		t.Fatalf("expected comparison against february")
	}
	if len(overview.Trend) != 1 || overview.Trend[0].Period != "2024-03" {
		t.Fatalf("unexpected trend %+v", overview.Trend)
	}

	open, err := svc.Overview(ctx, DateRange{})
	if err != nil {
		t.Fatalf("open overview: %v", err)
	}
	if open.Comparison != nil {
		t.Fatalf("open range cannot be compared")
	}
}

func TestServiceOverviewUsesOneSnapshot(t *testing.T) {
	source := &growingSource{snap: clinicSnapshot()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()
	rng := mustRange(t, "2024-03-01", "2024-03-31")

	overview, err := svc.Overview(ctx, rng)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if source.loads != 1 {
		t.Fatalf("expected one snapshot load, got %d", source.loads)
	}
	if overview.Comparison == nil {
		t.Fatalf("expected comparison")
	}
	var trendTotal float64
	for _, p := range overview.Trend {
		trendTotal += p.TotalPayments
	}
	if overview.Summary.TotalPayments != 1500 || overview.Comparison.Current.TotalPayments != 1500 || trendTotal != 1500 {
		t.Fatalf("views disagree: summary=%v compare=%v trend=%v",
			overview.Summary.TotalPayments, overview.Comparison.Current.TotalPayments, trendTotal)
	}

	again, err := svc.Overview(ctx, rng)
	if err != nil {
		t.Fatalf("cached overview: %v", err)
	}
	if source.loads != 1 || again.Summary.TotalPayments != 1500 {
		t.Fatalf("expected cached overview, loads=%d summary=%v", source.loads, again.Summary.TotalPayments)
	}
}

func TestServicePropagatesSourceFailure(t *testing.T) {
	source := &countingSource{err: records.ErrSnapshotUnavailable}
	svc, _ := newTestService(t, source)
	if _, err := svc.Summary(context.Background(), DateRange{}); !errors.Is(err, records.ErrSnapshotUnavailable) {
		t.Fatalf("expected snapshot error got %v", err)
	}
}

func TestServiceWarm(t *testing.T) {
	source := &countingSource{snap: clinicSnapshot()}
	svc, _ := newTestService(t, source)
	ctx := context.Background()
	windows := StandardWindows(day("2024-03-20"))

	n, err := svc.Warm(ctx, windows)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	if n != len(windows) || source.count() != len(windows) {
		t.Fatalf("expected %d windows warmed, got %d (calls %d)", len(windows), n, source.count())
	}
	if _, err := svc.Summary(ctx, windows[1].Range); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if source.count() != len(windows) {
		t.Fatalf("warmed window should be cached")
	}
}

func TestCacheListenerAppliesAnnouncedVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	if _, err := cache.Version(ctx); err != nil {
		t.Fatalf("version: %v", err)
	}
	cache.applyBump(ctx, "7")
	if ver, _ := cache.Version(ctx); ver != 7 {
		t.Fatalf("expected version 7 got %d", ver)
	}
	cache.applyBump(ctx, "3")
	if ver, _ := cache.Version(ctx); ver != 7 {
		t.Fatalf("version must not move backwards, got %d", ver)
	}
	cache.applyBump(ctx, "")
	if ver, _ := cache.Version(ctx); ver != 8 {
		t.Fatalf("expected version 8 got %d", ver)
	}
}
