package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/clinic-reports/internal/jobs"
	"github.com/odyssey-erp/clinic-reports/internal/records"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
)

type recordingWarmer struct {
	names []string
	fail  string
}

func (r *recordingWarmer) Warm(ctx context.Context, windows []reports.NamedRange) (int, error) {
	for i, w := range windows {
		if w.Name == r.fail {
			return i, errors.New("source offline")
		}
		r.names = append(r.names, w.Name)
	}
	return len(windows), nil
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
}

func newJob(t *testing.T, warmer Warmer) (*SummaryWarmupJob, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	job := NewSummaryWarmupJob(warmer, nil, jobmetrics.NewMetrics(reg))
	job.clock = fixedClock
	return job, reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func TestSummaryWarmupCachesStandardWindows(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	snap := records.Snapshot{
		Payments: []records.Payment{{ID: "pay1", PatientID: "p1", Amount: 800, Method: records.PaymentMethodCash, Date: records.ParseDay("2024-03-10")}},
	}
	svc := reports.NewService(records.StaticSource{Data: snap}, reports.NewCache(client, time.Minute), nil)
	job, _ := newJob(t, svc)

	task, err := NewSummaryWarmupTask(SummaryWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	for _, key := range []string{
		"reports:summary:2024-03-15_2024-03-15:v1",
		"reports:summary:2024-03-01_2024-03-15:v1",
		"reports:summary:2024-02-01_2024-02-29:v1",
		"reports:summary:2024-01-01_2024-03-15:v1",
	} {
		require.True(t, mr.Exists(key), "expected %s to be cached", key)
	}
}

func TestSummaryWarmupRecordsMetrics(t *testing.T) {
	warmer := &recordingWarmer{}
	job, reg := newJob(t, warmer)

	task, err := NewSummaryWarmupTask(SummaryWarmupPayload{Windows: []string{"today", "previous_month", "today"}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, []string{"today", "previous_month"}, warmer.names)
	require.Equal(t, 1.0, counterValue(t, reg, "clinic_report_windows_warmed_total", map[string]string{"window": "previous_month"}))
	require.Equal(t, 1.0, counterValue(t, reg, "clinic_jobs_total", map[string]string{"job": TaskSummaryWarmup, "status": "success"}))
}

func TestSummaryWarmupFailureIsRetryable(t *testing.T) {
	warmer := &recordingWarmer{fail: "month_to_date"}
	job, reg := newJob(t, warmer)

	task, err := NewSummaryWarmupTask(SummaryWarmupPayload{})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
	require.Equal(t, []string{"today"}, warmer.names)
	require.Equal(t, 1.0, counterValue(t, reg, "clinic_jobs_total", map[string]string{"job": TaskSummaryWarmup, "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, reg, "clinic_jobs_failures_total", map[string]string{"job": TaskSummaryWarmup}))
}

func TestSummaryWarmupRejectsBadPayloads(t *testing.T) {
	job, _ := newJob(t, &recordingWarmer{})
	cases := map[string][]byte{
		"malformed json": []byte("{"),
		"bad as_of":      []byte(`{"as_of":"15/03/2024"}`),
		"unknown window": []byte(`{"windows":["last_decade"]}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			err := job.Handle(context.Background(), asynq.NewTask(TaskSummaryWarmup, body))
			require.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestSummaryWarmupHonoursAsOf(t *testing.T) {
	var seen []reports.NamedRange
	warmer := warmFunc(func(ctx context.Context, windows []reports.NamedRange) (int, error) {
		seen = append(seen, windows...)
		return len(windows), nil
	})
	job, _ := newJob(t, warmer)

	task, err := NewSummaryWarmupTask(SummaryWarmupPayload{AsOf: "2023-11-20", Windows: []string{"quarter_to_date"}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, seen, 1)
	require.Equal(t, "2023-10-01..2023-11-20", seen[0].Range.String())
}

func TestSummaryWarmupWithoutService(t *testing.T) {
	var job *SummaryWarmupJob
	require.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskSummaryWarmup, nil)))
}

type warmFunc func(ctx context.Context, windows []reports.NamedRange) (int, error)

func (f warmFunc) Warm(ctx context.Context, windows []reports.NamedRange) (int, error) {
	return f(ctx, windows)
}
