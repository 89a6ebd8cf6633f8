package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/clinic-reports/internal/jobs"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const windowTimeout = 20 * time.Second

// Warmer recomputes report windows into the cache.
type Warmer interface {
	Warm(ctx context.Context, windows []reports.NamedRange) (int, error)
}

// SummaryWarmupJob pre-populates the summary cache for the standard windows.
type SummaryWarmupJob struct {
	Reports Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(svc Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{
		Reports: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes summary warmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	start := j.now()
	anchor, err := payload.anchor(start)
	if err != nil {
		j.logger().Warn("reject warmup payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	windows, err := selectWindows(reports.StandardWindows(anchor), payload.Windows)
	if err != nil {
		j.logger().Warn("reject warmup payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSummaryWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", anchor.Format(asOfLayout)))
	logger.Info("starting summary warmup", slog.Int("windows", len(windows)))

	warmed := 0
	for _, window := range windows {
		if err := j.warmWindow(ctx, window); err != nil {
			resultErr = err
			logger.Error("warm window", slog.String("window", window.Name), slog.Any("error", err))
			return resultErr
		}
		j.metrics().AddWarmed(window.Name, 1)
		warmed++
	}

	logger.Info("completed summary warmup", slog.Int("windows", warmed), slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *SummaryWarmupJob) warmWindow(ctx context.Context, window reports.NamedRange) error {
	windowCtx, cancel := context.WithTimeout(ctx, windowTimeout)
	defer cancel()
	_, err := j.Reports.Warm(windowCtx, []reports.NamedRange{window})
	return err
}

func selectWindows(all []reports.NamedRange, names []string) ([]reports.NamedRange, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]reports.NamedRange, len(all))
	for _, w := range all {
		byName[w.Name] = w
	}
	selected := make([]reports.NamedRange, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		w, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("summary warmup: unknown window %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, w)
	}
	return selected, nil
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSummaryWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSummaryWarmup))
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SummaryWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
