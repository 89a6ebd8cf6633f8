package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup recomputes and caches the standard report windows.
	TaskSummaryWarmup = "reports:summary_warmup"
)

const asOfLayout = "2006-01-02"

// SummaryWarmupPayload narrows a warmup run. The zero value warms every
// standard window anchored on the current day.
type SummaryWarmupPayload struct {
	Windows []string `json:"windows,omitempty"`
	AsOf    string   `json:"as_of,omitempty"`
}

func (p SummaryWarmupPayload) anchor(now time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(asOfLayout, p.AsOf, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("summary warmup: as_of %q: %w", p.AsOf, err)
	}
	return day, nil
}

// NewSummaryWarmupTask constructs an Asynq task for the summary warmup.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, body, asynq.Queue(QueueDefault)), nil
}
