// Package scheduler runs persisted, time-based tasks: one-shot, fixed
// interval and cron schedules, each firing a payload such as a session
// cleanup or an agent message.
package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is the definition of a scheduled action.
type Task struct {
	ID        string    `json:"id"` // UUIDv7
	Name      string    `json:"name"`
	Schedule  Schedule  `json:"schedule"`
	Payload   Payload   `json:"payload"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Schedule defines when a task should run.
type Schedule struct {
	Kind     ScheduleKind `json:"kind"`
	At       *time.Time   `json:"at,omitempty"`
	Every    *Duration    `json:"every,omitempty"`
	Cron     string       `json:"cron,omitempty"`     // five-field expression
	Timezone string       `json:"timezone,omitempty"` // IANA name, cron only
}

// ScheduleKind identifies the schedule type.
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"
	ScheduleEvery ScheduleKind = "every"
	ScheduleCron  ScheduleKind = "cron"
)

// Duration wraps time.Duration so it serializes as "10m" rather than
// nanoseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Payload defines what happens when a task fires.
type Payload struct {
	Kind PayloadKind `json:"kind"`
	// Target is "channel:chat_id" for message payloads.
	Target string         `json:"target,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// PayloadKind identifies the payload type.
type PayloadKind string

const (
	// PayloadSessionCleanup removes idle sessions. Data["max_age"] is a
	// duration string.
	PayloadSessionCleanup PayloadKind = "session_cleanup"
	// PayloadMessage runs the agent on Data["message"] and delivers the
	// reply to Target.
	PayloadMessage PayloadKind = "message"
)

// Execution represents a single run of a task.
type Execution struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Status      ExecutionStatus `json:"status"`
	Result      string          `json:"result,omitempty"`
}

// ExecutionStatus indicates the state of an execution.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// ErrInvalidTask is wrapped by Validate failures.
var ErrInvalidTask = errors.New("invalid task")

// Validate checks that the schedule and payload are complete.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	switch t.Schedule.Kind {
	case ScheduleAt:
		if t.Schedule.At == nil {
			return fmt.Errorf("%w: at schedule needs a time", ErrInvalidTask)
		}
	case ScheduleEvery:
		if t.Schedule.Every == nil || t.Schedule.Every.Duration <= 0 {
			return fmt.Errorf("%w: every schedule needs a positive interval", ErrInvalidTask)
		}
	case ScheduleCron:
		if _, err := t.Schedule.cronSchedule(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
	default:
		return fmt.Errorf("%w: unknown schedule kind %q", ErrInvalidTask, t.Schedule.Kind)
	}

	switch t.Payload.Kind {
	case PayloadSessionCleanup:
	case PayloadMessage:
		if _, _, err := ParseTarget(t.Payload.Target); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		if msg, _ := t.Payload.Data["message"].(string); strings.TrimSpace(msg) == "" {
			return fmt.Errorf("%w: message payload needs data.message", ErrInvalidTask)
		}
	default:
		return fmt.Errorf("%w: unknown payload kind %q", ErrInvalidTask, t.Payload.Kind)
	}
	return nil
}

// ParseTarget splits a "channel:chat_id" delivery target.
func ParseTarget(target string) (channel, chatID string, err error) {
	channel, chatID, ok := strings.Cut(target, ":")
	if !ok || channel == "" || chatID == "" {
		return "", "", fmt.Errorf("target %q is not channel:chat_id", target)
	}
	return channel, chatID, nil
}

// cronSchedule parses the cron expression in the schedule's timezone.
func (s Schedule) cronSchedule() (cron.Schedule, error) {
	spec := strings.TrimSpace(s.Cron)
	if spec == "" {
		return nil, errors.New("cron schedule needs an expression")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return nil, fmt.Errorf("timezone %q: %w", s.Timezone, err)
		}
		spec = "CRON_TZ=" + s.Timezone + " " + spec
	}
	return cron.ParseStandard(spec)
}

// NextRun calculates the next execution time strictly after after.
func (t *Task) NextRun(after time.Time) (time.Time, bool) {
	switch t.Schedule.Kind {
	case ScheduleAt:
		if t.Schedule.At != nil && t.Schedule.At.After(after) {
			return *t.Schedule.At, true
		}
		return time.Time{}, false

	case ScheduleEvery:
		if t.Schedule.Every == nil || t.Schedule.Every.Duration <= 0 {
			return time.Time{}, false
		}
		interval := t.Schedule.Every.Duration
		base := t.CreatedAt
		if base.IsZero() {
			base = after
		}
		elapsed := after.Sub(base)
		if elapsed < 0 {
			return base, true
		}
		return base.Add(time.Duration(int64(elapsed/interval)+1) * interval), true

	case ScheduleCron:
		sched, err := t.Schedule.cronSchedule()
		if err != nil {
			return time.Time{}, false
		}
		next := sched.Next(after)
		return next, !next.IsZero()

	default:
		return time.Time{}, false
	}
}
