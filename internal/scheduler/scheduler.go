package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// taskTimeout bounds a single execution.
const taskTimeout = 5 * time.Minute

// executionRetention is how long execution history is kept.
const executionRetention = 30 * 24 * time.Hour

// ExecuteFunc runs a fired task and returns a short result summary.
type ExecuteFunc func(ctx context.Context, task *Task) (string, error)

// Recorder receives execution outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	TaskExecuted(kind string, failed bool)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithRecorder sets the execution metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// Scheduler keeps one timer per enabled task and runs tasks through
// the execute callback when their timers fire.
type Scheduler struct {
	logger   *slog.Logger
	store    *Store
	execute  ExecuteFunc
	recorder Recorder

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler backed by store.
func New(store *Store, execute ExecuteFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  slog.Default(),
		store:   store,
		execute: execute,
		timers:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads enabled tasks and arms their timers. Executions started
// by the scheduler are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if n, err := s.store.PruneExecutions(time.Now().Add(-executionRetention)); err != nil {
		s.logger.Warn("failed to prune executions", "error", err)
	} else if n > 0 {
		s.logger.Debug("pruned old executions", "count", n)
	}

	tasks, err := s.store.ListTasks(true)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	for _, task := range tasks {
		s.scheduleTask(task)
	}

	s.logger.Info("scheduler started", "tasks", len(tasks))
	return nil
}

// Run starts the scheduler, blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop disarms all timers and waits for running executions.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// CreateTask validates, persists and schedules a new task.
func (s *Scheduler) CreateTask(task *Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateTask(task); err != nil {
		return err
	}
	if task.Enabled {
		s.scheduleTask(task)
	}
	s.logger.Info("task created",
		"id", task.ID,
		"name", task.Name,
		"schedule", task.Schedule.Kind,
		"payload", task.Payload.Kind,
	)
	return nil
}

// UpdateTask validates and stores task, then re-arms its timer.
func (s *Scheduler) UpdateTask(task *Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateTask(task); err != nil {
		return err
	}
	s.cancelTimer(task.ID)
	if task.Enabled {
		s.scheduleTask(task)
	}
	s.logger.Info("task updated", "id", task.ID, "name", task.Name)
	return nil
}

// EnsureTask creates task when no task with its name exists, or updates
// the stored one when its schedule, payload or enabled flag differ.
// It returns the stored task.
func (s *Scheduler) EnsureTask(task *Task) (*Task, error) {
	existing, err := s.store.GetTaskByName(task.Name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return task, s.CreateTask(task)
	}
	if reflect.DeepEqual(existing.Schedule, task.Schedule) &&
		reflect.DeepEqual(existing.Payload, task.Payload) &&
		existing.Enabled == task.Enabled {
		return existing, nil
	}
	existing.Schedule = task.Schedule
	existing.Payload = task.Payload
	existing.Enabled = task.Enabled
	return existing, s.UpdateTask(existing)
}

// DeleteTask removes a task and its history.
func (s *Scheduler) DeleteTask(id string) error {
	s.cancelTimer(id)
	if err := s.store.DeleteTask(id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "id", id)
	return nil
}

// GetTask retrieves a task by ID.
func (s *Scheduler) GetTask(id string) (*Task, error) {
	return s.store.GetTask(id)
}

// ListTasks returns stored tasks.
func (s *Scheduler) ListTasks(enabledOnly bool) ([]*Task, error) {
	return s.store.ListTasks(enabledOnly)
}

// TaskExecutions returns the execution history of a task, newest first.
func (s *Scheduler) TaskExecutions(taskID string, limit int) ([]*Execution, error) {
	return s.store.ListExecutions(taskID, limit)
}

// TriggerTask runs a task immediately, outside its schedule.
func (s *Scheduler) TriggerTask(ctx context.Context, taskID string) (*Execution, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	return s.executeTask(ctx, task, time.Now())
}

// scheduleTask arms a timer for the task's next run.
func (s *Scheduler) scheduleTask(task *Task) {
	next, ok := task.NextRun(time.Now())
	if !ok {
		s.logger.Debug("task has no future runs", "id", task.ID, "name", task.Name)
		return
	}
	delay := max(time.Until(next), 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if timer, exists := s.timers[task.ID]; exists {
		timer.Stop()
	}
	id := task.ID
	s.timers[id] = time.AfterFunc(delay, func() { s.onTaskFire(id, next) })

	s.logger.Debug("task scheduled",
		"id", task.ID,
		"name", task.Name,
		"next", next,
		"delay", delay,
	)
}

// onTaskFire runs a task whose timer fired and re-arms recurring ones.
func (s *Scheduler) onTaskFire(taskID string, scheduledAt time.Time) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	delete(s.timers, taskID)
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()
	defer s.wg.Done()

	task, err := s.store.GetTask(taskID)
	if err != nil {
		s.logger.Error("failed to load task for execution", "id", taskID, "error", err)
		return
	}
	if !task.Enabled {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()
	if _, err := s.executeTask(ctx, task, scheduledAt); err != nil {
		s.logger.Error("task execution failed", "id", taskID, "name", task.Name, "error", err)
	}

	if task.Schedule.Kind != ScheduleAt {
		s.scheduleTask(task)
	}
}

// executeTask runs a task and records the execution.
func (s *Scheduler) executeTask(ctx context.Context, task *Task, scheduledAt time.Time) (*Execution, error) {
	started := time.Now()
	exec := &Execution{
		ID:          NewID(),
		TaskID:      task.ID,
		ScheduledAt: scheduledAt,
		StartedAt:   &started,
		Status:      StatusRunning,
	}
	if err := s.store.CreateExecution(exec); err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}

	s.logger.Debug("executing task",
		"task_id", task.ID,
		"task_name", task.Name,
		"execution_id", exec.ID,
	)

	var (
		result  string
		execErr error
	)
	if s.execute != nil {
		result, execErr = s.execute(ctx, task)
	}

	completed := time.Now()
	exec.CompletedAt = &completed
	if execErr != nil {
		exec.Status = StatusFailed
		exec.Result = execErr.Error()
	} else {
		exec.Status = StatusCompleted
		exec.Result = result
	}
	if err := s.store.UpdateExecution(exec); err != nil {
		s.logger.Error("failed to update execution", "id", exec.ID, "error", err)
	}
	if s.recorder != nil {
		s.recorder.TaskExecuted(string(task.Payload.Kind), execErr != nil)
	}

	s.logger.Info("task executed",
		"task_name", task.Name,
		"execution_id", exec.ID,
		"status", exec.Status,
		"duration", completed.Sub(started).Round(time.Millisecond),
	)
	return exec, execErr
}

func (s *Scheduler) cancelTimer(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, exists := s.timers[taskID]; exists {
		timer.Stop()
		delete(s.timers, taskID)
	}
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() map[string]any {
	tasks, _ := s.store.ListTasks(false)
	enabled := 0
	for _, t := range tasks {
		if t.Enabled {
			enabled++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"running":       s.running,
		"total_tasks":   len(tasks),
		"enabled_tasks": enabled,
		"active_timers": len(s.timers),
	}
}
