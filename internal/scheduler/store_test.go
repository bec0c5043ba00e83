package scheduler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "scheduler_test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func cleanupTask(name string, every time.Duration) *Task {
	return &Task{
		Name:      name,
		Schedule:  Schedule{Kind: ScheduleEvery, Every: &Duration{Duration: every}},
		Payload:   Payload{Kind: PayloadSessionCleanup, Data: map[string]any{"max_age": "1h"}},
		Enabled:   true,
		CreatedBy: "test",
	}
}

func TestNewStoreCreatesDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := cleanupTask("cleanup", 10*time.Minute)
	if err := s.CreateTask(want); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if want.ID == "" || want.CreatedAt.IsZero() {
		t.Fatalf("CreateTask did not assign ID and timestamps: %+v", want)
	}

	got, err := s.GetTask(want.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Name != "cleanup" || !got.Enabled || got.CreatedBy != "test" {
		t.Errorf("task = %+v", got)
	}
	if got.Schedule.Every == nil || got.Schedule.Every.Duration != 10*time.Minute {
		t.Errorf("schedule = %+v", got.Schedule)
	}
	if got.Payload.Kind != PayloadSessionCleanup || got.Payload.Data["max_age"] != "1h" {
		t.Errorf("payload = %+v", got.Payload)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTask("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("GetTask err = %v, want ErrTaskNotFound", err)
	}
	if err := s.DeleteTask("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("DeleteTask err = %v, want ErrTaskNotFound", err)
	}
	if err := s.UpdateTask(&Task{ID: "missing", Name: "x"}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("UpdateTask err = %v, want ErrTaskNotFound", err)
	}
}

func TestGetTaskByName(t *testing.T) {
	s := newTestStore(t)
	alpha := cleanupTask("alpha", 5*time.Minute)
	beta := cleanupTask("beta", 10*time.Minute)
	for _, task := range []*Task{alpha, beta} {
		if err := s.CreateTask(task); err != nil {
			t.Fatalf("CreateTask(%s): %v", task.Name, err)
		}
	}

	tests := []struct {
		name   string
		wantID string
	}{
		{"beta", beta.ID},
		{"alpha", alpha.ID},
		{"nonexistent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetTaskByName(tt.name)
			if err != nil {
				t.Fatalf("GetTaskByName: %v", err)
			}
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Errorf("got %+v, want ID %s", got, tt.wantID)
			}
		})
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateTask(cleanupTask("dup", time.Minute)); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.CreateTask(cleanupTask("dup", 2*time.Minute)); err == nil {
		t.Error("expected unique constraint error")
	}
}

func TestListTasksEnabledOnly(t *testing.T) {
	s := newTestStore(t)
	on := cleanupTask("on", time.Minute)
	off := cleanupTask("off", time.Minute)
	off.Enabled = false
	for _, task := range []*Task{on, off} {
		if err := s.CreateTask(task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	all, err := s.ListTasks(false)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListTasks(false) = %d tasks, err %v", len(all), err)
	}
	enabled, err := s.ListTasks(true)
	if err != nil || len(enabled) != 1 || enabled[0].Name != "on" {
		t.Fatalf("ListTasks(true) = %+v, err %v", enabled, err)
	}
}

func TestExecutionsCascadeAndPrune(t *testing.T) {
	s := newTestStore(t)
	task := cleanupTask("cleanup", time.Minute)
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	for _, at := range []time.Time{old, recent} {
		if err := s.CreateExecution(&Execution{TaskID: task.ID, ScheduledAt: at, Status: StatusCompleted}); err != nil {
			t.Fatalf("CreateExecution: %v", err)
		}
	}

	execs, err := s.ListExecutions(task.ID, 0)
	if err != nil || len(execs) != 2 {
		t.Fatalf("ListExecutions = %d, err %v", len(execs), err)
	}
	if !execs[0].ScheduledAt.After(execs[1].ScheduledAt) {
		t.Error("executions not ordered newest first")
	}

	n, err := s.PruneExecutions(time.Now().Add(-24 * time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneExecutions = %d, err %v", n, err)
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	execs, err = s.ListExecutions(task.ID, 0)
	if err != nil || len(execs) != 0 {
		t.Errorf("executions after delete = %d, err %v", len(execs), err)
	}
}

func TestUpdateExecution(t *testing.T) {
	s := newTestStore(t)
	task := cleanupTask("cleanup", time.Minute)
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	started := time.Now()
	exec := &Execution{TaskID: task.ID, ScheduledAt: started, StartedAt: &started, Status: StatusRunning}
	if err := s.CreateExecution(exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	done := started.Add(time.Second)
	exec.CompletedAt = &done
	exec.Status = StatusFailed
	exec.Result = "boom"
	if err := s.UpdateExecution(exec); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}

	execs, _ := s.ListExecutions(task.ID, 1)
	if len(execs) != 1 {
		t.Fatalf("got %d executions", len(execs))
	}
	got := execs[0]
	if got.Status != StatusFailed || got.Result != "boom" || got.CompletedAt == nil {
		t.Errorf("execution = %+v", got)
	}
}
