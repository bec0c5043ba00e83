package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/session"
)

func newStateRegistry(t *testing.T, n int) (*Registry, *session.Store) {
	t.Helper()
	store := session.NewStore(10)
	for i := range n {
		sess := store.GetOrCreate(fmt.Sprintf("discord:c:u%02d", i))
		sess.AddMessage("user", "hi", nil)
		if i == 0 {
			sess.End()
		}
	}
	r := NewRegistry(quietLogger())
	r.RegisterInternalState(store, func() map[string]any {
		return map[string]any{"channels": []string{"discord"}}
	}, time.Now().Add(-time.Minute))
	return r, store
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return m
}

func TestInternalStateGetStatus(t *testing.T) {
	r, _ := newStateRegistry(t, 3)
	got := decode(t, r.Execute(context.Background(), "internal_state", map[string]any{"action": "get_status"}))

	if got["active_sessions"] != float64(2) || got["ended_sessions"] != float64(1) {
		t.Errorf("counts = %v/%v, want 2/1", got["active_sessions"], got["ended_sessions"])
	}
	if got["uptime"] == "" || got["channels"] == nil {
		t.Errorf("status missing fields: %v", got)
	}
}

func TestInternalStateListSessions(t *testing.T) {
	tests := []struct {
		name     string
		sessions int
		limit    any
		want     int
	}{
		{"default limit", 15, nil, 10},
		{"explicit limit", 15, float64(3), 3},
		{"capped at 50", 60, float64(500), 50},
		{"fewer than limit", 2, nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newStateRegistry(t, tt.sessions)
			args := map[string]any{"action": "list_sessions"}
			if tt.limit != nil {
				args["limit"] = tt.limit
			}
			got := decode(t, r.Execute(context.Background(), "internal_state", args))
			list, _ := got["sessions"].([]any)
			if len(list) != tt.want {
				t.Errorf("got %d sessions, want %d", len(list), tt.want)
			}
		})
	}
}

func TestInternalStateListEmpty(t *testing.T) {
	r, _ := newStateRegistry(t, 0)
	got := decode(t, r.Execute(context.Background(), "internal_state", map[string]any{"action": "list_sessions"}))
	if got["message"] != "활성 세션이 없습니다." {
		t.Errorf("message = %v", got["message"])
	}
}

func TestInternalStateDeleteSession(t *testing.T) {
	r, store := newStateRegistry(t, 2)

	out := r.Execute(context.Background(), "internal_state", map[string]any{"action": "delete_session", "session_key": "discord:c:u01"})
	if IsErrorResult(out) {
		t.Fatalf("delete failed: %s", out)
	}
	if _, ok := store.Get("discord:c:u01"); ok {
		t.Error("session still present after delete")
	}

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing key", map[string]any{"action": "delete_session"}},
		{"unknown key", map[string]any{"action": "delete_session", "session_key": "nope"}},
		{"unknown action", map[string]any{"action": "reboot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := r.Execute(context.Background(), "internal_state", tt.args); !IsErrorResult(out) {
				t.Errorf("expected error payload, got %s", out)
			}
		})
	}
}
