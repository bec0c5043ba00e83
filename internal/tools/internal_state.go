package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/session"
)

// SessionDirectory is the slice of the session store the internal_state
// tool needs. Implemented by session.Store.
type SessionDirectory interface {
	List() []session.Info
	Delete(key string) bool
	Stats() map[string]any
}

// StatusFunc reports runtime status that lives outside the session
// store, such as running channels.
type StatusFunc func() map[string]any

const (
	defaultSessionListLimit = 10
	maxSessionListLimit     = 50
)

// RegisterInternalState adds the internal_state tool. status may be nil.
func (r *Registry) RegisterInternalState(sessions SessionDirectory, status StatusFunc, started time.Time) {
	r.Register(&Tool{
		Name:        "internal_state",
		Description: "봇 내부 상태 관리. 세션 목록 조회, 상태 확인, 세션 삭제 등. (Inspect bot state: status, sessions, delete a session.)",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"get_status", "list_sessions", "delete_session"},
					"description": "수행할 작업 (action to perform)",
				},
				"session_key": map[string]any{
					"type":        "string",
					"description": "세션 키 (delete_session 액션에서 필요)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "조회할 최대 세션 수 (list_sessions에서 사용, 기본 10, 최대 50)",
				},
			},
			"required": []string{"action"},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			switch action := stringArg(args, "action"); action {
			case "get_status":
				return internalStatus(sessions, status, started), nil
			case "list_sessions":
				return listSessions(sessions, intArg(args, "limit", defaultSessionListLimit)), nil
			case "delete_session":
				key := stringArg(args, "session_key")
				if key == "" {
					return ErrorResult("session_key가 필요합니다."), nil
				}
				if !sessions.Delete(key) {
					return ErrorResult(fmt.Sprintf("세션을 찾을 수 없습니다: `%s`", key)), nil
				}
				return JSONResult(map[string]any{
					"success": true,
					"message": fmt.Sprintf("세션이 삭제되었습니다: `%s`", key),
				}), nil
			default:
				return ErrorResult(fmt.Sprintf("알 수 없는 액션: %s", action)), nil
			}
		},
	})
}

func internalStatus(sessions SessionDirectory, status StatusFunc, started time.Time) string {
	stats := sessions.Stats()
	total, _ := stats["sessions"].(int)
	ended, _ := stats["ended"].(int)

	out := map[string]any{
		"success":         true,
		"active_sessions": total - ended,
		"ended_sessions":  ended,
		"uptime":          time.Since(started).Truncate(time.Second).String(),
	}
	if status != nil {
		for k, v := range status() {
			out[k] = v
		}
	}
	return JSONResult(out)
}

func listSessions(sessions SessionDirectory, limit int) string {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	limit = min(limit, maxSessionListLimit)

	infos := sessions.List()
	if len(infos) == 0 {
		return JSONResult(map[string]any{
			"success":  true,
			"sessions": []any{},
			"message":  "활성 세션이 없습니다.",
		})
	}
	if len(infos) > limit {
		infos = infos[:limit]
	}

	list := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		list = append(list, map[string]any{
			"key":           info.Key,
			"message_count": info.MessageCount,
			"status":        info.Status,
		})
	}
	return JSONResult(map[string]any{"success": true, "sessions": list})
}
