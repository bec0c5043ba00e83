// Package session provides volatile, per-conversation message history.
package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/llm"
)

// DefaultMaxMessages is the per-session history bound used when the
// configured value is zero or negative.
const DefaultMaxMessages = 100

// Status values reported by Info.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Message is one stored conversation message.
type Message struct {
	Role      string            `json:"role"` // user, assistant, tool
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Session holds the history and lifecycle of a single conversation.
// All methods are safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	key         string
	messages    []Message
	maxMessages int
	ended       bool
	createdAt   time.Time
	updatedAt   time.Time
	now         func() time.Time
}

// Key returns the conversation key.
func (s *Session) Key() string { return s.key }

// AddMessage appends a message and trims the history from the front so
// it never exceeds the session bound.
func (s *Session) AddMessage(role, content string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.messages = append(s.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Attrs:     attrs,
	})
	s.updatedAt = now

	if over := len(s.messages) - s.maxMessages; over > 0 {
		kept := make([]Message, s.maxMessages)
		copy(kept, s.messages[over:])
		s.messages = kept
	}
}

// History returns at most n of the most recent messages reduced to role
// and content, in the form sent to the model.
func (s *Session) History(n int) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.messages
	if n >= 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	out := make([]llm.Message, len(recent))
	for i, m := range recent {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Messages returns a copy of the stored history including attributes.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// End marks the conversation as ended by the agent.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.updatedAt = s.now()
}

// Reactivate clears the ended flag so the agent responds again.
func (s *Session) Reactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = false
	s.updatedAt = s.now()
}

// IsEnded reports whether the conversation has been ended.
func (s *Session) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Clear drops all stored messages without changing the lifecycle state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.updatedAt = s.now()
}

// UpdatedAt returns the time of the last write.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Info returns a summary of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusActive
	if s.ended {
		status = StatusEnded
	}
	return Info{
		Key:          s.key,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
		MessageCount: len(s.messages),
		Status:       status,
	}
}

// Info is a read-only description of a session.
type Info struct {
	Key          string    `json:"key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Status       string    `json:"status"`
}

// Store owns every session, keyed by conversation key. Callers go
// through its methods; the underlying map is never exposed.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxMessages int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store whose sessions keep at most
// maxMessages entries.
func NewStore(maxMessages int, opts ...Option) *Store {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	s := &Store{
		sessions:    make(map[string]*Session),
		maxMessages: maxMessages,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session for key, creating it on first use.
func (s *Store) GetOrCreate(key string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	now := s.now()
	sess = &Session{
		key:         key,
		maxMessages: s.maxMessages,
		createdAt:   now,
		updatedAt:   now,
		now:         s.now,
	}
	s.sessions[key] = sess
	s.logger.Debug("session created", "session", key)
	return sess
}

// Get returns the session for key if it exists.
func (s *Store) Get(key string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Delete removes the session for key. It reports whether a session was
// removed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return false
	}
	delete(s.sessions, key)
	return true
}

// List returns session summaries, most recently updated first.
func (s *Store) List() []Info {
	s.mu.RLock()
	infos := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, sess.Info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].Key < infos[j].Key
		}
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanupStale removes sessions not written to within maxAge and
// returns how many were removed.
func (s *Store) CleanupStale(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("stale sessions removed", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

// Stats returns store statistics.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totalMessages := 0
	ended := 0
	for _, sess := range s.sessions {
		totalMessages += sess.Len()
		if sess.IsEnded() {
			ended++
		}
	}

	return map[string]any{
		"sessions":     len(s.sessions),
		"ended":        ended,
		"messages":     totalMessages,
		"max_per_sess": s.maxMessages,
	}
}
