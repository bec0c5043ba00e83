package tools

import "context"

type contextKey string

const sessionKeyKey contextKey = "session_key"
const channelKey contextKey = "channel"

// WithSessionKey adds the active session key to the context.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyKey, key)
}

// SessionKeyFromContext extracts the session key from the context.
// Returns "" if not set.
func SessionKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(sessionKeyKey).(string); ok {
		return key
	}
	return ""
}

// WithChannel records the inbound channel name on the context.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey, channel)
}

// ChannelFromContext returns the inbound channel, or "" if not set.
func ChannelFromContext(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey).(string); ok {
		return ch
	}
	return ""
}
