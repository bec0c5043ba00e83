// Package llm provides LLM client implementations.
package llm

import "context"

// Client is the interface that all LLM providers must implement.
//
// Chat never returns a Go error. Transport errors, non-2xx statuses and
// malformed payloads come back as a Response whose FinishReason is
// FinishReasonError so callers can treat every outcome as a value.
type Client interface {
	Chat(ctx context.Context, req *Request) *Response
}

// Pinger is implemented by clients that can check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
