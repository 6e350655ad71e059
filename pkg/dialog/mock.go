package dialog

import (
	"context"
	"sync"
	"time"
)

// Mock implements Generator for testing.
// All methods can be customized via function fields.
type Mock struct {
	// OpeningLineFunc is called when OpeningLine is invoked.
	// If nil, returns a canned greeting.
	OpeningLineFunc func(ctx context.Context, info CallInfo) (string, error)

	// ReplyFunc is called when Reply is invoked.
	// If nil, returns a canned reply.
	ReplyFunc func(ctx context.Context, info CallInfo, turns []Turn) (string, error)

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Info   CallInfo
	Turns  int
	Time   time.Time
}

// NewMock creates a new mock generator with canned responses.
func NewMock() *Mock {
	return &Mock{
		OpeningLineFunc: func(ctx context.Context, info CallInfo) (string, error) {
			return "Hello, I'm an AI assistant calling on behalf of " + info.UserName + ".", nil
		},
		ReplyFunc: func(ctx context.Context, info CallInfo, turns []Turn) (string, error) {
			return "That works, thank you.", nil
		},
	}
}

// OpeningLine calls OpeningLineFunc and records the call.
func (m *Mock) OpeningLine(ctx context.Context, info CallInfo) (string, error) {
	m.recordCall("OpeningLine", info, 0)
	if m.OpeningLineFunc != nil {
		return m.OpeningLineFunc(ctx, info)
	}
	return "", ErrNoChoices
}

// Reply calls ReplyFunc and records the call.
func (m *Mock) Reply(ctx context.Context, info CallInfo, turns []Turn) (string, error) {
	m.recordCall("Reply", info, len(turns))
	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, info, turns)
	}
	return "", ErrNoChoices
}

// Calls returns a copy of all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times the named method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Mock) recordCall(method string, info CallInfo, turns int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Info:   info,
		Turns:  turns,
		Time:   time.Now(),
	})
}
