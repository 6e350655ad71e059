package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-callbridge/pkg/dialog"
)

// SessionState describes where a session is in the turn-taking cycle.
type SessionState int

const (
	// StateIdle indicates no caller audio has arrived yet.
	StateIdle SessionState = iota
	// StateAccumulating indicates inbound audio is being buffered.
	StateAccumulating
	// StateProcessing indicates a conversational turn is in flight.
	StateProcessing
)

// String returns a human-readable session state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Session holds all per-call state. One Session exists per carrier
// connection, owned by the connection that created it and destroyed when
// the connection closes. Sessions share no state with each other.
type Session struct {
	// ID is the gateway-assigned connection identifier, available before
	// the carrier names the stream.
	ID string

	mu sync.Mutex

	streamSID string
	callSID   string
	info      dialog.CallInfo
	started   bool

	// turns is append-only and never reordered: it is the ground truth
	// handed to the generator as context on every turn.
	turns []dialog.Turn

	// buf accumulates inbound mu-law audio between turns. It is drained
	// to empty every time a turn is dispatched and never carries audio
	// across two processed turns.
	buf []byte

	// processing guards against a second turn starting while one is in
	// flight. Audio arriving during that window still lands in buf.
	processing bool

	lastActivity time.Time
	silenceStart time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session for a freshly accepted connection.
func NewSession(id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:     id,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the session's lifetime context. It is cancelled when the
// carrier stops the stream, aborting any turn in flight.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Begin records the stream identity and snapshots the call context from the
// start frame, applying defaults for any missing parameter.
func (s *Session) Begin(streamSID string, start *StartFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streamSID = streamSID
	s.started = true

	var params map[string]string
	if start != nil {
		s.callSID = start.CallSID
		if start.StreamSID != "" {
			s.streamSID = start.StreamSID
		}
		params = start.CustomParameters
	}

	get := func(key, fallback string) string {
		if v, ok := params[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	s.info = dialog.CallInfo{
		ProviderName:   get("providerName", "the business"),
		Service:        get("service", "appointment"),
		UserName:       get("userName", "a customer"),
		Purpose:        get("purpose", "new_appointment"),
		Details:        get("details", ""),
		TimePreference: get("timePreference", "flexible"),
	}
}

// StreamSID returns the carrier-assigned stream identifier.
func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// CallSID returns the carrier-assigned call identifier.
func (s *Session) CallSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

// Info returns the immutable call-context snapshot.
func (s *Session) Info() dialog.CallInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// AppendAudio adds an inbound mu-law payload to the accumulation buffer and
// refreshes the activity timestamp. When the buffered audio reaches
// threshold bytes and no turn is in flight, the buffer is snapshotted,
// cleared, and returned with the turn-in-progress guard set; the caller
// must invoke FinishTurn when the turn completes. Returns nil otherwise.
//
// Segmentation is a pure duration heuristic. There is no energy-based
// silence detection, so a caller pausing mid-sentence longer than the
// threshold will be cut into two turns.
func (s *Session) AppendAudio(payload []byte, threshold int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, payload...)
	s.lastActivity = time.Now()
	s.silenceStart = time.Time{}

	if len(s.buf) < threshold || s.processing {
		return nil
	}

	s.processing = true
	snapshot := s.buf
	s.buf = nil
	s.silenceStart = time.Now()
	return snapshot
}

// FinishTurn clears the turn-in-progress guard so the next
// threshold-triggered turn can start.
func (s *Session) FinishTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
}

// State reports the session's position in the turn-taking cycle.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.processing:
		return StateProcessing
	case len(s.buf) > 0 || s.started:
		return StateAccumulating
	default:
		return StateIdle
	}
}

// BufferedBytes returns the current accumulation buffer size.
func (s *Session) BufferedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// LastActivity returns when inbound audio was last received.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// AppendTurn appends one conversation turn. Turns are never edited or
// reordered after creation.
func (s *Session) AppendTurn(role dialog.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, dialog.Turn{Role: role, Text: text})
}

// Turns returns a copy of the ordered conversation history.
func (s *Session) Turns() []dialog.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dialog.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Close cancels the session context and releases the audio buffer. Any
// turn in flight observes the cancellation and sends no further frames.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
}
