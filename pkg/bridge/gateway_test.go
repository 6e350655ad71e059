package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-callbridge/pkg/dialog"
	"github.com/teslashibe/go-callbridge/pkg/stt"
	"github.com/teslashibe/go-callbridge/pkg/tts"
)

// fakeSocket is an in-memory socket: inbound frames arrive on a channel,
// outbound writes are recorded.
type fakeSocket struct {
	in chan []byte

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{in: make(chan []byte, 64)}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	data, ok := <-f.in
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, buf)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) send(t *testing.T, frame Frame) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}
	f.in <- data
}

// frames decodes everything written so far.
func (f *fakeSocket) frames(t *testing.T) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.writes))
	for _, data := range f.writes {
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("Failed to decode outbound frame: %v", err)
		}
		out = append(out, frame)
	}
	return out
}

func countEvents(frames []Frame, event string) int {
	n := 0
	for _, f := range frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func newTestGateway(sttProvider stt.Provider, gen dialog.Generator, ttsProvider tts.Provider, opts ...Option) *Gateway {
	base := []Option{
		WithLogger(testLogger()),
		WithGreetingDelay(5 * time.Millisecond),
		WithChunkInterval(time.Millisecond),
		WithTurnThreshold(320),
	}
	orch := NewOrchestrator(sttProvider, gen, ttsProvider, append(base, opts...)...)
	return NewGateway(orch)
}

func startFrame() Frame {
	return Frame{
		Event:     EventStart,
		StreamSID: "MZ123",
		Start: &StartFrame{
			StreamSID: "MZ123",
			CallSID:   "CA456",
			Tracks:    []string{"inbound"},
			MediaFormat: MediaFormat{
				Encoding:   "audio/x-mulaw",
				SampleRate: 8000,
				Channels:   1,
			},
			CustomParameters: map[string]string{
				"providerName": "Harbor Dental",
				"userName":     "Jordan Lee",
			},
		},
	}
}

func mediaFrame(payload []byte) Frame {
	return Frame{
		Event:     EventMedia,
		StreamSID: "MZ123",
		Media:     &MediaFrame{Payload: base64.StdEncoding.EncodeToString(payload)},
	}
}

func TestGatewayGreetsBeforeAnyCallerAudio(t *testing.T) {
	gen := dialog.NewMock()
	g := newTestGateway(stt.NewMock(""), gen, tts.NewMock())

	sock := newFakeSocket()
	done := make(chan struct{})
	go func() {
		g.handle(sock)
		close(done)
	}()

	sock.send(t, Frame{Event: EventConnected})
	sock.send(t, startFrame())

	// The greeting arrives unprompted: media frames then exactly one mark.
	waitFor(t, 2*time.Second, "greeting mark", func() bool {
		return countEvents(sock.frames(t), EventMark) == 1
	})

	frames := sock.frames(t)
	if countEvents(frames, EventMedia) < 1 {
		t.Error("Expected at least one media frame before the mark")
	}
	if frames[0].Event != EventMedia {
		t.Errorf("Expected media first, got %q", frames[0].Event)
	}
	last := frames[len(frames)-1]
	if last.Event != EventMark || last.Mark == nil || last.Mark.Name != MarkAudioComplete {
		t.Errorf("Expected trailing %q mark, got %+v", MarkAudioComplete, last)
	}
	for _, f := range frames {
		if f.StreamSID != "MZ123" {
			t.Errorf("Expected outbound stream SID MZ123, got %q", f.StreamSID)
		}
		if f.Event == EventMedia {
			if _, err := base64.StdEncoding.DecodeString(f.Media.Payload); err != nil {
				t.Errorf("Outbound payload not valid base64: %v", err)
			}
		}
	}
	if gen.CallCount("OpeningLine") != 1 {
		t.Errorf("Expected 1 opening line call, got %d", gen.CallCount("OpeningLine"))
	}

	close(sock.in)
	<-done
}

func TestGatewayTurnCycle(t *testing.T) {
	gen := dialog.NewMock()
	g := newTestGateway(stt.NewMock("We have an opening tomorrow."), gen, tts.NewMock())

	sock := newFakeSocket()
	done := make(chan struct{})
	go func() {
		g.handle(sock)
		close(done)
	}()

	sock.send(t, startFrame())
	waitFor(t, 2*time.Second, "greeting mark", func() bool {
		return countEvents(sock.frames(t), EventMark) == 1
	})

	// Two 160-byte payloads reach the 320-byte threshold.
	sock.send(t, mediaFrame(make([]byte, 160)))
	sock.send(t, mediaFrame(make([]byte, 160)))

	waitFor(t, 2*time.Second, "reply mark", func() bool {
		return countEvents(sock.frames(t), EventMark) == 2
	})

	if gen.CallCount("Reply") != 1 {
		t.Errorf("Expected 1 reply call, got %d", gen.CallCount("Reply"))
	}
	// Reply sees greeting + counterparty turn.
	for _, call := range gen.Calls() {
		if call.Method == "Reply" && call.Turns != 2 {
			t.Errorf("Expected reply generated from 2 turns, got %d", call.Turns)
		}
	}

	close(sock.in)
	<-done
}

func TestGatewaySynthesisFailureKeepsListening(t *testing.T) {
	gen := dialog.NewMock()
	ttsMock := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*tts.AudioResult, error) {
			return nil, tts.WrapError("elevenlabs", tts.ErrProviderUnavailable)
		},
	}
	g := newTestGateway(stt.NewMock("Still here?"), gen, ttsMock)

	sock := newFakeSocket()
	done := make(chan struct{})
	go func() {
		g.handle(sock)
		close(done)
	}()

	sock.send(t, startFrame())
	waitFor(t, 2*time.Second, "failed greeting attempt", func() bool {
		return gen.CallCount("OpeningLine") == 1
	})

	// Two turns of audio; each should still reach the generator even
	// though nothing can be spoken. Audio keeps flowing until the turn
	// guard clears and the buffered bytes dispatch.
	for i := 0; i < 2; i++ {
		replies := gen.CallCount("Reply")
		waitFor(t, 2*time.Second, "reply generation", func() bool {
			sock.send(t, mediaFrame(make([]byte, 320)))
			return gen.CallCount("Reply") > replies
		})
	}

	if got := len(sock.frames(t)); got != 0 {
		t.Errorf("Expected no outbound frames when synthesis fails, got %d", got)
	}

	close(sock.in)
	<-done
}

func TestGatewayStopEndsSession(t *testing.T) {
	g := newTestGateway(stt.NewMock(""), dialog.NewMock(), tts.NewMock(),
		WithGreetingDelay(time.Minute))

	sock := newFakeSocket()
	done := make(chan struct{})
	go func() {
		g.handle(sock)
		close(done)
	}()

	sock.send(t, startFrame())
	waitFor(t, time.Second, "session registration", func() bool {
		return g.ActiveSessions() == 1
	})

	sock.send(t, Frame{Event: EventStop, Stop: &StopFrame{CallSID: "CA456"}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected handle to return after stop frame")
	}
	if g.ActiveSessions() != 0 {
		t.Errorf("Expected 0 active sessions after stop, got %d", g.ActiveSessions())
	}

	sock.mu.Lock()
	closed := sock.closed
	sock.mu.Unlock()
	if !closed {
		t.Error("Expected socket closed after stop")
	}
}

func TestGatewayMalformedFramesIgnored(t *testing.T) {
	g := newTestGateway(stt.NewMock(""), dialog.NewMock(), tts.NewMock(),
		WithGreetingDelay(time.Minute))

	sock := newFakeSocket()
	done := make(chan struct{})
	go func() {
		g.handle(sock)
		close(done)
	}()

	sock.in <- []byte("{not json")
	sock.send(t, Frame{Event: EventMedia, Media: &MediaFrame{Payload: "***"}})
	sock.send(t, Frame{Event: "unknown-event"})
	sock.send(t, Frame{Event: EventStop})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected handle to survive malformed frames and stop cleanly")
	}
}
