package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// socket is the slice of the websocket connection the gateway needs.
// *websocket.Conn satisfies it; tests supply an in-memory implementation.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Gateway accepts carrier media-stream connections and runs one session per
// connection: it demultiplexes inbound frames, segments caller audio into
// turns, and hands each turn to the orchestrator.
type Gateway struct {
	orch   *Orchestrator
	config *Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewGateway creates a gateway over the orchestrator. The gateway shares
// the orchestrator's configuration.
func NewGateway(orch *Orchestrator) *Gateway {
	return &Gateway{
		orch:     orch,
		config:   orch.config,
		logger:   orch.config.Logger.With("component", "bridge.gateway"),
		sessions: make(map[string]*Session),
	}
}

// ActiveSessions reports the number of live connections.
func (g *Gateway) ActiveSessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// RegisterRoutes mounts the media-stream endpoint on a Fiber app.
func (g *Gateway) RegisterRoutes(app *fiber.App) {
	app.Use("/media-stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/media-stream", websocket.New(g.HandleConn))
}

// HandleConn serves one carrier connection to completion. It is intended
// as the handler for the media-stream websocket route and returns when the
// carrier closes the connection or sends a stop frame.
func (g *Gateway) HandleConn(c *websocket.Conn) {
	g.handle(c)
}

func (g *Gateway) handle(s socket) {
	sess := NewSession(uuid.NewString())
	g.register(sess)
	defer g.unregister(sess)
	defer sess.Close()
	defer s.Close()

	tr := &connTransport{sock: s, config: g.config}

	g.logger.Info("connection accepted", "session_id", sess.ID)

	for {
		mt, data, err := s.ReadMessage()
		if err != nil {
			g.logger.Debug("connection closed", "session_id", sess.ID, "error", err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.logger.Warn("malformed frame dropped", "session_id", sess.ID, "error", err)
			continue
		}

		switch frame.Event {
		case EventConnected:
			g.logger.Debug("carrier connected", "session_id", sess.ID)

		case EventStart:
			sess.Begin(frame.StreamSID, frame.Start)
			g.logger.Info("stream started",
				"session_id", sess.ID,
				"stream_sid", sess.StreamSID(),
				"call_sid", sess.CallSID())
			g.scheduleGreeting(sess, tr)

		case EventMedia:
			if frame.Media == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
			if err != nil {
				g.logger.Warn("undecodable media payload dropped",
					"session_id", sess.ID, "error", err)
				continue
			}
			if snapshot := sess.AppendAudio(payload, g.config.TurnThreshold); snapshot != nil {
				go g.orch.ProcessTurn(sess.Context(), sess, snapshot, tr)
			}

		case EventMark:
			if frame.Mark != nil {
				g.logger.Debug("mark acknowledged",
					"session_id", sess.ID, "name", frame.Mark.Name)
			}

		case EventDTMF:
			if frame.DTMF != nil {
				g.logger.Info("dtmf received",
					"session_id", sess.ID, "digit", frame.DTMF.Digit)
			}

		case EventStop:
			g.logger.Info("stream stopped",
				"session_id", sess.ID,
				"call_sid", sess.CallSID(),
				"turns", len(sess.Turns()))
			return

		default:
			g.logger.Debug("unhandled event", "session_id", sess.ID, "event", frame.Event)
		}
	}
}

// scheduleGreeting speaks the opening utterance after the configured delay,
// unless the session ends first.
func (g *Gateway) scheduleGreeting(sess *Session, tr Transport) {
	go func() {
		timer := time.NewTimer(g.config.GreetingDelay)
		defer timer.Stop()
		select {
		case <-sess.Context().Done():
			return
		case <-timer.C:
		}
		g.orch.Greet(sess.Context(), sess, tr)
	}()
}

func (g *Gateway) register(sess *Session) {
	g.mu.Lock()
	g.sessions[sess.ID] = sess
	g.mu.Unlock()
}

func (g *Gateway) unregister(sess *Session) {
	g.mu.Lock()
	delete(g.sessions, sess.ID)
	g.mu.Unlock()
}

// connTransport delivers utterances over one websocket connection. The
// mutex serializes writes so a greeting and a turn reply never interleave
// frames on the wire.
type connTransport struct {
	sock   socket
	config *Config
	mu     sync.Mutex
}

// SendUtterance chunks a mu-law utterance into paced media frames and
// terminates it with an audio-complete mark. Delivery aborts between
// chunks if the context or session ends.
func (t *connTransport) SendUtterance(ctx context.Context, sess *Session, mulaw []byte) error {
	streamSID := sess.StreamSID()
	if streamSID == "" {
		return ErrNoStream
	}

	for off := 0; off < len(mulaw); off += t.config.ChunkSize {
		select {
		case <-ctx.Done():
			return ErrSessionClosed
		default:
		}

		end := min(off+t.config.ChunkSize, len(mulaw))
		frame := Frame{
			Event:     EventMedia,
			StreamSID: streamSID,
			Media: &MediaFrame{
				Payload: base64.StdEncoding.EncodeToString(mulaw[off:end]),
			},
		}
		if err := t.write(frame); err != nil {
			return err
		}

		timer := time.NewTimer(t.config.ChunkInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrSessionClosed
		case <-timer.C:
		}
	}

	return t.write(Frame{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkFrame{Name: MarkAudioComplete},
	})
}

func (t *connTransport) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sock.WriteMessage(websocket.TextMessage, data)
}
