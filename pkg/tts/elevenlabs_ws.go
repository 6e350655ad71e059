package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL  = "wss://api.elevenlabs.io/v1/text-to-speech"
	providerElevenLabsWS = "elevenlabs_ws"

	wsHandshakeTimeout = 10 * time.Second
)

// ElevenLabsWS implements Provider over the ElevenLabs streaming WebSocket
// endpoint. Each Synthesize call dials a fresh stream-input connection, sends
// the utterance, and collects audio chunks until the service marks the
// stream final. Audio arrives sooner than over the batch HTTP endpoint,
// which matters when the caller is waiting on a live phone line.
type ElevenLabsWS struct {
	config  *Config
	logger  *slog.Logger
	baseURL string
	dialer  *websocket.Dialer
}

// NewElevenLabsWS creates a new WebSocket-based ElevenLabs TTS provider.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsWSBaseURL
	}

	return &ElevenLabsWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.elevenlabs_ws"),
		baseURL: baseURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}, nil
}

// Synthesize converts text to audio over a streaming WebSocket connection,
// returning the complete utterance as raw PCM16 at 22.05kHz.
func (e *ElevenLabsWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()

	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.baseURL, e.config.VoiceID, e.config.ModelID, outputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	conn, resp, err := e.dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, WrapError(providerElevenLabsWS,
				fmt.Errorf("dial failed (status %d): %w", resp.StatusCode, err))
		}
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("dial failed: %w", err))
	}
	defer conn.Close()

	// Begin of stream: a single space initializes the voice.
	bos := map[string]interface{}{
		"text": " ",
		"voice_settings": map[string]interface{}{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
			"style":            e.config.VoiceSettings.Style,
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send BOS: %w", err))
	}

	if err := conn.WriteJSON(map[string]interface{}{"text": text + " "}); err != nil {
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send text: %w", err))
	}

	// End of stream: empty text flushes the remaining audio.
	if err := conn.WriteJSON(map[string]interface{}{"text": ""}); err != nil {
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send EOS: %w", err))
	}

	audio, err := e.collect(ctx, conn)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	return &AudioResult{
		Audio:      audio,
		SampleRate: SampleRate,
		CharCount:  len(text),
		LatencyMs:  latency,
	}, nil
}

// collect reads audio chunks until the stream is marked final or the
// context is cancelled.
func (e *ElevenLabsWS) collect(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var audio []byte

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if deadline, ok := ctx.Deadline(); ok {
			conn.SetReadDeadline(deadline)
		} else {
			conn.SetReadDeadline(time.Now().Add(e.config.Timeout))
		}

		var chunk struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
		}
		if err := conn.ReadJSON(&chunk); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return audio, nil
			}
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("read chunk: %w", err))
		}

		if chunk.Error != "" {
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("service error: %s", chunk.Error))
		}

		if chunk.Audio != "" {
			data, err := base64.StdEncoding.DecodeString(chunk.Audio)
			if err != nil {
				return nil, WrapError(providerElevenLabsWS, fmt.Errorf("decode audio: %w", err))
			}
			audio = append(audio, data...)
		}

		if chunk.IsFinal {
			return audio, nil
		}
	}
}

// Health checks that the service is reachable by dialing and immediately
// closing a connection.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.baseURL, e.config.VoiceID, e.config.ModelID, outputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	conn, resp, err := e.dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return WrapError(providerElevenLabsWS,
				fmt.Errorf("health check failed (status %d): %w", resp.StatusCode, err))
		}
		return WrapError(providerElevenLabsWS, fmt.Errorf("health check: %w", err))
	}
	return conn.Close()
}

// Close releases resources held by the provider.
func (e *ElevenLabsWS) Close() error {
	return nil
}
