package bridge

import (
	"log/slog"
	"time"
)

// Audio rates on the three legs of the pipeline.
const (
	// CarrierSampleRate is the telephony leg: 8kHz mu-law.
	CarrierSampleRate = 8000

	// TranscribeSampleRate is what the transcription service expects.
	TranscribeSampleRate = 16000
)

// Defaults for the turn-taking and delivery parameters.
const (
	// DefaultTurnThreshold is 2 seconds of 8kHz mu-law (one byte per sample).
	DefaultTurnThreshold = 2 * CarrierSampleRate

	// DefaultChunkSize is 80ms of 8kHz mu-law per outbound media frame.
	DefaultChunkSize = 640

	// DefaultChunkInterval paces outbound frames so the carrier's inbound
	// buffer is not overrun. It is not wall-clock playback pacing.
	DefaultChunkInterval = 10 * time.Millisecond

	// DefaultGreetingDelay lets the carrier's audio path stabilize before
	// the opening utterance.
	DefaultGreetingDelay = time.Second

	// DefaultCallTimeout bounds each collaborator call so a stalled
	// service cannot hang the session indefinitely.
	DefaultCallTimeout = 30 * time.Second
)

// Config holds bridge configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// TurnThreshold is the buffered byte count that triggers a turn.
	TurnThreshold int

	// ChunkSize is the outbound media frame payload size in bytes.
	ChunkSize int

	// ChunkInterval is the delay between outbound media frames.
	ChunkInterval time.Duration

	// GreetingDelay is the pause between stream start and the opening
	// utterance.
	GreetingDelay time.Duration

	// CallTimeout bounds each collaborator call (transcription,
	// generation, synthesis).
	CallTimeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the bridge.
type Option func(*Config)

// WithTurnThreshold sets the buffered byte count that triggers a turn.
func WithTurnThreshold(bytes int) Option {
	return func(c *Config) {
		c.TurnThreshold = bytes
	}
}

// WithChunkSize sets the outbound media frame payload size.
func WithChunkSize(bytes int) Option {
	return func(c *Config) {
		c.ChunkSize = bytes
	}
}

// WithChunkInterval sets the delay between outbound media frames.
func WithChunkInterval(d time.Duration) Option {
	return func(c *Config) {
		c.ChunkInterval = d
	}
}

// WithGreetingDelay sets the pause before the opening utterance.
func WithGreetingDelay(d time.Duration) Option {
	return func(c *Config) {
		c.GreetingDelay = d
	}
}

// WithCallTimeout bounds each collaborator call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		TurnThreshold: DefaultTurnThreshold,
		ChunkSize:     DefaultChunkSize,
		ChunkInterval: DefaultChunkInterval,
		GreetingDelay: DefaultGreetingDelay,
		CallTimeout:   DefaultCallTimeout,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
