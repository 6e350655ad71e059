// Package tts provides a unified interface for text-to-speech providers.
//
// The bridge requests one complete utterance at a time and expects raw
// PCM16 mono audio back at the provider's declared sample rate (22.05kHz
// for ElevenLabs). All providers implement the Provider interface, enabling
// seamless switching without changing caller code.
//
// Example usage:
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello, I'm calling to book an appointment.")
//	// result.Audio contains PCM16 little-endian samples at result.SampleRate
package tts

import (
	"context"
	"time"
)

// SampleRate is the PCM sample rate produced by the bundled providers (Hz).
const SampleRate = 22050

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete utterance.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains raw PCM16 little-endian mono samples.
	Audio []byte

	// SampleRate in Hz.
	SampleRate int

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to the complete utterance in milliseconds.
	LatencyMs int64
}

// Duration returns the playback duration of the synthesized audio.
func (r *AudioResult) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	samples := len(r.Audio) / 2
	return time.Duration(samples) * time.Second / time.Duration(r.SampleRate)
}

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	Style float64

	// SpeakerBoost enables speaker similarity enhancement.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns the voice settings used on phone calls.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.3,
		SpeakerBoost:    true,
	}
}
