// Package stt provides a unified interface for speech-to-text providers.
//
// The bridge hands each provider a complete WAV file (16kHz mono PCM16) and
// expects plain transcript text back. All providers implement the Provider
// interface, enabling seamless switching without changing caller code.
//
// Example usage:
//
//	provider, _ := stt.NewElevenLabs(
//	    stt.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	)
//	defer provider.Close()
//
//	text, _ := provider.Transcribe(ctx, wavBytes)
package stt

import "context"

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts a complete WAV file to transcript text.
	// An empty transcript with a nil error means the audio contained no
	// recognizable speech.
	Transcribe(ctx context.Context, wav []byte) (string, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}
