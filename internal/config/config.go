// Package config provides configuration helpers for go-callbridge commands.
package config

import (
	"fmt"
	"os"
)

// Default service configuration.
const (
	DefaultListenAddr = ":8080"

	// DefaultVoiceID is the ElevenLabs "Sarah" voice.
	DefaultVoiceID = "EXAVITQu4vr4xnSDxMaL"
)

// Env returns the value of the environment variable key.
// Falls back to the provided default if not set.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvRequired returns the value of the environment variable key.
// Exits with a usage message if not set.
func EnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", key)
		fmt.Fprintf(os.Stderr, "Usage: %s=... go run ./cmd/callbridge\n", key)
		os.Exit(1)
	}
	return v
}

// ElevenLabsKey returns the ElevenLabs API key from ELEVENLABS_API_KEY.
func ElevenLabsKey() string {
	return os.Getenv("ELEVENLABS_API_KEY")
}

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// VoiceID returns the TTS voice ID from ELEVENLABS_VOICE_ID or the default.
func VoiceID() string {
	return Env("ELEVENLABS_VOICE_ID", DefaultVoiceID)
}
