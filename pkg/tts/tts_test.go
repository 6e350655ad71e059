package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewElevenLabs_Validation(t *testing.T) {
	if _, err := NewElevenLabs(); err != ErrNoAPIKey {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}

	if _, err := NewElevenLabs(WithAPIKey("key")); err != ErrNoVoiceID {
		t.Errorf("Expected ErrNoVoiceID, got %v", err)
	}

	if _, err := NewElevenLabs(WithAPIKey("key"), WithVoice("voice")); err != nil {
		t.Errorf("Expected no error with key and voice, got %v", err)
	}
}

func TestElevenLabs_Synthesize(t *testing.T) {
	pcm := make([]byte, 4410) // ~100ms at 22.05kHz

	var gotPath, gotFormat string
	var gotPayload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotPayload)
		w.Write(pcm)
	}))
	defer server.Close()

	provider, err := NewElevenLabs(
		WithAPIKey("test-key"),
		WithVoice("test-voice"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotPath != "/text-to-speech/test-voice" {
		t.Errorf("Expected voice in path, got %s", gotPath)
	}
	if gotFormat != "pcm_22050" {
		t.Errorf("Expected output_format pcm_22050, got %q", gotFormat)
	}
	if gotPayload["text"] != "hello there" {
		t.Errorf("Expected text in payload, got %v", gotPayload["text"])
	}
	if gotPayload["model_id"] != "eleven_turbo_v2_5" {
		t.Errorf("Expected default model, got %v", gotPayload["model_id"])
	}

	settings, ok := gotPayload["voice_settings"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected voice_settings in payload")
	}
	if settings["stability"] != 0.5 || settings["similarity_boost"] != 0.75 {
		t.Errorf("Unexpected voice settings: %v", settings)
	}
	if settings["use_speaker_boost"] != true {
		t.Errorf("Expected speaker boost enabled")
	}

	if len(result.Audio) != len(pcm) {
		t.Errorf("Expected %d audio bytes, got %d", len(pcm), len(result.Audio))
	}
	if result.SampleRate != 22050 {
		t.Errorf("Expected sample rate 22050, got %d", result.SampleRate)
	}
}

func TestElevenLabs_Synthesize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	provider, _ := NewElevenLabs(
		WithAPIKey("bad-key"),
		WithVoice("voice"),
		WithBaseURL(server.URL),
	)
	defer provider.Close()

	_, err := provider.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("Expected unauthorized, got status %d", apiErr.StatusCode)
	}
}

func TestElevenLabs_Synthesize_EmptyText(t *testing.T) {
	provider, _ := NewElevenLabs(WithAPIKey("key"), WithVoice("voice"))
	defer provider.Close()

	if _, err := provider.Synthesize(context.Background(), ""); err != ErrEmptyText {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
}

func TestAudioResult_Duration(t *testing.T) {
	result := &AudioResult{
		Audio:      make([]byte, 44100), // 22050 samples = 1 second
		SampleRate: 22050,
	}

	if d := result.Duration(); d != time.Second {
		t.Errorf("Expected 1s duration, got %v", d)
	}

	empty := &AudioResult{}
	if d := empty.Duration(); d != 0 {
		t.Errorf("Expected zero duration, got %v", d)
	}
}

func TestMock_RecordsCalls(t *testing.T) {
	mock := NewMock()

	result, err := mock.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.SampleRate != SampleRate {
		t.Errorf("Expected sample rate %d, got %d", SampleRate, result.SampleRate)
	}
	if len(result.Audio) == 0 {
		t.Errorf("Expected non-empty silent audio")
	}

	if mock.CallCount("Synthesize") != 1 {
		t.Errorf("Expected 1 recorded Synthesize call, got %d", mock.CallCount("Synthesize"))
	}
	if mock.Calls()[0].Text != "hi" {
		t.Errorf("Expected recorded text, got %q", mock.Calls()[0].Text)
	}
}
