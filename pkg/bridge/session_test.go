package bridge

import (
	"testing"

	"github.com/teslashibe/go-callbridge/pkg/dialog"
)

func TestSessionBeginDefaults(t *testing.T) {
	sess := NewSession("conn-1")
	sess.Begin("MZ123", &StartFrame{StreamSID: "MZ123", CallSID: "CA456"})

	info := sess.Info()
	if info.ProviderName != "the business" {
		t.Errorf("Expected default provider name, got %q", info.ProviderName)
	}
	if info.Service != "appointment" {
		t.Errorf("Expected default service, got %q", info.Service)
	}
	if info.UserName != "a customer" {
		t.Errorf("Expected default user name, got %q", info.UserName)
	}
	if info.Purpose != "new_appointment" {
		t.Errorf("Expected default purpose, got %q", info.Purpose)
	}
	if info.TimePreference != "flexible" {
		t.Errorf("Expected default time preference, got %q", info.TimePreference)
	}
	if sess.StreamSID() != "MZ123" {
		t.Errorf("Expected stream SID MZ123, got %q", sess.StreamSID())
	}
	if sess.CallSID() != "CA456" {
		t.Errorf("Expected call SID CA456, got %q", sess.CallSID())
	}
}

func TestSessionBeginCustomParameters(t *testing.T) {
	sess := NewSession("conn-1")
	sess.Begin("MZ123", &StartFrame{
		StreamSID: "MZ123",
		CustomParameters: map[string]string{
			"providerName":   "Harbor Dental",
			"service":        "teeth cleaning",
			"userName":       "Jordan Lee",
			"purpose":        "reschedule",
			"details":        "prefers mornings",
			"timePreference": "next Tuesday",
		},
	})

	info := sess.Info()
	if info.ProviderName != "Harbor Dental" {
		t.Errorf("Expected Harbor Dental, got %q", info.ProviderName)
	}
	if info.Purpose != "reschedule" {
		t.Errorf("Expected reschedule, got %q", info.Purpose)
	}
	if info.Details != "prefers mornings" {
		t.Errorf("Expected details to pass through, got %q", info.Details)
	}
	if info.TimePreference != "next Tuesday" {
		t.Errorf("Expected next Tuesday, got %q", info.TimePreference)
	}
}

func TestSessionAppendAudioBelowThreshold(t *testing.T) {
	sess := NewSession("conn-1")

	if snap := sess.AppendAudio(make([]byte, 100), 16000); snap != nil {
		t.Errorf("Expected no dispatch below threshold, got %d bytes", len(snap))
	}
	if sess.BufferedBytes() != 100 {
		t.Errorf("Expected 100 buffered bytes, got %d", sess.BufferedBytes())
	}
}

func TestSessionAppendAudioDispatchesOnce(t *testing.T) {
	sess := NewSession("conn-1")
	threshold := 16000

	// 99 frames of 160 bytes stay below threshold.
	for i := 0; i < 99; i++ {
		if snap := sess.AppendAudio(make([]byte, 160), threshold); snap != nil {
			t.Fatalf("Unexpected dispatch at frame %d", i)
		}
	}

	// The 100th crosses it.
	snap := sess.AppendAudio(make([]byte, 160), threshold)
	if snap == nil {
		t.Fatal("Expected dispatch at threshold")
	}
	if len(snap) != 16000 {
		t.Errorf("Expected 16000-byte snapshot, got %d", len(snap))
	}
	if sess.BufferedBytes() != 0 {
		t.Errorf("Expected empty buffer after dispatch, got %d bytes", sess.BufferedBytes())
	}
	if sess.State() != StateProcessing {
		t.Errorf("Expected processing state, got %v", sess.State())
	}
}

func TestSessionAppendAudioGuardHoldsDuringTurn(t *testing.T) {
	sess := NewSession("conn-1")
	threshold := 1000

	if snap := sess.AppendAudio(make([]byte, 1000), threshold); snap == nil {
		t.Fatal("Expected first dispatch")
	}

	// While the turn is in flight, audio keeps accumulating but nothing
	// dispatches, even past the threshold.
	if snap := sess.AppendAudio(make([]byte, 1500), threshold); snap != nil {
		t.Error("Expected no dispatch while a turn is in flight")
	}
	if sess.BufferedBytes() != 1500 {
		t.Errorf("Expected 1500 bytes held, got %d", sess.BufferedBytes())
	}

	sess.FinishTurn()

	// Next payload can dispatch the held audio.
	snap := sess.AppendAudio(make([]byte, 100), threshold)
	if snap == nil {
		t.Fatal("Expected dispatch after FinishTurn")
	}
	if len(snap) != 1600 {
		t.Errorf("Expected 1600-byte snapshot, got %d", len(snap))
	}
}

func TestSessionAudioNeverDropped(t *testing.T) {
	sess := NewSession("conn-1")
	threshold := 500

	total := 0
	dispatched := 0
	for i := 0; i < 20; i++ {
		payload := make([]byte, 160)
		total += len(payload)
		if snap := sess.AppendAudio(payload, threshold); snap != nil {
			dispatched += len(snap)
			sess.FinishTurn()
		}
	}

	if dispatched+sess.BufferedBytes() != total {
		t.Errorf("Audio lost: %d dispatched + %d buffered != %d received",
			dispatched, sess.BufferedBytes(), total)
	}
}

func TestSessionTurnsAppendOnly(t *testing.T) {
	sess := NewSession("conn-1")
	sess.AppendTurn(dialog.RoleAgent, "Hello")
	sess.AppendTurn(dialog.RoleCounterparty, "Hi there")

	turns := sess.Turns()
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != dialog.RoleAgent || turns[0].Text != "Hello" {
		t.Errorf("Unexpected first turn: %+v", turns[0])
	}

	// Mutating the returned slice must not affect session state.
	turns[0].Text = "tampered"
	if sess.Turns()[0].Text != "Hello" {
		t.Error("Turns() must return a copy")
	}
}

func TestSessionClose(t *testing.T) {
	sess := NewSession("conn-1")
	sess.AppendAudio(make([]byte, 100), 16000)

	sess.Close()

	select {
	case <-sess.Context().Done():
	default:
		t.Error("Expected context cancelled after Close")
	}
	if sess.BufferedBytes() != 0 {
		t.Errorf("Expected buffer released after Close, got %d bytes", sess.BufferedBytes())
	}
}

func TestSessionStateString(t *testing.T) {
	if StateIdle.String() != "idle" {
		t.Errorf("Expected idle, got %q", StateIdle.String())
	}
	if StateAccumulating.String() != "accumulating" {
		t.Errorf("Expected accumulating, got %q", StateAccumulating.String())
	}
	if StateProcessing.String() != "processing" {
		t.Errorf("Expected processing, got %q", StateProcessing.String())
	}
}
