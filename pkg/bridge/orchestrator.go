package bridge

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/teslashibe/go-callbridge/pkg/audioio"
	"github.com/teslashibe/go-callbridge/pkg/dialog"
	"github.com/teslashibe/go-callbridge/pkg/stt"
	"github.com/teslashibe/go-callbridge/pkg/tts"
)

// Transport delivers a prepared mu-law utterance to the carrier with
// paced media frames followed by a completion mark.
type Transport interface {
	SendUtterance(ctx context.Context, sess *Session, mulaw []byte) error
}

// minTranscriptRunes is the shortest transcript treated as real speech.
// Anything shorter is noise and does not advance the conversation.
const minTranscriptRunes = 2

// Orchestrator drives the turn-taking protocol for every session: it turns
// a snapshot of caller audio into a transcript, obtains the next agent
// utterance, synthesizes it, and hands it to the transport for delivery.
type Orchestrator struct {
	stt    stt.Provider
	gen    dialog.Generator
	tts    tts.Provider
	config *Config
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator over the three collaborators.
func NewOrchestrator(sttProvider stt.Provider, gen dialog.Generator, ttsProvider tts.Provider, opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	return &Orchestrator{
		stt:    sttProvider,
		gen:    gen,
		tts:    ttsProvider,
		config: cfg,
		logger: cfg.Logger.With("component", "bridge.orchestrator"),
	}
}

// Greet speaks the opening utterance, proactively, before any caller audio
// has arrived. No prior turns exist yet.
func (o *Orchestrator) Greet(ctx context.Context, sess *Session, tr Transport) {
	line, err := o.generate(ctx, func(cctx context.Context) (string, error) {
		return o.gen.OpeningLine(cctx, sess.Info())
	})
	if err != nil {
		o.logger.Warn("opening line generation failed, using fallback",
			"call_sid", sess.CallSID(), "error", err)
		line = dialog.FallbackLine
	}

	o.logger.Info("agent says", "call_sid", sess.CallSID(), "text", line)
	sess.AppendTurn(dialog.RoleAgent, line)
	o.speak(ctx, sess, line, tr)
}

// ProcessTurn handles one conversational turn from a snapshot of buffered
// caller audio. The session's turn-in-progress guard is held by the caller
// (set when the snapshot was taken) and is cleared here on every path, so
// the session always returns to accumulating.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sess *Session, snapshot []byte, tr Transport) {
	defer sess.FinishTurn()

	if ctx.Err() != nil {
		return
	}

	text, err := o.transcribe(ctx, snapshot)
	if err != nil {
		// Treated as no speech detected: abandon the turn silently and
		// keep listening.
		o.logger.Warn("transcription failed, skipping turn",
			"call_sid", sess.CallSID(), "error", err)
		return
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minTranscriptRunes {
		o.logger.Debug("transcript below noise floor, skipping turn",
			"call_sid", sess.CallSID(), "chars", len(text))
		return
	}

	o.logger.Info("counterparty says", "call_sid", sess.CallSID(), "text", text)
	sess.AppendTurn(dialog.RoleCounterparty, text)

	reply, err := o.generate(ctx, func(cctx context.Context) (string, error) {
		return o.gen.Reply(cctx, sess.Info(), sess.Turns())
	})
	if err != nil {
		o.logger.Warn("reply generation failed, using fallback",
			"call_sid", sess.CallSID(), "error", err)
		reply = dialog.FallbackLine
	}

	o.logger.Info("agent says", "call_sid", sess.CallSID(), "text", reply)
	sess.AppendTurn(dialog.RoleAgent, reply)
	o.speak(ctx, sess, reply, tr)
}

// transcribe converts a mu-law snapshot to wideband PCM, wraps it as a WAV
// file, and requests a transcript under the collaborator timeout.
func (o *Orchestrator) transcribe(ctx context.Context, snapshot []byte) (string, error) {
	narrow := audioio.DecodeMuLawBuffer(snapshot)
	wide := audioio.Resample(narrow, CarrierSampleRate, TranscribeSampleRate)
	wav := audioio.WrapWAV(audioio.SamplesToBytes(wide), TranscribeSampleRate)

	cctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return o.stt.Transcribe(cctx, wav)
}

// generate runs one generation call under the collaborator timeout.
func (o *Orchestrator) generate(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()
	return fn(cctx)
}

// speak synthesizes the utterance, converts it to the carrier's codec and
// rate, and hands it to the transport. A synthesis failure produces no
// outbound audio: the appended agent turn remains in history and the
// session keeps accepting inbound audio.
func (o *Orchestrator) speak(ctx context.Context, sess *Session, text string, tr Transport) {
	cctx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	result, err := o.tts.Synthesize(cctx, text)
	cancel()
	if err != nil {
		o.logger.Error("synthesis failed, utterance dropped",
			"call_sid", sess.CallSID(), "error", err)
		return
	}

	samples := audioio.BytesToSamples(result.Audio)
	narrow := audioio.Resample(samples, result.SampleRate, CarrierSampleRate)
	mulaw := audioio.EncodeMuLawBuffer(narrow)

	if err := tr.SendUtterance(ctx, sess, mulaw); err != nil {
		o.logger.Warn("utterance delivery failed",
			"call_sid", sess.CallSID(), "error", err)
	}
}
