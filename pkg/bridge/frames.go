package bridge

// Carrier media-stream event names. Every frame on the duplex connection
// carries exactly one of these in its Event field.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventDTMF      = "dtmf"
)

// MarkAudioComplete names the mark frame sent after the final media chunk
// of an utterance so downstream consumers can observe end-of-utterance.
const MarkAudioComplete = "audio_complete"

// Frame is the JSON envelope for every inbound and outbound message on the
// carrier's media-stream connection.
type Frame struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`
	Start     *StartFrame `json:"start,omitempty"`
	Media     *MediaFrame `json:"media,omitempty"`
	Mark      *MarkFrame  `json:"mark,omitempty"`
	Stop      *StopFrame  `json:"stop,omitempty"`
	DTMF      *DTMFFrame  `json:"dtmf,omitempty"`
}

// StartFrame carries the stream identity and the custom parameters supplied
// when the call was placed.
type StartFrame struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

// MediaFormat describes the audio encoding of the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaFrame carries one slice of base64-encoded 8kHz mu-law audio.
type MediaFrame struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MarkFrame is a delivery acknowledgement marker.
type MarkFrame struct {
	Name string `json:"name"`
}

// StopFrame signals the end of the media stream.
type StopFrame struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// DTMFFrame carries a keypad digit pressed during the call.
type DTMFFrame struct {
	Digit string `json:"digit"`
}
