package voice

import (
	"github.com/visavox/visavox/internal/audio"
	"github.com/visavox/visavox/internal/transcript"
)

// Event is a tagged variant for everything the remote agent can send.
// The controller dispatches all of them through a single switch so the
// session state machine stays exhaustive and reviewable.
type Event interface {
	event() string
}

// AudioDelta carries one chunk of synthesized agent speech.
type AudioDelta struct {
	Chunk audio.Chunk
}

func (AudioDelta) event() string { return "audio_delta" }

// TranscriptDelta carries an incremental transcription fragment for one
// speaker. Deltas arrive in order per speaker.
type TranscriptDelta struct {
	Speaker transcript.Speaker
	Text    string
}

func (TranscriptDelta) event() string { return "transcript_delta" }

// TurnComplete signals the agent finished its utterance.
type TurnComplete struct{}

func (TurnComplete) event() string { return "turn_complete" }

// Interrupted signals server-detected barge-in: the caller started
// speaking over the agent, and queued playback is now stale.
type Interrupted struct{}

func (Interrupted) event() string { return "interrupted" }

// Closed signals the remote channel ended cleanly.
type Closed struct{}

func (Closed) event() string { return "closed" }

// ErrorEvent signals a transport or protocol failure.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) event() string { return "error" }
