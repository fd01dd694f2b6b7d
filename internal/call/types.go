package call

import (
	"context"
	"io"
	"time"

	"github.com/visavox/visavox/internal/transcript"
	"github.com/visavox/visavox/internal/voice"
)

type Store interface {
	CreateCall(id string, startedAt time.Time) error
	EndCall(id string, endedAt time.Time, callerAudioPath, agentAudioPath string) error
	AppendTurn(callID string, turn transcript.Turn, at time.Time) error
	GetTurns(callID string) ([]transcript.Turn, error)
	UpdateSummary(callID, summary, status string) error
	ClaimSummaryRequest(callID, promptHash string) (bool, error)
}

type Recorder interface {
	StartCall(callID string) error
	CallerWriter() io.Writer
	AgentWriter() io.Writer
	EndCall() (callerPath, agentPath string, err error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type EventBroadcaster interface {
	BroadcastCallStarted(callID string)
	BroadcastCallEnded(callID string, duration time.Duration)
	BroadcastCallStatus(callID string, status voice.Status)
	BroadcastTranscript(callID string, update transcript.Update)
	BroadcastSummaryReady(callID, summary, status string)
}

// Engine is one live voice session. The manager builds a fresh engine
// per call through the factory so session state never leaks across
// calls.
type Engine interface {
	Connect(ctx context.Context, contextText string)
	Disconnect()
	OutputVolume() float64
}

// EngineHooks carries the per-call callbacks and audio taps the engine
// reports into.
type EngineHooks struct {
	OnStatus     func(voice.Status)
	OnTranscript func(transcript.Update)
	CallerAudio  io.Writer
	AgentAudio   io.Writer
}

type EngineFactory func(hooks EngineHooks) Engine
