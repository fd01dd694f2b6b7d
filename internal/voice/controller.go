// Package voice orchestrates one live voice-call session: connection
// lifecycle, microphone streaming, inbound event dispatch, interruption,
// and teardown. The calling layer only talks to the Controller.
package voice

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/visavox/visavox/internal/audio"
	"github.com/visavox/visavox/internal/transcript"
)

// Status is the session connection state reported to the caller.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
	StatusError
	StatusMicError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	case StatusMicError:
		return "mic_error"
	default:
		return "unknown"
	}
}

// Player schedules decoded agent audio for gapless output.
type Player interface {
	Schedule(samples []float32)
	Interrupt()
	OutputLevel() float64
	Teardown()
}

// Config wires a Controller's collaborators and callbacks. Failures are
// reported exclusively through OnStatus; Connect and Disconnect never
// return errors for normal failure paths.
type Config struct {
	Dialer  Dialer
	Capture audio.CaptureSource
	Player  Player

	Model   string
	Voice   string
	Persona string

	OnStatus     func(Status)
	OnTranscript func(transcript.Update)

	// Optional wire-format PCM taps for call recording.
	CallerAudio io.Writer
	AgentAudio  io.Writer
}

// Controller runs the session state machine:
// idle → connecting → connected → {disconnected | error}. One Controller
// serves one call attempt; create a fresh one to reconnect.
type Controller struct {
	cfg Config
	agg *transcript.Aggregator

	mu      sync.Mutex
	status  Status
	channel Channel
	// gen invalidates an in-flight Connect once Disconnect has run.
	gen uint64
}

func New(cfg Config) *Controller {
	return &Controller{
		cfg: cfg,
		agg: transcript.NewAggregator(cfg.OnTranscript),
	}
}

// Connect opens the remote channel seeded with contextText (prior chat
// history, so the voice agent continues the same conversation), then
// starts microphone capture. Capture start is gated on a successful
// connect, so no frame can race ahead of the connected state. All
// failures surface via the status callback.
func (c *Controller) Connect(ctx context.Context, contextText string) {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusConnected {
		c.mu.Unlock()
		return
	}
	c.status = StatusConnecting
	gen := c.gen
	c.mu.Unlock()
	c.emitStatus(StatusConnecting)

	ch, err := c.cfg.Dialer.Dial(ctx, SessionConfig{
		Model:             c.cfg.Model,
		Voice:             c.cfg.Voice,
		SystemInstruction: buildInstruction(c.cfg.Persona, contextText),
	})
	if err != nil {
		log.Printf("voice connect failed: %v", err)
		c.failConnect(gen, StatusError)
		return
	}

	if c.cancelled(gen) {
		// Disconnect raced the dial; the hangup wins.
		_ = ch.Close()
		return
	}

	if err := c.cfg.Capture.Start(c.onFrame); err != nil {
		_ = ch.Close()
		if errors.Is(err, audio.ErrMicUnavailable) {
			log.Printf("microphone unavailable: %v", err)
			c.failConnect(gen, StatusMicError)
		} else {
			log.Printf("capture start failed: %v", err)
			c.failConnect(gen, StatusError)
		}
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.cfg.Capture.Stop()
		_ = ch.Close()
		return
	}
	c.channel = ch
	c.status = StatusConnected
	c.mu.Unlock()
	c.emitStatus(StatusConnected)

	go c.eventLoop(ch)
}

// Disconnect is the caller-initiated hangup and the sole cancellation
// path: it stops capture, tears down playback, closes the channel, and
// flushes the transcript. Idempotent, and callable from any state,
// including a half-finished connect.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	prev := c.status
	ch := c.channel
	c.channel = nil
	c.status = StatusIdle
	c.gen++
	c.mu.Unlock()

	c.cfg.Capture.Stop()
	c.cfg.Player.Teardown()
	if ch != nil {
		_ = ch.Close()
	}
	c.agg.Flush()

	if prev != StatusIdle {
		c.emitStatus(StatusIdle)
	}
}

// OutputVolume reports the playback level for UI visualization.
func (c *Controller) OutputVolume() float64 {
	return c.cfg.Player.OutputLevel()
}

// FormattedTranscript flushes and returns the speaker-labeled transcript.
// ok is false when the call produced no turns.
func (c *Controller) FormattedTranscript() (string, bool) {
	return c.agg.Formatted()
}

// Status returns the current session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) onFrame(frame []float32) {
	c.mu.Lock()
	ch := c.channel
	connected := c.status == StatusConnected
	c.mu.Unlock()

	if !connected || ch == nil {
		return
	}

	pcm := audio.FramePCM(frame)
	if c.cfg.CallerAudio != nil {
		_, _ = c.cfg.CallerAudio.Write(pcm)
	}

	chunk := audio.ChunkFromPCM(pcm, audio.CaptureSampleRate, 1)
	// Fire-and-forget: the capture callback must not wait on the network.
	if err := ch.SendAudio(chunk); err != nil {
		log.Printf("warning: send audio frame: %v", err)
	}
}

func (c *Controller) eventLoop(ch Channel) {
	for ev := range ch.Events() {
		switch ev := ev.(type) {
		case AudioDelta:
			c.handleAudioDelta(ev.Chunk)
		case TranscriptDelta:
			c.agg.AppendPartial(ev.Speaker, ev.Text)
		case TurnComplete:
			c.agg.FinalizeTurn()
		case Interrupted:
			c.cfg.Player.Interrupt()
			c.agg.MarkInterrupted()
		case Closed:
			// A clean remote close ends the call without alarming the
			// user; the transcript so far stays retrievable.
			c.endSession(StatusDisconnected)
		case ErrorEvent:
			log.Printf("voice channel error: %v", ev.Err)
			c.endSession(StatusError)
		}
	}
	c.endSession(StatusDisconnected)
}

func (c *Controller) handleAudioDelta(chunk audio.Chunk) {
	pcm, err := chunk.PCM()
	var channels [][]float32
	if err == nil {
		channels, err = audio.SamplesFromPCM(pcm, chunk.Channels)
	}
	if err != nil || len(channels) == 0 {
		// Losing one chunk degrades gracefully; it never ends the call.
		log.Printf("warning: dropping undecodable audio chunk: %v", err)
		return
	}

	if c.cfg.AgentAudio != nil {
		_, _ = c.cfg.AgentAudio.Write(pcm)
	}

	c.cfg.Player.Schedule(channels[0])
}

// endSession handles remote-initiated termination. It is a no-op when
// Disconnect already ran.
func (c *Controller) endSession(final Status) {
	c.mu.Lock()
	if c.status != StatusConnected && c.status != StatusConnecting {
		c.mu.Unlock()
		return
	}
	ch := c.channel
	c.channel = nil
	c.status = final
	c.mu.Unlock()

	c.cfg.Capture.Stop()
	c.cfg.Player.Teardown()
	if ch != nil {
		_ = ch.Close()
	}
	c.emitStatus(final)
}

// failConnect reports a connect failure unless Disconnect already
// cancelled the attempt and reported idle.
func (c *Controller) failConnect(gen uint64, final Status) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.status = final
	c.mu.Unlock()
	c.emitStatus(final)
}

func (c *Controller) cancelled(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

func (c *Controller) emitStatus(s Status) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(s)
	}
}

func buildInstruction(persona, contextText string) string {
	persona = strings.TrimSpace(persona)
	contextText = strings.TrimSpace(contextText)
	if contextText == "" {
		return persona
	}
	if persona == "" {
		return contextText
	}
	return persona + "\n\nConversation so far:\n" + contextText
}
