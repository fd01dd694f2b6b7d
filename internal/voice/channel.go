package voice

import (
	"context"

	"github.com/visavox/visavox/internal/audio"
)

// SessionConfig is negotiated once at connect time.
type SessionConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// Channel is a full-duplex connection to the remote conversational agent.
// SendAudio is safe to call concurrently with event consumption. The
// events channel is closed after the final Closed or ErrorEvent.
type Channel interface {
	SendAudio(chunk audio.Chunk) error
	Events() <-chan Event
	Close() error
}

// Dialer opens channels. Connect blocks until the remote session has
// acknowledged the negotiated configuration.
type Dialer interface {
	Dial(ctx context.Context, cfg SessionConfig) (Channel, error)
}
