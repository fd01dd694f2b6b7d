package playback

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const renderBlockFrames = 1024

// Device drives a Scheduler from a PortAudio output stream. The stream
// callback pulls rendered frames on the audio thread; all scheduling calls
// go through the embedded Scheduler.
type Device struct {
	*Scheduler

	mu     sync.Mutex
	stream *portaudio.Stream
}

// OpenDevice opens the default output device at the given sample rate and
// starts rendering immediately (silence until chunks are scheduled).
func OpenDevice(sampleRate int) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	d := &Device{Scheduler: NewScheduler(sampleRate)}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), renderBlockFrames, func(out []float32) {
		d.Render(out)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}

	d.stream = stream
	return d, nil
}

// Teardown stops all audio and releases the output device. Idempotent.
func (d *Device) Teardown() {
	d.Scheduler.Teardown()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return
	}
	_ = d.stream.Stop()
	_ = d.stream.Close()
	_ = portaudio.Terminate()
	d.stream = nil
}
