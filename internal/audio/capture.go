package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrMicUnavailable reports that no microphone could be opened or started.
// Callers surface this as a distinct status so the UI can show a targeted
// message instead of a generic connection failure.
var ErrMicUnavailable = errors.New("microphone unavailable")

// CaptureFrameSize is the number of samples delivered per capture callback.
const CaptureFrameSize = 4096

// CaptureSource delivers fixed-size microphone frames to a callback.
type CaptureSource interface {
	Start(onFrame func([]float32)) error
	Stop()
}

// Capture reads mono float32 frames from the default input device via
// PortAudio. The onFrame callback runs on the capture loop goroutine and
// must not block; it only encodes and hands the frame off.
type Capture struct {
	sampleRate int
	frameSize  int

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []float32
	stopped chan struct{}
}

// NewCapture prepares a capture source at the given sample rate. The
// device is not opened until Start.
func NewCapture(sampleRate int) *Capture {
	if sampleRate <= 0 {
		sampleRate = CaptureSampleRate
	}
	return &Capture{sampleRate: sampleRate, frameSize: CaptureFrameSize}
}

// Start opens the default input device and begins delivering frames.
// It returns ErrMicUnavailable (wrapped) if the device cannot be opened
// or started; onFrame is never invoked in that case.
func (c *Capture) Start(onFrame func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return fmt.Errorf("capture already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize portaudio: %v", ErrMicUnavailable, err)
	}

	buf := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), c.frameSize, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: open input stream: %v", ErrMicUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: start input stream: %v", ErrMicUnavailable, err)
	}

	c.stream = stream
	c.buf = buf
	c.stopped = make(chan struct{})

	go c.loop(stream, buf, c.stopped, onFrame)
	return nil
}

func (c *Capture) loop(stream *portaudio.Stream, buf []float32, stopped chan struct{}, onFrame func([]float32)) {
	for {
		select {
		case <-stopped:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflow means frames were dropped while the consumer was
			// busy; keep reading. Anything else ends the capture loop.
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			return
		}

		frame := make([]float32, len(buf))
		copy(frame, buf)
		onFrame(frame)
	}
}

// Stop halts frame delivery and releases the input device. Safe to call
// multiple times and before Start.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return
	}

	close(c.stopped)
	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()

	c.stream = nil
	c.buf = nil
	c.stopped = nil
}
