// Package playback schedules decoded agent audio for gapless output.
//
// Chunks arrive in order but faster or slower than real time; playing each
// one immediately would overlap or leave gaps. The scheduler keeps a cursor
// on the output timeline (in frames) and starts every chunk at
// max(now, cursor), so consecutive chunks chain seamlessly without the
// sender providing timestamps.
package playback

import (
	"math"
	"sync"
)

type entry struct {
	samples []float32
	start   int64
}

// Scheduler owns the output-clock cursor. The render side (a PortAudio
// callback in production, the test harness otherwise) advances the clock by
// pulling frames; the scheduling side places chunks on the timeline. The
// cursor only moves backward on Interrupt.
type Scheduler struct {
	sampleRate int

	mu       sync.Mutex
	rendered int64 // output clock: frames pulled so far
	cursor   int64 // next free frame on the timeline
	active   []entry
	level    float64
}

func NewScheduler(sampleRate int) *Scheduler {
	return &Scheduler{sampleRate: sampleRate}
}

// Schedule places a mono chunk at max(now, cursor) and advances the cursor
// past it. Empty chunks are ignored.
func (s *Scheduler) Schedule(samples []float32) {
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.cursor
	if s.rendered > start {
		start = s.rendered
	}
	s.active = append(s.active, entry{samples: samples, start: start})
	s.cursor = start + int64(len(samples))
}

// Interrupt hard-stops everything scheduled and resets the cursor to the
// current clock so the next chunk starts immediately instead of queuing
// behind stale audio. Safe to call with nothing active.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = nil
	s.cursor = s.rendered
	s.level = 0
}

// Pending reports how many scheduled chunks have not finished rendering.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// OutputLevel returns the RMS of the most recently rendered block, 0 when
// nothing is playing. Cheap enough to poll at UI refresh rates.
func (s *Scheduler) OutputLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Render fills out with scheduled audio starting at the current clock
// position, advances the clock, and releases chunks that have fully
// played. Unscheduled regions render as silence.
func (s *Scheduler) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blockStart := s.rendered
	blockEnd := blockStart + int64(len(out))
	remaining := s.active[:0]

	for _, e := range s.active {
		end := e.start + int64(len(e.samples))
		if end <= blockStart {
			continue // fully played, release
		}
		if e.start < blockEnd {
			from := blockStart - e.start
			if from < 0 {
				from = 0
			}
			to := blockEnd - e.start
			if to > int64(len(e.samples)) {
				to = int64(len(e.samples))
			}
			copy(out[e.start+from-blockStart:], e.samples[from:to])
		}
		if end > blockEnd {
			remaining = append(remaining, e)
		}
	}
	s.active = remaining

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	if len(out) > 0 {
		s.level = math.Sqrt(sum / float64(len(out)))
	}

	s.rendered = blockEnd
}

// Teardown discards all scheduled audio.
func (s *Scheduler) Teardown() {
	s.Interrupt()
}
