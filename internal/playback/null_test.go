package playback

import (
	"testing"

	"github.com/visavox/visavox/internal/voice"
)

var _ voice.Player = Null{}

func TestNullDiscardsScheduledAudio(t *testing.T) {
	var p Null
	for i := 0; i < 1000; i++ {
		p.Schedule(make([]float32, 4096))
	}
	if p.OutputLevel() != 0 {
		t.Fatalf("expected silent output level, got %v", p.OutputLevel())
	}
	p.Interrupt()
	p.Teardown()
}
