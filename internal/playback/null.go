package playback

// Null discards all scheduled audio. It stands in for a Device when no
// output hardware can be opened, keeping the call alive without sound
// and without buffering what it will never render.
type Null struct{}

func (Null) Schedule([]float32) {}

func (Null) Interrupt() {}

func (Null) OutputLevel() float64 { return 0 }

func (Null) Teardown() {}
