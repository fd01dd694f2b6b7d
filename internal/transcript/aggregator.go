// Package transcript reconciles streaming partial transcript fragments
// from both speakers of a call into a final ordered transcript.
package transcript

import (
	"strings"
	"sync"
)

// Speaker identifies one side of the call.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// Label returns the display name used in formatted transcripts.
func (s Speaker) Label() string {
	switch s {
	case SpeakerCaller:
		return "Caller"
	case SpeakerAgent:
		return "Agent"
	default:
		return string(s)
	}
}

// Turn is one finalized, uninterrupted span of speech by a single speaker.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Update is pushed to the UI on every incremental change. Final updates
// correspond to a Turn appended to history; partial updates carry the
// in-progress accumulator text.
type Update struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Final   bool    `json:"final"`
}

// Aggregator accumulates per-speaker transcript deltas. Deltas for a given
// speaker must arrive in order; the aggregator appends, it never reorders.
type Aggregator struct {
	mu       sync.Mutex
	onUpdate func(Update)
	partial  map[Speaker]*strings.Builder
	order    []Speaker // speakers with in-progress text, by first-delta arrival
	history  []Turn
}

// NewAggregator creates an aggregator. onUpdate may be nil; when set it is
// invoked synchronously on every partial and final change.
func NewAggregator(onUpdate func(Update)) *Aggregator {
	return &Aggregator{
		onUpdate: onUpdate,
		partial:  make(map[Speaker]*strings.Builder),
	}
}

// AppendPartial appends a delta to the speaker's in-progress accumulator
// and emits a partial update with the accumulated text so far. Empty
// deltas are no-ops.
func (a *Aggregator) AppendPartial(speaker Speaker, delta string) {
	if delta == "" {
		return
	}

	a.mu.Lock()
	b, ok := a.partial[speaker]
	if !ok {
		b = &strings.Builder{}
		a.partial[speaker] = b
	}
	if b.Len() == 0 {
		a.order = append(a.order, speaker)
	}
	b.WriteString(delta)
	text := b.String()
	a.mu.Unlock()

	a.emit(Update{Speaker: speaker, Text: text})
}

// FinalizeTurn commits every non-empty accumulator to history, in
// first-delta arrival order, and clears them. Speakers with no
// accumulated text produce no turn.
func (a *Aggregator) FinalizeTurn() {
	a.finalize("")
}

// MarkInterrupted finalizes only the agent's accumulator, appending an
// ellipsis to show the utterance was cut off mid-speech. The caller's
// accumulator is untouched: it is the caller doing the interrupting.
func (a *Aggregator) MarkInterrupted() {
	a.mu.Lock()
	b := a.partial[SpeakerAgent]
	if b == nil || b.Len() == 0 {
		a.mu.Unlock()
		return
	}
	text := b.String() + "…"
	turn := Turn{Speaker: SpeakerAgent, Text: text}
	a.history = append(a.history, turn)
	b.Reset()
	a.removeFromOrder(SpeakerAgent)
	a.mu.Unlock()

	a.emit(Update{Speaker: SpeakerAgent, Text: text, Final: true})
}

// Flush finalizes any remaining accumulators (without interruption
// marking) and returns a copy of the full history. Idempotent: a second
// call appends nothing.
func (a *Aggregator) Flush() []Turn {
	a.finalize("")

	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

// Formatted flushes and renders the transcript as speaker-labeled lines
// separated by blank lines. ok is false when the call produced no turns.
func (a *Aggregator) Formatted() (string, bool) {
	turns := a.Flush()
	if len(turns) == 0 {
		return "", false
	}

	lines := make([]string, len(turns))
	for i, turn := range turns {
		lines[i] = turn.Speaker.Label() + ": " + turn.Text
	}
	return strings.Join(lines, "\n\n"), true
}

func (a *Aggregator) finalize(suffix string) {
	a.mu.Lock()
	var finalized []Update
	for _, speaker := range a.order {
		b := a.partial[speaker]
		if b == nil || b.Len() == 0 {
			continue
		}
		text := b.String() + suffix
		a.history = append(a.history, Turn{Speaker: speaker, Text: text})
		b.Reset()
		finalized = append(finalized, Update{Speaker: speaker, Text: text, Final: true})
	}
	a.order = a.order[:0]
	a.mu.Unlock()

	for _, u := range finalized {
		a.emit(u)
	}
}

func (a *Aggregator) removeFromOrder(speaker Speaker) {
	for i, s := range a.order {
		if s == speaker {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

func (a *Aggregator) emit(u Update) {
	if a.onUpdate != nil {
		a.onUpdate(u)
	}
}
