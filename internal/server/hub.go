package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/visavox/visavox/internal/transcript"
	"github.com/visavox/visavox/internal/voice"
)

// Hub fans call events out to every connected UI client. Slow clients
// drop messages rather than block the broadcaster. It also tracks the
// latest call state so new clients can start from a snapshot instead of
// waiting for the next event.
type Hub struct {
	mu         sync.RWMutex
	clients    map[chan []byte]struct{}
	activeCall string
	callStatus string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Snapshot returns the call state a newly connected client should
// render before any event arrives.
func (h *Hub) Snapshot() (activeCall, status string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.callStatus == "" {
		return h.activeCall, voice.StatusIdle.String()
	}
	return h.activeCall, h.callStatus
}

func (h *Hub) BroadcastCallStarted(callID string) {
	h.mu.Lock()
	h.activeCall = callID
	h.mu.Unlock()
	h.broadcastEvent(CallStartedEvent{
		Event:  newEvent("call_started", time.Now().UTC()),
		CallID: callID,
	})
}

func (h *Hub) BroadcastCallEnded(callID string, duration time.Duration) {
	h.mu.Lock()
	h.activeCall = ""
	h.callStatus = voice.StatusIdle.String()
	h.mu.Unlock()
	h.broadcastEvent(CallEndedEvent{
		Event:    newEvent("call_ended", time.Now().UTC()),
		CallID:   callID,
		Duration: duration.Seconds(),
	})
}

func (h *Hub) BroadcastCallStatus(callID string, status voice.Status) {
	h.mu.Lock()
	h.callStatus = status.String()
	h.mu.Unlock()
	h.broadcastEvent(CallStatusEvent{
		Event:  newEvent("call_status", time.Now().UTC()),
		CallID: callID,
		Status: status.String(),
	})
}

func (h *Hub) BroadcastTranscript(callID string, update transcript.Update) {
	h.broadcastEvent(LiveTranscriptEvent{
		Event:   newEvent("live_transcript", time.Now().UTC()),
		CallID:  callID,
		Speaker: string(update.Speaker),
		Text:    update.Text,
		Final:   update.Final,
	})
}

func (h *Hub) BroadcastSummaryReady(callID, summary, status string) {
	h.broadcastEvent(SummaryReadyEvent{
		Event:   newEvent("summary_ready", time.Now().UTC()),
		CallID:  callID,
		Summary: summary,
		Status:  status,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
