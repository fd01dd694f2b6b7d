package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type CallStartedEvent struct {
	Event
	CallID string `json:"call_id"`
}

type CallEndedEvent struct {
	Event
	CallID   string  `json:"call_id"`
	Duration float64 `json:"duration"`
}

type CallStatusEvent struct {
	Event
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

type LiveTranscriptEvent struct {
	Event
	CallID  string `json:"call_id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Final   bool   `json:"final"`
}

type SummaryReadyEvent struct {
	Event
	CallID  string `json:"call_id"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
}

// ConnectionEvent greets a new websocket client with the current call
// snapshot so the UI renders the right state immediately.
type ConnectionEvent struct {
	Event
	Connected  bool   `json:"connected"`
	ActiveCall string `json:"active_call"`
	CallStatus string `json:"call_status"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
