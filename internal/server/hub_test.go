package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/visavox/visavox/internal/transcript"
	"github.com/visavox/visavox/internal/voice"
)

func receiveEvent(t *testing.T, ch chan []byte) map[string]any {
	t.Helper()
	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		return payload
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for hub broadcast")
		return nil
	}
}

func TestHubBroadcastTranscriptShape(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastTranscript("c1", transcript.Update{
		Speaker: transcript.SpeakerCaller,
		Text:    "Do I qualify?",
		Final:   true,
	})

	payload := receiveEvent(t, ch)
	if payload["type"] != "live_transcript" {
		t.Fatalf("expected event type live_transcript, got %#v", payload["type"])
	}
	if payload["speaker"] != "caller" {
		t.Fatalf("expected speaker caller, got %#v", payload["speaker"])
	}
	if payload["final"] != true {
		t.Fatalf("expected final true, got %#v", payload["final"])
	}
	if payload["version"] == nil || payload["timestamp"] == nil {
		t.Fatalf("missing envelope fields in payload: %#v", payload)
	}
}

func TestHubBroadcastCallStatus(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastCallStatus("c1", voice.StatusMicError)

	payload := receiveEvent(t, ch)
	if payload["type"] != "call_status" {
		t.Fatalf("expected event type call_status, got %#v", payload["type"])
	}
	if payload["status"] != "mic_error" {
		t.Fatalf("expected status mic_error, got %#v", payload["status"])
	}
}

func TestHubSnapshotTracksCallLifecycle(t *testing.T) {
	hub := NewHub()

	if activeCall, status := hub.Snapshot(); activeCall != "" || status != "idle" {
		t.Fatalf("expected idle snapshot, got %q/%q", activeCall, status)
	}

	hub.BroadcastCallStarted("c1")
	hub.BroadcastCallStatus("c1", voice.StatusConnecting)
	if activeCall, status := hub.Snapshot(); activeCall != "c1" || status != "connecting" {
		t.Fatalf("expected connecting snapshot, got %q/%q", activeCall, status)
	}

	hub.BroadcastCallEnded("c1", time.Minute)
	if activeCall, status := hub.Snapshot(); activeCall != "" || status != "idle" {
		t.Fatalf("expected snapshot reset after call end, got %q/%q", activeCall, status)
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Fill the client buffer past capacity; Broadcast must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.BroadcastCallStarted("c1")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}

func TestEventSerialization(t *testing.T) {
	events := []any{
		CallStartedEvent{Event: newEvent("call_started", time.Unix(1, 0)), CallID: "c1"},
		CallEndedEvent{Event: newEvent("call_ended", time.Unix(1, 0)), CallID: "c1", Duration: 30},
		CallStatusEvent{Event: newEvent("call_status", time.Unix(1, 0)), CallID: "c1", Status: "connected"},
		LiveTranscriptEvent{Event: newEvent("live_transcript", time.Unix(1, 0)), CallID: "c1", Speaker: "agent", Text: "hello"},
		SummaryReadyEvent{Event: newEvent("summary_ready", time.Unix(1, 0)), CallID: "c1", Summary: "ok", Status: "completed"},
	}

	for _, event := range events {
		b, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var payload map[string]any
		if err := json.Unmarshal(b, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if payload["type"] == nil || payload["version"] == nil || payload["timestamp"] == nil {
			t.Fatalf("missing envelope fields in payload: %s", string(b))
		}
	}
}
