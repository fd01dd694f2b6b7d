// Package call owns the call lifecycle around one live voice session:
// persistence, recording, event broadcast, and post-call summarization.
package call

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/visavox/visavox/internal/store"
	"github.com/visavox/visavox/internal/transcript"
	"github.com/visavox/visavox/internal/voice"
)

type Manager struct {
	store      Store
	recorder   Recorder
	summarizer Summarizer
	hub        EventBroadcaster
	newEngine  EngineFactory

	mu        sync.Mutex
	callID    string
	startedAt time.Time
	engine    Engine
}

func NewManager(st Store, recorder Recorder, summarizer Summarizer, hub EventBroadcaster, newEngine EngineFactory) *Manager {
	return &Manager{
		store:      st,
		recorder:   recorder,
		summarizer: summarizer,
		hub:        hub,
		newEngine:  newEngine,
	}
}

// StartCall creates and connects a new call. contextText carries prior
// chat history to seed the voice agent; pass "" for a fresh
// conversation. At most one call runs at a time; a second start while
// one is active returns ErrCallActive.
func (m *Manager) StartCall(ctx context.Context, contextText string) error {
	now := time.Now().UTC()

	m.mu.Lock()
	if m.callID != "" {
		m.mu.Unlock()
		return ErrCallActive
	}
	callID := now.Format("20060102150405")
	m.callID = callID
	m.startedAt = now
	m.mu.Unlock()

	if err := m.store.CreateCall(callID, now); err != nil {
		m.clearCall()
		return fmt.Errorf("create call: %w", err)
	}

	if m.recorder != nil {
		if err := m.recorder.StartCall(callID); err != nil {
			m.clearCall()
			_ = m.store.EndCall(callID, time.Now().UTC(), "", "")
			return fmt.Errorf("start call recording: %w", err)
		}
	}

	hooks := EngineHooks{
		OnStatus:     func(s voice.Status) { m.handleStatus(callID, s) },
		OnTranscript: func(u transcript.Update) { m.handleTranscript(callID, u) },
	}
	if m.recorder != nil {
		hooks.CallerAudio = m.recorder.CallerWriter()
		hooks.AgentAudio = m.recorder.AgentWriter()
	}

	engine := m.newEngine(hooks)
	m.mu.Lock()
	m.engine = engine
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastCallStarted(callID)
	}
	engine.Connect(ctx, contextText)
	return nil
}

// EndCall hangs up the active call. The summary is generated in the
// background after the call row is finalized.
func (m *Manager) EndCall() error {
	m.mu.Lock()
	callID := m.callID
	startedAt := m.startedAt
	engine := m.engine
	m.callID = ""
	m.startedAt = time.Time{}
	m.engine = nil
	m.mu.Unlock()

	if callID == "" {
		return ErrNoActiveCall
	}

	if engine != nil {
		engine.Disconnect()
	}

	endedAt := time.Now().UTC()
	callerPath, agentPath := "", ""
	if m.recorder != nil {
		var err error
		callerPath, agentPath, err = m.recorder.EndCall()
		if err != nil {
			log.Printf("warning: finalize call recording: %v", err)
		}
	}

	if err := m.store.EndCall(callID, endedAt, callerPath, agentPath); err != nil {
		return fmt.Errorf("end call: %w", err)
	}

	if m.hub != nil {
		m.hub.BroadcastCallEnded(callID, endedAt.Sub(startedAt))
	}

	go m.generateSummary(context.Background(), callID)
	return nil
}

// ActiveCall returns the current call id, or "" when idle.
func (m *Manager) ActiveCall() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callID
}

// OutputVolume reports the live playback level, 0 when no call runs.
func (m *Manager) OutputVolume() float64 {
	m.mu.Lock()
	engine := m.engine
	m.mu.Unlock()
	if engine == nil {
		return 0
	}
	return engine.OutputVolume()
}

func (m *Manager) handleStatus(callID string, s voice.Status) {
	if m.hub != nil {
		m.hub.BroadcastCallStatus(callID, s)
	}

	// Remote-side termination ends the call without a user hangup.
	switch s {
	case voice.StatusDisconnected, voice.StatusError, voice.StatusMicError:
		go func() {
			if err := m.EndCall(); err != nil && err != ErrNoActiveCall {
				log.Printf("warning: end call after %s: %v", s, err)
			}
		}()
	}
}

func (m *Manager) handleTranscript(callID string, u transcript.Update) {
	if m.hub != nil {
		m.hub.BroadcastTranscript(callID, u)
	}
	if !u.Final || strings.TrimSpace(u.Text) == "" {
		return
	}
	turn := transcript.Turn{Speaker: u.Speaker, Text: u.Text}
	if err := m.store.AppendTurn(callID, turn, time.Now().UTC()); err != nil {
		log.Printf("warning: persist turn for call %s: %v", callID, err)
	}
}

func (m *Manager) generateSummary(ctx context.Context, callID string) {
	if m.summarizer == nil {
		_ = m.store.UpdateSummary(callID, "", store.SummaryCompleted)
		return
	}

	turns, err := m.store.GetTurns(callID)
	if err != nil {
		m.failSummary(callID)
		return
	}

	var b strings.Builder
	for _, turn := range turns {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		b.WriteString(turn.Speaker.Label())
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	text := b.String()

	hash := sha256.Sum256([]byte(text))
	claimed, err := m.store.ClaimSummaryRequest(callID, hex.EncodeToString(hash[:]))
	if err != nil {
		m.failSummary(callID)
		return
	}
	if !claimed {
		return
	}

	_ = m.store.UpdateSummary(callID, "", store.SummaryRunning)

	summaryText, err := m.summarizer.Summarize(ctx, text)
	if err != nil {
		m.failSummary(callID)
		return
	}

	if err := m.store.UpdateSummary(callID, summaryText, store.SummaryCompleted); err != nil {
		m.failSummary(callID)
		return
	}

	if m.hub != nil {
		m.hub.BroadcastSummaryReady(callID, summaryText, store.SummaryCompleted)
	}
}

func (m *Manager) failSummary(callID string) {
	_ = m.store.UpdateSummary(callID, "", store.SummaryFailed)
	if m.hub != nil {
		m.hub.BroadcastSummaryReady(callID, "", store.SummaryFailed)
	}
}

func (m *Manager) clearCall() {
	m.mu.Lock()
	m.callID = ""
	m.startedAt = time.Time{}
	m.engine = nil
	m.mu.Unlock()
}
