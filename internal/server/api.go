package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/visavox/visavox/internal/call"
	"github.com/visavox/visavox/internal/store"
	"github.com/visavox/visavox/internal/transcript"
)

var callIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type CallStore interface {
	GetCallsByDate(date string) ([]store.Call, error)
	GetCall(id string) (store.Call, error)
	GetTurns(callID string) ([]transcript.Turn, error)
	GetDates() ([]string, error)
}

// ControlHooks exposes call lifecycle controls to the HTTP layer.
type ControlHooks struct {
	StartCall    func(contextText string) error
	EndCall      func() error
	ActiveCall   func() string
	OutputVolume func() float64
}

func registerAPIRoutes(mux *http.ServeMux, callStore CallStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/calls", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		calls, err := callStore.GetCallsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list calls: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, calls)
	})

	mux.HandleFunc("GET /api/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}

		callData, err := callStore.GetCall(callID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get call: %v", err))
			return
		}

		turns, err := callStore.GetTurns(callID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get call turns: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"call":  callData,
			"turns": turns,
		})
	})

	mux.HandleFunc("GET /api/calls/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}

		callData, err := callStore.GetCall(callID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "call not found")
			return
		}

		audioPath := callData.CallerAudioPath
		if r.URL.Query().Get("side") == "agent" {
			audioPath = callData.AgentAudioPath
		}
		if audioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(audioPath)
		if cleanPath == "" || cleanPath == "." || cleanPath == ".." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := callStore.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/call/start", func(w http.ResponseWriter, r *http.Request) {
		if controls.StartCall == nil {
			writeJSONError(w, http.StatusNotImplemented, "call control not available")
			return
		}

		// The body is optional; a bare POST starts a fresh conversation.
		var req struct {
			ContextText string `json:"context_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "invalid start request body")
			return
		}

		if err := controls.StartCall(req.ContextText); err != nil {
			if errors.Is(err, call.ErrCallActive) {
				writeJSONError(w, http.StatusConflict, "call already active")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("start call: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/call/end", func(w http.ResponseWriter, r *http.Request) {
		if controls.EndCall == nil {
			writeJSONError(w, http.StatusNotImplemented, "call control not available")
			return
		}
		if err := controls.EndCall(); err != nil {
			if errors.Is(err, call.ErrNoActiveCall) {
				writeJSONError(w, http.StatusConflict, "no active call")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("end call: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		activeCall := ""
		if controls.ActiveCall != nil {
			activeCall = controls.ActiveCall()
		}
		outputLevel := 0.0
		if controls.OutputVolume != nil {
			outputLevel = controls.OutputVolume()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"active_call":  activeCall,
			"output_level": outputLevel,
		})
	})
}

func validCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
