package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visavox/visavox/internal/audio"
	"github.com/visavox/visavox/internal/call"
	"github.com/visavox/visavox/internal/config"
	"github.com/visavox/visavox/internal/gdrive"
	"github.com/visavox/visavox/internal/llm"
	"github.com/visavox/visavox/internal/playback"
	"github.com/visavox/visavox/internal/server"
	"github.com/visavox/visavox/internal/store"
	"github.com/visavox/visavox/internal/summary"
	"github.com/visavox/visavox/internal/voice"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	log.Println("visavox: starting")

	cfg, warnings, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	hub := server.NewHub()
	recorder := audio.NewRecorder(cfg.AudioDir)
	dialer := voice.NewGeminiDialer(cfg.GeminiAPIKey)

	var summarizer call.Summarizer
	if provider, _, perr := llm.ParseModel(cfg.SummaryModel); perr != nil {
		log.Printf("warning: call summaries disabled: %v", perr)
	} else if cfg.SummaryAPIKey(provider) == "" {
		log.Printf("warning: call summaries disabled: no API key for provider %q", provider)
	} else {
		apiKey := cfg.SummaryAPIKey(provider)
		summarizer = summary.New(cfg.SummaryModel, func(p, model string) (llm.Client, error) {
			return llm.NewClient(p, apiKey, model)
		})
	}

	newEngine := func(hooks call.EngineHooks) call.Engine {
		var player voice.Player
		device, derr := playback.OpenDevice(audio.PlaybackSampleRate)
		if derr != nil {
			log.Printf("warning: playback device unavailable, audio output disabled: %v", derr)
			player = playback.Null{}
		} else {
			player = device
		}

		return voice.New(voice.Config{
			Dialer:       dialer,
			Capture:      audio.NewCapture(audio.CaptureSampleRate),
			Player:       player,
			Model:        cfg.VoiceModel,
			Voice:        cfg.VoiceName,
			Persona:      cfg.Persona,
			OnStatus:     hooks.OnStatus,
			OnTranscript: hooks.OnTranscript,
			CallerAudio:  hooks.CallerAudio,
			AgentAudio:   hooks.AgentAudio,
		})
	}

	manager := call.NewManager(db, recorder, summarizer, hub, newEngine)

	handler, err := server.Handler(assets, hub, db, server.ControlHooks{
		StartCall: func(contextText string) error {
			return manager.StartCall(context.Background(), contextText)
		},
		EndCall:      manager.EndCall,
		ActiveCall:   manager.ActiveCall,
		OutputVolume: manager.OutputVolume,
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			go runDigestSync(ctx, db, syncer, cfg.AudioDir)
		}
	}

	log.Printf("visavox: web UI on http://%s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("visavox: shutting down")
	cancel()

	if err := manager.EndCall(); err != nil && err != call.ErrNoActiveCall {
		log.Printf("warning: end call on shutdown failed: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

// runDigestSync periodically rebuilds today's call digest and pushes it
// to Drive.
func runDigestSync(ctx context.Context, db *store.SQLiteStore, syncer *gdrive.Syncer, dir string) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			date := time.Now().UTC().Format("2006-01-02")
			calls, err := db.GetCallsByDate(date)
			if err != nil {
				log.Printf("gdrive digest query error: %v", err)
				continue
			}
			path, err := gdrive.WriteDigestFile(dir, date, calls)
			if err != nil {
				log.Printf("gdrive digest write error: %v", err)
				continue
			}
			if err := syncer.Sync(path, date); err != nil {
				log.Printf("gdrive sync error: %v", err)
			}
		}
	}
}
