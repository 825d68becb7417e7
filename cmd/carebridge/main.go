package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/carebridge-dev/carebridge/internal/agent"
	"github.com/carebridge-dev/carebridge/internal/classify"
	"github.com/carebridge-dev/carebridge/internal/config"
	"github.com/carebridge-dev/carebridge/internal/server"
	"github.com/carebridge-dev/carebridge/internal/session"
	"github.com/carebridge-dev/carebridge/internal/storage"
	"github.com/carebridge-dev/carebridge/internal/telephony"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("carebridge: starting")

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	hub := server.NewHub()

	classifier := classify.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	plane := telephony.NewTwilio(telephony.Config{
		AccountSID:      cfg.TwilioAccountSID,
		AuthToken:       cfg.TwilioAuthToken,
		FromNumber:      cfg.TwilioFromNumber,
		ResponderNumber: cfg.TwilioResponderNumber,
	})

	dispatcher := session.NewDispatcher(session.Config{
		EngineFactory: agent.NewElevenLabsFactory(cfg.ElevenLabsAgentID, cfg.ElevenLabsAPIKey),
		Classifier:    classifier,
		FailMode:      cfg.FailMode(),
		Orchestrator:  session.NewOrchestrator(plane),
		Store:         store,
		Hub:           hub,
	})

	handler := server.Handler(hub, store, dispatcher, cfg.PublicHost)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, cfg.ListenAddr, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("http server error: %v", err)
		os.Exit(1)
	}

	log.Println("carebridge: shut down")
}
