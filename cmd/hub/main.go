/*
 * This file is part of Audio Transcripter (https://github.com/akshaymugale01/audio-transcripter).
 * Copyright (C) 2025 Akshay Mugale
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/ingest"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/messaging"
	"github.com/akshaymugale01/audio-transcripter/internal/orchestrator"
	"github.com/akshaymugale01/audio-transcripter/internal/server"
	"github.com/akshaymugale01/audio-transcripter/internal/storage"
	"github.com/akshaymugale01/audio-transcripter/internal/transcribe"
)

// natsBroadcast adapts the NATS broadcast service to the server's fan-out
// interface
type natsBroadcast struct {
	bs *messaging.BroadcastService
}

func (n natsBroadcast) Subscribe(token string, handler func(*events.BroadcastEvent)) (server.Subscription, error) {
	return n.bs.Subscribe(token, handler)
}

func (n natsBroadcast) RelayPartial(token, text string) error {
	return n.bs.RelayPartial(token, text)
}

func main() {
	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Database.Path})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	store := storage.NewTranscriptionStore(db)

	broadcast := messaging.NewBroadcastService(cfg.NATS)
	if err := broadcast.Connect(); err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer broadcast.Close()

	provider, err := transcribe.NewProvider(cfg.Transcription)
	if err != nil {
		log.Fatalf("Failed to configure transcription provider: %v", err)
	}

	summarizer, err := transcribe.NewSummarizer(cfg.Summarization)
	if err != nil {
		log.Fatalf("Failed to configure summarizer: %v", err)
	}

	pool := orchestrator.NewPool(4, 64)
	orch := orchestrator.New(store, provider, summarizer, broadcast, pool)
	orch.Start()
	defer orch.Stop()

	tokens := transcribe.NewStreamingTokenSource(cfg.Transcription)

	srv := server.New(cfg, store, orch, natsBroadcast{broadcast}, tokens)

	if cfg.Ingest.WatchDir != "" {
		watcher, err := ingest.New(cfg.Ingest.WatchDir, orch)
		if err != nil {
			log.Fatalf("Failed to create drop-directory watcher: %v", err)
		}
		if err := watcher.Start(); err != nil {
			log.Fatalf("Failed to start drop-directory watcher: %v", err)
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("🛑 Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "Server exited")
		}
	}

	if err := srv.Stop(); err != nil {
		logging.LogError(err, "Graceful shutdown failed")
	}
}
