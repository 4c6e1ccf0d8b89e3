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

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/storage"
	"github.com/akshaymugale01/audio-transcripter/internal/transcribe"
)

// Enqueuer schedules background work for a session
type Enqueuer interface {
	EnqueueRecording(sessionToken string, blob []byte) error
}

// Subscription is an active broadcast topic subscription
type Subscription interface {
	Unsubscribe() error
}

// Broadcast is the per-session fan-out surface the viewer socket rides on
type Broadcast interface {
	Subscribe(sessionToken string, handler func(*events.BroadcastEvent)) (Subscription, error)
	RelayPartial(sessionToken, text string) error
}

// Server is the hub's HTTP surface: session CRUD, recording intake, streaming
// token minting, and the viewer websocket.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	server *http.Server

	store     *storage.TranscriptionStore
	enqueuer  Enqueuer
	broadcast Broadcast
	tokens    transcribe.StreamingTokenSource

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server wired to its collaborators
func New(cfg *config.Config, store *storage.TranscriptionStore, enqueuer Enqueuer, broadcast Broadcast, tokens transcribe.StreamingTokenSource) *Server {
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:       cfg,
		mux:       mux,
		store:     store,
		enqueuer:  enqueuer,
		broadcast: broadcast,
		tokens:    tokens,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s
}

// routes registers all HTTP endpoints
func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{token}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/sessions/{token}/recording", s.handleUploadRecording)
	s.mux.HandleFunc("POST /api/streaming-token", s.handleStreamingToken)
	s.mux.HandleFunc("GET /ws/sessions/{token}", s.handleViewerSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler exposes the mux for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server until Stop is called
func (s *Server) Start() error {
	logging.Sugar.Infow("🚀 Hub starting",
		"http_port", s.cfg.Server.Port)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	logging.Sugar.Infow("✅ Hub stopped")
	return nil
}
