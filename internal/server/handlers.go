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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/storage"
)

// maxRecordingBytes caps the uploaded blob size
const maxRecordingBytes = 256 << 20

// handleCreateSession creates a new session in the processing state and
// returns its token
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := events.NewTranscriptionSession()

	if err := s.store.Insert(session); err != nil {
		logging.LogError(err, "Failed to create session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// handleGetSession returns the current session record
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	session, err := s.store.GetByToken(token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to load session", zap.String("session_token", token))
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// handleUploadRecording accepts the finished recording blob and schedules
// batch transcription. Responds 202: processing happens in the background and
// results arrive over the broadcast topic.
func (s *Server) handleUploadRecording(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	session, err := s.store.GetByToken(token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to load session", zap.String("session_token", token))
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "expected multipart form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio_blob")
	if err != nil {
		http.Error(w, "missing audio_blob field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(io.LimitReader(file, maxRecordingBytes))
	if err != nil {
		http.Error(w, "failed to read audio blob", http.StatusBadRequest)
		return
	}
	if len(blob) == 0 {
		http.Error(w, "empty audio blob", http.StatusBadRequest)
		return
	}

	if err := s.enqueuer.EnqueueRecording(token, blob); err != nil {
		logging.LogError(err, "Failed to enqueue recording", zap.String("session_token", token))
		http.Error(w, "failed to schedule transcription", http.StatusServiceUnavailable)
		return
	}

	logging.Sugar.Infow("📥 Recording accepted",
		"session_token", token,
		"filename", header.Filename,
		"bytes", len(blob),
		"status", session.Status)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_token": token,
		"status":        "accepted",
	})
}

type streamingTokenRequest struct {
	ExpiresInSeconds int `json:"expires_in_seconds"`
}

type streamingTokenResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// handleStreamingToken mints a short-lived live ASR socket token. No retry on
// vendor failure; the client sees the failure immediately.
func (s *Server) handleStreamingToken(w http.ResponseWriter, r *http.Request) {
	ttl := s.cfg.Streaming.TokenTTL

	var req streamingTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.ExpiresInSeconds > 0 {
		requested := secondsToDuration(req.ExpiresInSeconds)
		if requested < ttl {
			ttl = requested
		}
	}

	token, err := s.tokens.StreamingToken(r.Context(), ttl)
	if err != nil {
		logging.LogError(err, "Failed to mint streaming token")
		http.Error(w, "streaming token unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, streamingTokenResponse{
		Token:            token,
		ExpiresInSeconds: int(ttl.Seconds()),
	})
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.LogError(err, "Failed to encode response")
	}
}
