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
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const socketWriteTimeout = 10 * time.Second

// handleViewerSocket bridges a viewer websocket onto the session's broadcast
// topic. Outbound: every broadcast event, as JSON. Inbound: a client may
// submit partial_transcription events, which are re-broadcast verbatim to the
// session's other viewers. Anything else inbound is dropped.
func (s *Server) handleViewerSocket(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	if _, err := s.store.GetByToken(token); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogError(err, "Viewer socket upgrade failed",
			zap.String("session_token", token))
		return
	}
	defer conn.Close()

	logging.LogBroadcast(token, "viewer connected")

	// Single writer goroutine; the subscription handler and ping loop both
	// feed it through writeMu.
	var writeMu sync.Mutex
	writeEvent := func(event *events.BroadcastEvent) error {
		data, err := event.Marshal()
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	sub, err := s.broadcast.Subscribe(token, func(event *events.BroadcastEvent) {
		if err := writeEvent(event); err != nil {
			logging.LogWarn("Viewer write failed, closing",
				zap.String("session_token", token), zap.Error(err))
			conn.Close()
		}
	})
	if err != nil {
		logging.LogError(err, "Broadcast subscribe failed",
			zap.String("session_token", token))
		return
	}
	defer sub.Unsubscribe()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logging.LogBroadcast(token, "viewer disconnected")
			return
		}

		event, err := events.DecodeBroadcastEvent(data)
		if err != nil || event.Type != events.EventPartialTranscription {
			continue
		}

		// Verbatim relay: the hub adds nothing and rewrites nothing
		if err := s.broadcast.RelayPartial(token, event.Text); err != nil {
			logging.LogError(err, "Partial relay failed",
				zap.String("session_token", token))
		}
	}
}
