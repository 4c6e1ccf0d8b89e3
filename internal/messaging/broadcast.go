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

package messaging

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
)

// SubjectPrefix is the NATS subject namespace for per-session broadcast topics
const SubjectPrefix = "transcription"

// SubjectFor returns the broadcast subject for a session token
func SubjectFor(sessionToken string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, sessionToken)
}

// BroadcastService relays session state transitions and transcript text to
// all currently connected viewers of a session. Publish is fire-and-forget:
// no persistence, no replay for late subscribers, no acknowledgment.
type BroadcastService struct {
	conn *nats.Conn
	cfg  config.NATSConfig
}

// NewBroadcastService creates a new broadcast service instance
func NewBroadcastService(cfg config.NATSConfig) *BroadcastService {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	return &BroadcastService{cfg: cfg}
}

// Connect establishes connection to the NATS server
func (bs *BroadcastService) Connect() error {
	log.Printf("🔌 Connecting to NATS at %s", bs.cfg.URL)

	opts := []nats.Option{
		nats.Name("audio-transcripter"),
		nats.ReconnectWait(bs.cfg.ReconnectWait),
		nats.MaxReconnects(bs.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️  NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("🔄 NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("🔌 NATS connection closed")
		}),
	}

	conn, err := nats.Connect(bs.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	bs.conn = conn
	log.Printf("✅ Connected to NATS server at %s", conn.ConnectedUrl())
	return nil
}

// Publish sends a broadcast event to every current subscriber of the session
// topic. Best-effort: a publish error is returned but subscribers that miss
// the event are never caught up.
func (bs *BroadcastService) Publish(sessionToken string, event *events.BroadcastEvent) error {
	if bs.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast event: %w", err)
	}

	subject := SubjectFor(sessionToken)
	if err := bs.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.Printf("📤 Published %s to %s", event.Type, subject)
	return nil
}

// RelayPartial re-broadcasts a client-submitted partial transcript verbatim,
// tagged and timestamped
func (bs *BroadcastService) RelayPartial(sessionToken, text string) error {
	return bs.Publish(sessionToken, events.NewPartialTranscription(text))
}

// Subscribe registers a handler for every broadcast event on a session topic.
// Malformed payloads are logged and skipped.
func (bs *BroadcastService) Subscribe(sessionToken string, handler func(*events.BroadcastEvent)) (*nats.Subscription, error) {
	if bs.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	subject := SubjectFor(sessionToken)
	return bs.conn.Subscribe(subject, func(msg *nats.Msg) {
		event, err := events.DecodeBroadcastEvent(msg.Data)
		if err != nil {
			log.Printf("❌ Error decoding broadcast event on %s: %v", subject, err)
			return
		}

		handler(event)
	})
}

// Flush waits for in-flight publishes to be processed by the server
func (bs *BroadcastService) Flush(timeout time.Duration) error {
	if bs.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}
	return bs.conn.FlushTimeout(timeout)
}

// Close closes the NATS connection
func (bs *BroadcastService) Close() {
	if bs.conn != nil {
		bs.conn.Close()
		log.Println("🔌 NATS connection closed")
	}
}

// IsConnected returns true if connected to NATS
func (bs *BroadcastService) IsConnected() bool {
	return bs.conn != nil && bs.conn.IsConnected()
}

// Stats returns connection statistics
func (bs *BroadcastService) Stats() nats.Statistics {
	if bs.conn != nil {
		return bs.conn.Stats()
	}
	return nats.Statistics{}
}
