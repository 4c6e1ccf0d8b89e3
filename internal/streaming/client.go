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

package streaming

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

// State is the live socket lifecycle position
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// TokenSource mints short-lived credentials for the ASR socket. The capture
// client never holds the long-lived provider API key.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// EventHandler receives each decoded inbound socket event. Called from the
// read goroutine; handlers must not block.
type EventHandler func(Event)

const dialTimeout = 10 * time.Second

// Client maintains one live connection to the remote ASR socket, sending raw
// PCM frames out and dispatching decoded transcript events in. Frames pushed
// while the socket is not open are dropped: live audio is only useful live.
//
// Recovery from abnormal closure follows the injected ReconnectPolicy, one
// delayed attempt by default. The attempt budget spans the client lifetime, so
// a second abnormal closure leaves the client disconnected.
type Client struct {
	socketURL    string
	sessionToken string
	tokens       TokenSource
	policy       ReconnectPolicy
	clock        Clock
	handler      EventHandler

	mu           sync.Mutex
	conn         *websocket.Conn
	state        State
	stopped      bool
	reconnecting bool
	attempts     int

	droppedFrames uint64
}

// NewClient creates a streaming client. A nil clock gets the system clock.
func NewClient(socketURL, sessionToken string, tokens TokenSource, policy ReconnectPolicy, clock Clock, handler EventHandler) *Client {
	if clock == nil {
		clock = SystemClock{}
	}
	if handler == nil {
		handler = func(Event) {}
	}

	return &Client{
		socketURL:    socketURL,
		sessionToken: sessionToken,
		tokens:       tokens,
		policy:       policy,
		clock:        clock,
		handler:      handler,
		state:        StateDisconnected,
	}
}

// Connect mints a socket token, dials the ASR socket, and starts the read
// loop. On failure the client returns to disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("client is stopped")
	}
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return fmt.Errorf("already %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to mint streaming token: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.socketURL+"?token="+token, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to dial ASR socket: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("client is stopped")
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	logging.LogStreaming(c.sessionToken, "connected")
	go c.readLoop(conn)
	return nil
}

// Send writes one binary PCM frame to the socket. Frames arriving while the
// socket is not open are counted and dropped without error.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.droppedFrames++
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// readLoop dispatches inbound events until the connection dies, then hands the
// close code to the reconnect logic.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosure(closeCode(err))
			return
		}

		event := DecodeEvent(data)
		if event.Kind == KindUnknown {
			continue
		}
		switch event.Kind {
		case KindPartialTranscript, KindFinalTranscript, KindTranscript:
			// Transcript text only counts when it survives trimming
			if strings.TrimSpace(event.Text) == "" {
				continue
			}
		}
		if event.Kind == KindError {
			logging.LogStreaming(c.sessionToken, "remote error",
				zap.String("error", event.ErrorText))
		}
		c.handler(event)
	}
}

// closeCode extracts the websocket close code from a read error. Errors that
// carry no close frame count as abnormal closure.
func closeCode(err error) int {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// handleClosure records the disconnect and, for abnormal codes, schedules the
// single delayed reconnect attempt. The reconnecting flag prevents overlapping
// attempts when closures arrive back to back.
func (c *Client) handleClosure(code int) {
	c.mu.Lock()
	c.conn = nil

	if c.stopped {
		c.state = StateClosed
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected

	retry := c.policy.ShouldRetry(code) &&
		c.attempts < c.policy.MaxAttempts &&
		!c.reconnecting
	if retry {
		c.reconnecting = true
		c.attempts++
	}
	c.mu.Unlock()

	logging.LogStreaming(c.sessionToken, "closed",
		zap.Int("close_code", code), zap.Bool("reconnecting", retry))

	if retry {
		go c.reconnectAfterDelay()
	}
}

func (c *Client) reconnectAfterDelay() {
	<-c.clock.After(c.policy.Delay)

	c.mu.Lock()
	stopped := c.stopped
	c.reconnecting = false
	c.mu.Unlock()

	if stopped {
		return
	}

	if err := c.Connect(context.Background()); err != nil {
		logging.LogError(err, "Reconnect attempt failed",
			zap.String("session_token", c.sessionToken))
	}
}

// Stop performs an orderly shutdown: a normal close frame, then the underlying
// connection. Stopping suppresses any pending reconnect. Idempotent.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	conn := c.conn
	if conn != nil {
		c.state = StateClosing
	} else {
		c.state = StateClosed
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := c.clock.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		logging.LogWarn("Failed to send close frame", zap.Error(err))
	}

	err := conn.Close()
	c.setState(StateClosed)
	logging.LogStreaming(c.sessionToken, "stopped")
	return err
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DroppedFrames returns how many frames were discarded because the socket was
// not open when they arrived
func (c *Client) DroppedFrames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.droppedFrames
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
