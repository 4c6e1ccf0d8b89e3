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
	"time"

	"github.com/gorilla/websocket"
)

// Clock abstracts time for the reconnect delay so tests can drive it
// deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall-clock Clock used outside tests
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// ReconnectPolicy governs recovery from abnormal socket closure. The policy is
// a single delayed attempt: no backoff ladder and no retry of the retry. A
// second failure leaves the session disconnected until the operator restarts
// it.
type ReconnectPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy is one attempt after a fixed two second delay
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Delay:       2 * time.Second,
		MaxAttempts: 1,
	}
}

// ShouldRetry reports whether a close code warrants a reconnect attempt.
// Normal closure and going-away are deliberate shutdowns; everything else,
// including the absent-status code seen on dropped TCP connections, counts as
// abnormal.
func (p ReconnectPolicy) ShouldRetry(closeCode int) bool {
	switch closeCode {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		return false
	default:
		return true
	}
}
