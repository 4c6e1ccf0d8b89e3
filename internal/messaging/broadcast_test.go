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
	"testing"

	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
)

func TestSubjectFor(t *testing.T) {
	if got := SubjectFor("abc-123"); got != "transcription.abc-123" {
		t.Errorf("SubjectFor = %q", got)
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	bs := NewBroadcastService(config.NATSConfig{})

	if err := bs.Publish("tok", events.NewErrorEvent("x")); err == nil {
		t.Error("Publish without a connection should fail")
	}
	if _, err := bs.Subscribe("tok", func(*events.BroadcastEvent) {}); err == nil {
		t.Error("Subscribe without a connection should fail")
	}
	if bs.IsConnected() {
		t.Error("IsConnected should be false before Connect")
	}
}
