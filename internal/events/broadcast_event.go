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

package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the discriminator carried in the broadcast wire format
type EventType string

const (
	EventPartialTranscription  EventType = "partial_transcription"
	EventTranscriptionComplete EventType = "transcription_complete"
	EventSummaryComplete       EventType = "summary_complete"
	EventError                 EventType = "error"
)

// BroadcastEvent is the tagged payload relayed over a session's broadcast
// topic. Transient: delivered best-effort to currently connected subscribers,
// never persisted, never replayed.
type BroadcastEvent struct {
	Type EventType `json:"type"`

	// partial_transcription / transcription_complete
	Text     string           `json:"text,omitempty"`
	Speakers []SpeakerSegment `json:"speakers,omitempty"`

	// summary_complete
	Summary string `json:"summary,omitempty"`

	// error
	Message string `json:"message,omitempty"`

	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// NewPartialTranscription builds a live-preview text event, timestamped at
// emission so re-broadcast copies stay verbatim.
func NewPartialTranscription(text string) *BroadcastEvent {
	now := time.Now().UTC()
	return &BroadcastEvent{
		Type:      EventPartialTranscription,
		Text:      text,
		Timestamp: &now,
	}
}

// NewTranscriptionComplete builds the batch-path completion event
func NewTranscriptionComplete(text string, speakers []SpeakerSegment) *BroadcastEvent {
	return &BroadcastEvent{
		Type:     EventTranscriptionComplete,
		Text:     text,
		Speakers: speakers,
	}
}

// NewSummaryComplete builds the summary completion event
func NewSummaryComplete(summary string) *BroadcastEvent {
	return &BroadcastEvent{
		Type:    EventSummaryComplete,
		Summary: summary,
	}
}

// NewErrorEvent builds an error event with a human-readable message
func NewErrorEvent(message string) *BroadcastEvent {
	return &BroadcastEvent{
		Type:    EventError,
		Message: message,
	}
}

// Marshal renders the event as broadcast wire bytes
func (e *BroadcastEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal broadcast event: %w", err)
	}
	return data, nil
}

// DecodeBroadcastEvent parses broadcast wire bytes into a tagged event
func DecodeBroadcastEvent(data []byte) (*BroadcastEvent, error) {
	var event BroadcastEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal broadcast event: %w", err)
	}

	switch event.Type {
	case EventPartialTranscription, EventTranscriptionComplete, EventSummaryComplete, EventError:
		return &event, nil
	default:
		return nil, fmt.Errorf("unknown broadcast event type: %q", event.Type)
	}
}
