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

import "encoding/json"

// EventKind discriminates inbound ASR socket messages. Every inbound message
// decodes to exactly one kind; messages that match no known shape decode to
// KindUnknown and are ignored by the client rather than treated as errors.
type EventKind string

const (
	KindSessionBegins     EventKind = "session_begins"
	KindPartialTranscript EventKind = "partial_transcript"
	KindFinalTranscript   EventKind = "final_transcript"
	KindTranscript        EventKind = "transcript"
	KindError             EventKind = "error"
	KindUnknown           EventKind = "unknown"
)

// Event is one decoded inbound message from the ASR socket. Only the fields
// relevant to the kind are populated.
type Event struct {
	Kind      EventKind
	SessionID string
	Text      string
	ErrorText string
}

// rawEvent covers every inbound message shape the socket is known to send
type rawEvent struct {
	MessageType string `json:"message_type"`
	SessionID   string `json:"session_id"`
	Text        string `json:"text"`
	Transcript  string `json:"transcript"`
	Error       string `json:"error"`
}

// DecodeEvent classifies one inbound socket message. Precedence follows the
// message_type tag when present, then the bare transcript-field shape, then
// the error shape. Undecodable or unrecognized payloads yield KindUnknown.
func DecodeEvent(data []byte) Event {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{Kind: KindUnknown}
	}

	switch raw.MessageType {
	case "SessionBegins":
		return Event{Kind: KindSessionBegins, SessionID: raw.SessionID}
	case "PartialTranscript":
		return Event{Kind: KindPartialTranscript, Text: raw.Text}
	case "FinalTranscript":
		return Event{Kind: KindFinalTranscript, Text: raw.Text}
	}

	if raw.Transcript != "" {
		return Event{Kind: KindTranscript, Text: raw.Transcript}
	}

	if raw.Error != "" {
		return Event{Kind: KindError, ErrorText: raw.Error}
	}

	return Event{Kind: KindUnknown}
}
