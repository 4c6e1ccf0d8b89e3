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
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session status values. A session is created in StatusProcessing, moves to
// StatusCompleted when the batch transcript lands, or to StatusFailed
// (terminal) when the provider declines.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SpeakerSegment is one diarized span of the final transcript. Start and End
// are seconds from the beginning of the recording.
type SpeakerSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// TranscriptionSession is the durable record of one recording attempt. It is
// mutated by the batch transcription job and the summarization job; it is
// never deleted by the pipeline.
type TranscriptionSession struct {
	ID           int64     `json:"id" db:"id"`
	SessionToken string    `json:"session_token" db:"session_token"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Transcription results, empty until the batch path completes
	RawText         string           `json:"raw_text,omitempty" db:"raw_text"`
	Speakers        []SpeakerSegment `json:"speakers,omitempty" db:"speaker_data"`
	DurationSeconds float64          `json:"duration_seconds" db:"duration_seconds"`

	// Summary, empty until the summarization job completes
	Summary string `json:"summary,omitempty" db:"summary"`

	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`
}

// NewTranscriptionSession creates a session in the processing state with a
// freshly generated session token. The token doubles as the broadcast topic
// key.
func NewTranscriptionSession() *TranscriptionSession {
	now := time.Now().UTC()
	return &TranscriptionSession{
		SessionToken: uuid.NewString(),
		Status:       StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     make(map[string]string),
	}
}

// ReadyForSummary reports whether summary generation is eligible: the batch
// transcript landed, and no summary has been stored yet. This is the guard
// that prevents duplicate summarization.
func (ts *TranscriptionSession) ReadyForSummary() bool {
	return ts.Status == StatusCompleted &&
		strings.TrimSpace(ts.RawText) != "" &&
		strings.TrimSpace(ts.Summary) == ""
}

// MarkCompleted records the batch transcription result
func (ts *TranscriptionSession) MarkCompleted(rawText string, speakers []SpeakerSegment, duration float64) {
	ts.Status = StatusCompleted
	ts.RawText = rawText
	ts.Speakers = speakers
	ts.DurationSeconds = duration
	ts.UpdatedAt = time.Now().UTC()
}

// MarkFailed moves the session into the terminal failed state
func (ts *TranscriptionSession) MarkFailed() {
	ts.Status = StatusFailed
	ts.UpdatedAt = time.Now().UTC()
}

// SpeakersJSON returns speaker segments as a JSON string for database storage
func (ts *TranscriptionSession) SpeakersJSON() (string, error) {
	if len(ts.Speakers) == 0 {
		return "[]", nil
	}

	data, err := json.Marshal(ts.Speakers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal speaker segments: %w", err)
	}

	return string(data), nil
}

// SetSpeakersFromJSON parses a JSON string and sets speaker segments
func (ts *TranscriptionSession) SetSpeakersFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		ts.Speakers = nil
		return nil
	}

	var speakers []SpeakerSegment
	if err := json.Unmarshal([]byte(jsonStr), &speakers); err != nil {
		return fmt.Errorf("failed to unmarshal speaker JSON: %w", err)
	}

	ts.Speakers = speakers
	return nil
}

// MetadataJSON returns metadata as a JSON string for database storage
func (ts *TranscriptionSession) MetadataJSON() (string, error) {
	if ts.Metadata == nil {
		return "{}", nil
	}

	data, err := json.Marshal(ts.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return string(data), nil
}

// SetMetadataFromJSON parses a JSON string and sets metadata
func (ts *TranscriptionSession) SetMetadataFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "{}" {
		ts.Metadata = make(map[string]string)
		return nil
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata JSON: %w", err)
	}

	ts.Metadata = metadata
	return nil
}

// IsValid performs basic validation on the session record
func (ts *TranscriptionSession) IsValid() error {
	if ts.SessionToken == "" {
		return fmt.Errorf("session token is required")
	}

	switch ts.Status {
	case StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("invalid status: %q", ts.Status)
	}

	if ts.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}

	return nil
}

// String returns a human-readable representation of the session
func (ts *TranscriptionSession) String() string {
	return fmt.Sprintf("TranscriptionSession{ID: %d, Token: %s, Status: %s, Text: %d chars, Summary: %t}",
		ts.ID, ts.SessionToken, ts.Status, len(ts.RawText), ts.Summary != "")
}
