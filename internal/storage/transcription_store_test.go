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

package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/akshaymugale01/audio-transcripter/internal/events"
)

func newTestStore(t *testing.T) *TranscriptionStore {
	t.Helper()
	db, err := NewDatabase(DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTranscriptionStore(db)
}

func TestInsertAndGet(t *testing.T) {
	store := newTestStore(t)

	session := events.NewTranscriptionSession()
	session.Metadata["origin"] = "test"
	if err := store.Insert(session); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if session.ID == 0 {
		t.Error("Insert did not fill the row ID")
	}

	byID, err := store.GetByID(session.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.SessionToken != session.SessionToken {
		t.Errorf("token = %s, want %s", byID.SessionToken, session.SessionToken)
	}
	if byID.Metadata["origin"] != "test" {
		t.Errorf("metadata = %v", byID.Metadata)
	}

	byToken, err := store.GetByToken(session.SessionToken)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if byToken.ID != session.ID {
		t.Errorf("id = %d, want %d", byToken.ID, session.ID)
	}
}

func TestGetMissingSession(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetByToken("ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.GetByID(999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestMarkCompletedStoresTranscript(t *testing.T) {
	store := newTestStore(t)
	session := events.NewTranscriptionSession()
	store.Insert(session)

	speakers := []events.SpeakerSegment{{Speaker: "A", Start: 0, End: 1.5, Text: "hey"}}
	if err := store.MarkCompleted(session.ID, "hey", speakers, 1.5); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	got, _ := store.GetByID(session.ID)
	if got.Status != events.StatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if got.RawText != "hey" || got.DurationSeconds != 1.5 {
		t.Errorf("transcript fields = %q / %v", got.RawText, got.DurationSeconds)
	}
	if len(got.Speakers) != 1 || got.Speakers[0].End != 1.5 {
		t.Errorf("speakers = %+v", got.Speakers)
	}
}

func TestMarkFailedIsTerminal(t *testing.T) {
	store := newTestStore(t)
	session := events.NewTranscriptionSession()
	store.Insert(session)

	if err := store.MarkFailed(session.ID); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	got, _ := store.GetByID(session.ID)
	if got.Status != events.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}

	// Failed sessions are never summary-eligible
	claimed, err := store.ClaimSummary(session.ID, "anything")
	if err != nil {
		t.Fatalf("ClaimSummary errored: %v", err)
	}
	if claimed {
		t.Error("claim succeeded on a failed session")
	}
}

func TestMarkUpdatesOnMissingRow(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkFailed(12345); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if err := store.MarkCompleted(12345, "x", nil, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestClaimSummaryEligibilityRules(t *testing.T) {
	store := newTestStore(t)

	// Processing session: not eligible
	processing := events.NewTranscriptionSession()
	store.Insert(processing)
	if claimed, _ := store.ClaimSummary(processing.ID, "s"); claimed {
		t.Error("claimed a processing session")
	}

	// Completed with empty transcript: not eligible
	empty := events.NewTranscriptionSession()
	store.Insert(empty)
	store.MarkCompleted(empty.ID, "   ", nil, 0)
	if claimed, _ := store.ClaimSummary(empty.ID, "s"); claimed {
		t.Error("claimed a session with a blank transcript")
	}

	// Eligible, then claimed exactly once
	ok := events.NewTranscriptionSession()
	store.Insert(ok)
	store.MarkCompleted(ok.ID, "real transcript", nil, 2)
	if claimed, _ := store.ClaimSummary(ok.ID, "first"); !claimed {
		t.Error("first claim should win")
	}
	if claimed, _ := store.ClaimSummary(ok.ID, "second"); claimed {
		t.Error("second claim should lose")
	}

	got, _ := store.GetByID(ok.ID)
	if got.Summary != "first" {
		t.Errorf("summary = %q, want first", got.Summary)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		s := events.NewTranscriptionSession()
		store.Insert(s)
		if i < 2 {
			store.MarkCompleted(s.ID, "text", nil, 1)
		}
	}

	completed, err := store.List(ListOptions{Status: events.StatusCompleted})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("completed = %d, want 2", len(completed))
	}

	page, err := store.List(ListOptions{Limit: 3})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("page = %d, want 3", len(page))
	}

	count, err := store.Count(ListOptions{Status: events.StatusProcessing})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("processing count = %d, want 3", count)
	}
}
