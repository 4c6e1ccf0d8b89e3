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

package ingest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize()
	m.Run()
}

type recordingEnqueuer struct {
	mu     sync.Mutex
	tokens []string
	blobs  [][]byte
}

func (r *recordingEnqueuer) EnqueueRecording(token string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	r.blobs = append(r.blobs, blob)
	return nil
}

func (r *recordingEnqueuer) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

func TestTokenFromPath(t *testing.T) {
	tests := []struct {
		path      string
		wantToken string
		wantOK    bool
	}{
		{"/drop/abc-123.wav", "abc-123", true},
		{"/drop/tok.webm", "tok", true},
		{"/drop/tok.OGG", "tok", true},
		{"/drop/readme.txt", "", false},
		{"/drop/noext", "", false},
		{"/drop/.wav", "", false},
	}

	for _, tt := range tests {
		token, ok := tokenFromPath(tt.path)
		if token != tt.wantToken || ok != tt.wantOK {
			t.Errorf("tokenFromPath(%q) = (%q, %v), want (%q, %v)",
				tt.path, token, ok, tt.wantToken, tt.wantOK)
		}
	}
}

func TestStopWithoutStartReturns(t *testing.T) {
	w, err := New(t.TempDir(), &recordingEnqueuer{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop on an unstarted watcher failed: %v", err)
	}
}

func TestWatcherPicksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pre-existing.wav"), []byte{1, 2, 3}, 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	enq := &recordingEnqueuer{}
	w, err := New(dir, enq)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	got := enq.snapshot()
	if len(got) != 1 || got[0] != "pre-existing" {
		t.Errorf("enqueued tokens = %v, want [pre-existing]", got)
	}

	// The ingested file is removed so restarts do not double-process
	if _, err := os.Stat(filepath.Join(dir, "pre-existing.wav")); !os.IsNotExist(err) {
		t.Errorf("ingested file still present, err = %v", err)
	}
}

func TestWatcherIngestsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	enq := &recordingEnqueuer{}

	w, err := New(dir, enq)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "tok-55.ogg"), []byte{9, 9}, 0600); err != nil {
		t.Fatalf("failed to drop file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(enq.snapshot()) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	got := enq.snapshot()
	if len(got) != 1 || got[0] != "tok-55" {
		t.Fatalf("enqueued tokens = %v, want [tok-55]", got)
	}
}

func TestWatcherIgnoresNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	enq := &recordingEnqueuer{}
	w, err := New(dir, enq)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if got := enq.snapshot(); len(got) != 0 {
		t.Errorf("enqueued tokens = %v, want none", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("non-audio file should be left alone: %v", err)
	}
}

func TestWatcherRequiresDirectory(t *testing.T) {
	if _, err := New("", &recordingEnqueuer{}); err == nil {
		t.Error("expected error for empty directory")
	}
}
