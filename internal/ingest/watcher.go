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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

// Enqueuer schedules batch transcription for a dropped recording
type Enqueuer interface {
	EnqueueRecording(sessionToken string, blob []byte) error
}

// settleDelay gives the writer time to finish before the file is read
const settleDelay = 500 * time.Millisecond

var audioExtensions = map[string]bool{
	".wav":  true,
	".webm": true,
	".ogg":  true,
	".mp3":  true,
	".m4a":  true,
}

// Watcher reprocesses recordings dropped into a directory. Files are named
// `<session-token>.<ext>`; anything else is ignored. This is the operator
// escape hatch for sessions whose original upload or transcription failed.
type Watcher struct {
	dir      string
	enqueuer Enqueuer

	watcher *fsnotify.Watcher
	done    chan struct{}
	started bool
}

// New creates a watcher over the drop directory
func New(dir string, enqueuer Enqueuer) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		enqueuer: enqueuer,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Files already present in the directory are picked up
// first, then filesystem events drive the rest.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to scan watch directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.ingest(filepath.Join(w.dir, entry.Name()))
		}
	}

	w.started = true
	go w.run()

	logging.Sugar.Infow("👀 Watching drop directory", "dir", w.dir)
	return nil
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Let the writer finish before reading
			time.Sleep(settleDelay)
			w.ingest(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.LogError(err, "Filesystem watcher error")
		}
	}
}

// ingest reads one dropped file and schedules its reprocessing. The file is
// removed once the job is queued so a restart does not double-process it.
func (w *Watcher) ingest(path string) {
	token, ok := tokenFromPath(path)
	if !ok {
		return
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		logging.LogError(err, "Failed to read dropped recording", zap.String("path", path))
		return
	}
	if len(blob) == 0 {
		logging.LogWarn("Dropped recording is empty", zap.String("path", path))
		return
	}

	if err := w.enqueuer.EnqueueRecording(token, blob); err != nil {
		logging.LogError(err, "Failed to enqueue dropped recording",
			zap.String("session_token", token))
		return
	}

	if err := os.Remove(path); err != nil {
		logging.LogWarn("Failed to remove ingested file", zap.String("path", path), zap.Error(err))
	}

	logging.Sugar.Infow("📥 Dropped recording queued",
		"session_token", token,
		"bytes", len(blob))
}

// tokenFromPath extracts the session token from a `<token>.<ext>` file name
func tokenFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if !audioExtensions[ext] {
		return "", false
	}

	token := strings.TrimSuffix(base, filepath.Ext(base))
	if token == "" {
		return "", false
	}
	return token, true
}

// Stop ends watching and waits for the event loop to exit. Safe to call on a
// watcher that was never started.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}
