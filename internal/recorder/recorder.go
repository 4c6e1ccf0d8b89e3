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

package recorder

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

// sliceSeconds is the recording granularity: audio is collected in one
// second slices so an interrupted recording loses at most the trailing
// partial second.
const sliceSeconds = 1

// Recording is a finalized blob ready for upload
type Recording struct {
	Blob            []byte
	MimeType        string
	FileExtension   string
	DurationSeconds float64
}

// Recorder accumulates the session's full audio in one second slices,
// in parallel with (and independent of) the live streaming path. Nothing
// leaves the recorder until Stop finalizes the blob.
type Recorder struct {
	encoder    Encoder
	sampleRate int

	mu      sync.Mutex
	slices  [][]int16
	current []int16
	stopped bool

	// onRelease fires after finalization so the capture source is held
	// until the last slice is safely in the blob.
	onRelease func()
}

// NewRecorder creates a recorder using the given encoder and source rate
func NewRecorder(encoder Encoder, sampleRate int) (*Recorder, error) {
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}

	return &Recorder{
		encoder:    encoder,
		sampleRate: sampleRate,
	}, nil
}

// SetReleaseFunc registers a callback invoked once, after Stop has finalized
// the blob. Used to release the capture device.
func (r *Recorder) SetReleaseFunc(f func()) {
	r.mu.Lock()
	r.onRelease = f
	r.mu.Unlock()
}

// Write appends PCM to the current slice, cutting a new slice at each full
// second. Writes after Stop are discarded.
func (r *Recorder) Write(pcm []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	sliceLen := r.sampleRate * sliceSeconds
	for _, s := range pcm {
		r.current = append(r.current, s)
		if len(r.current) >= sliceLen {
			r.slices = append(r.slices, r.current)
			r.current = nil
		}
	}
}

// SliceCount returns how many full slices have been cut
func (r *Recorder) SliceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slices)
}

// Stop finalizes the recording: concatenates every slice plus the trailing
// partial, encodes the blob, and only then releases the capture source.
// Idempotent in effect; a second Stop returns an error.
func (r *Recorder) Stop() (*Recording, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, fmt.Errorf("recorder already stopped")
	}
	r.stopped = true

	total := len(r.current)
	for _, s := range r.slices {
		total += len(s)
	}

	pcm := make([]int16, 0, total)
	for _, s := range r.slices {
		pcm = append(pcm, s...)
	}
	pcm = append(pcm, r.current...)

	r.slices = nil
	r.current = nil
	release := r.onRelease
	r.mu.Unlock()

	blob, err := r.encoder.Encode(pcm, r.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recording: %w", err)
	}

	recording := &Recording{
		Blob:            blob,
		MimeType:        r.encoder.MimeType(),
		FileExtension:   r.encoder.FileExtension(),
		DurationSeconds: float64(total) / float64(r.sampleRate),
	}

	if release != nil {
		release()
	}

	logging.LogCapture("recorder", "finalized",
		zap.Int("samples", total),
		zap.Float64("duration_seconds", recording.DurationSeconds),
		zap.String("mime_type", recording.MimeType))

	return recording, nil
}
