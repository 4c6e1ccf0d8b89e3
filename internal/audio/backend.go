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

package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

const (
	captureFramesPerBuffer = 1024
	fallbackTickInterval   = 50 * time.Millisecond
)

// Backend feeds microphone samples into a Pipeline. The two implementations
// satisfy an identical frame/emit contract; only latency characteristics
// differ.
type Backend interface {
	// Start begins capture. Returns once capture is running.
	Start() error
	// Stop ends capture and releases the device. Idempotent.
	Stop() error
	// Name identifies the backend in logs
	Name() string
}

// SampleSource is a pull-style source of float32 samples for the fallback
// backend (e.g. a raw PCM stream on stdin, or a test fixture).
type SampleSource interface {
	// ReadSamples fills buf and returns the number of samples read
	ReadSamples(buf []float32) (int, error)
	// SampleRate reports the source rate of the samples
	SampleRate() int
}

// PortAudioBackend is the preferred capture backend: the device callback runs
// on portaudio's real-time thread, off the caller goroutine.
type PortAudioBackend struct {
	pipeline   *Pipeline
	sampleRate int
	stream     *portaudio.Stream
	started    bool
}

// NewPortAudioBackend initializes portaudio and opens the default input
// device. The caller owns Terminate via Stop.
func NewPortAudioBackend(pipeline *Pipeline, sampleRate int) (*PortAudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	b := &PortAudioBackend{
		pipeline:   pipeline,
		sampleRate: sampleRate,
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), captureFramesPerBuffer, func(in []float32) {
		// Real-time callback: copy in and return, never block
		b.pipeline.Push(in, b.sampleRate)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}

	b.stream = stream
	return b, nil
}

// Start begins the capture stream
func (b *PortAudioBackend) Start() error {
	if err := b.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	b.started = true
	logging.LogCapture(b.Name(), "started")
	return nil
}

// Stop ends capture and releases the device
func (b *PortAudioBackend) Stop() error {
	if !b.started {
		return nil
	}
	b.started = false

	if err := b.stream.Stop(); err != nil {
		logging.LogError(err, "Failed to stop capture stream")
	}
	if err := b.stream.Close(); err != nil {
		logging.LogError(err, "Failed to close capture stream")
	}

	logging.LogCapture(b.Name(), "stopped")
	return portaudio.Terminate()
}

// Name identifies the backend in logs
func (b *PortAudioBackend) Name() string { return "portaudio" }

// TickerBackend is the fallback capture backend: a periodic pull loop on an
// ordinary goroutine. Higher latency, same frame/emit contract.
type TickerBackend struct {
	pipeline *Pipeline
	source   SampleSource
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerBackend creates the fallback backend over a pull-style source
func NewTickerBackend(pipeline *Pipeline, source SampleSource) *TickerBackend {
	return &TickerBackend{
		pipeline: pipeline,
		source:   source,
		interval: fallbackTickInterval,
	}
}

// Start begins the periodic pull loop
func (b *TickerBackend) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(ctx)

	logging.LogCapture(b.Name(), "started")
	return nil
}

func (b *TickerBackend) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	buf := make([]float32, captureFramesPerBuffer)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.source.ReadSamples(buf)
			if n > 0 {
				b.pipeline.Push(buf[:n], b.source.SampleRate())
			}
			if err != nil {
				logging.LogCapture(b.Name(), "source drained")
				return
			}
		}
	}
}

// Stop ends the pull loop. Idempotent.
func (b *TickerBackend) Stop() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	<-b.done
	b.cancel = nil

	logging.LogCapture(b.Name(), "stopped")
	return nil
}

// Name identifies the backend in logs
func (b *TickerBackend) Name() string { return "ticker" }

// SelectBackend prefers the real-time portaudio backend and falls back to the
// ticker backend when the device layer fails to come up, mirroring the
// worklet-to-script-processor fallback in browser capture stacks.
func SelectBackend(pipeline *Pipeline, sampleRate int, fallback SampleSource) (Backend, error) {
	backend, err := NewPortAudioBackend(pipeline, sampleRate)
	if err == nil {
		return backend, nil
	}

	logging.LogWarn("Preferred capture backend unavailable, falling back")
	if fallback == nil {
		return nil, fmt.Errorf("no capture backend available: %w", err)
	}

	return NewTickerBackend(pipeline, fallback), nil
}
