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
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

// DefaultFrameSize is the number of source samples collected before a frame is
// encoded and emitted
const DefaultFrameSize = 4096

// Segment is the 16-bit PCM output produced from exactly one full frame,
// already resampled to the target rate.
type Segment struct {
	PCM        []int16
	SourceRate int
}

// Bytes returns the segment as little-endian wire bytes
func (s Segment) Bytes() []byte {
	return PCMBytes(s.PCM)
}

// Pipeline turns a continuous audio callback stream into fixed-size frames and
// pushes each completed frame through the encoder. Emission is an asynchronous
// hand-off over a buffered channel: the audio callback never waits on the
// consumer or the network. A consumer that falls behind loses segments (the
// source is real-time; stale audio has no value) and the loss is counted.
type Pipeline struct {
	frameSize  int
	targetRate int

	buffer []float32
	cursor int

	out     chan Segment
	dropped atomic.Uint64
}

// NewPipeline creates a capture pipeline with the given frame size. A
// non-positive frameSize falls back to DefaultFrameSize.
func NewPipeline(frameSize, targetRate int) *Pipeline {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	if targetRate <= 0 {
		targetRate = TargetSampleRate
	}

	return &Pipeline{
		frameSize:  frameSize,
		targetRate: targetRate,
		buffer:     make([]float32, frameSize),
		out:        make(chan Segment, 32),
	}
}

// Push copies incoming callback samples into the frame buffer, emitting one
// encoded segment each time the buffer fills. No sample is lost or duplicated
// and no frame ever exceeds the configured size. Safe only for a single
// producer.
func (p *Pipeline) Push(samples []float32, sourceRate int) {
	for _, s := range samples {
		p.buffer[p.cursor] = s
		p.cursor++

		if p.cursor >= p.frameSize {
			p.emit(sourceRate)
			p.cursor = 0
		}
	}
}

// emit encodes the full buffer as one frame and hands it off without blocking
func (p *Pipeline) emit(sourceRate int) {
	resampled := Resample(p.buffer, sourceRate, p.targetRate)
	segment := Segment{
		PCM:        EncodePCM(resampled),
		SourceRate: sourceRate,
	}

	select {
	case p.out <- segment:
	default:
		n := p.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			logging.LogWarn("Capture consumer falling behind, dropping segment",
				zap.Uint64("dropped_total", n))
		}
	}
}

// Segments returns the channel the single registered consumer reads from
func (p *Pipeline) Segments() <-chan Segment {
	return p.out
}

// Buffered returns how many samples are sitting in the partial frame
func (p *Pipeline) Buffered() int {
	return p.cursor
}

// Dropped returns how many segments were discarded because the consumer fell
// behind
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Close closes the segment channel. Call only after the producing backend has
// stopped.
func (p *Pipeline) Close() {
	close(p.out)
}
