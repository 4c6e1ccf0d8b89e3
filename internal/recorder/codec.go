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
	"bytes"
	"fmt"

	"github.com/youpy/go-wav"
)

// Encoder turns accumulated PCM into a finished container blob
type Encoder interface {
	MimeType() string
	FileExtension() string
	Encode(pcm []int16, sampleRate int) ([]byte, error)
}

// PreferredMimeTypes is the codec preference order for the recording blob.
// The first type the local registry supports wins; when none match, the
// platform default encoder is used.
var PreferredMimeTypes = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/ogg",
}

// Registry maps MIME types to available encoders
type Registry struct {
	encoders map[string]Encoder
	fallback Encoder
}

// NewRegistry creates a registry with the platform default WAV encoder as
// fallback
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[string]Encoder),
		fallback: WAVEncoder{},
	}
}

// Register adds an encoder under its MIME type
func (r *Registry) Register(e Encoder) {
	r.encoders[e.MimeType()] = e
}

// Select walks the preference list and returns the first supported encoder,
// falling back to the platform default when nothing matches.
func (r *Registry) Select(preferences []string) Encoder {
	for _, mime := range preferences {
		if e, ok := r.encoders[mime]; ok {
			return e
		}
	}
	return r.fallback
}

// WAVEncoder is the platform default: uncompressed 16-bit mono WAV. Always
// available, never preferred.
type WAVEncoder struct{}

func (WAVEncoder) MimeType() string      { return "audio/wav" }
func (WAVEncoder) FileExtension() string { return ".wav" }

// Encode writes the PCM as a mono 16-bit WAV container
func (WAVEncoder) Encode(pcm []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer

	writer := wav.NewWriter(&buf, uint32(len(pcm)), 1, uint32(sampleRate), 16)

	samples := make([]wav.Sample, len(pcm))
	for i, s := range pcm {
		samples[i].Values[0] = int(s)
	}

	if err := writer.WriteSamples(samples); err != nil {
		return nil, fmt.Errorf("failed to write wav samples: %w", err)
	}

	return buf.Bytes(), nil
}
