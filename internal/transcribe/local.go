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

package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/youpy/go-wav"

	"github.com/akshaymugale01/audio-transcripter/internal/audio"
)

// LocalProvider runs batch transcription on-box with a whisper model. Only
// WAV blobs are supported and no speaker labels are produced.
type LocalProvider struct {
	engine *whisperEngine
}

// NewLocalProvider loads the whisper model at modelPath. Without the whisper
// build tag the provider constructs fine but fails at transcription time.
func NewLocalProvider(modelPath string) (*LocalProvider, error) {
	engine, err := newWhisperEngine(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local transcription: %w", err)
	}
	return &LocalProvider{engine: engine}, nil
}

// Transcribe decodes the WAV blob, resamples to the model's expected rate,
// and runs whisper over it
func (p *LocalProvider) Transcribe(ctx context.Context, blob []byte) (*Result, error) {
	samples, sourceRate, err := decodeWAV(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode recording: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := p.engine.transcribe(audio.Resample(samples, sourceRate, audio.TargetSampleRate))
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:            text,
		DurationSeconds: float64(len(samples)) / float64(sourceRate),
	}, nil
}

// Close releases the whisper model
func (p *LocalProvider) Close() error {
	return p.engine.close()
}

// decodeWAV reads a mono or multi-channel WAV blob into normalized float32
// samples, taking the first channel only.
func decodeWAV(blob []byte) ([]float32, int, error) {
	reader := wav.NewReader(bytes.NewReader(blob))

	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("not a valid wav blob: %w", err)
	}

	var samples []float32
	for {
		batch, err := reader.ReadSamples(2048)
		for _, s := range batch {
			samples = append(samples, float32(reader.FloatValue(s, 0)))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read wav samples: %w", err)
		}
	}

	return samples, int(format.SampleRate), nil
}

// LocalSummarizer produces an extractive summary with no external calls:
// sentences are scored by the frequency of their words across the whole
// transcript and the top scorers are kept in original order.
type LocalSummarizer struct {
	maxSentences int
}

// NewLocalSummarizer creates the offline fallback summarizer
func NewLocalSummarizer() *LocalSummarizer {
	return &LocalSummarizer{maxSentences: 3}
}

// Summarize returns the highest-scoring sentences of the transcript. Short
// transcripts come back whole.
func (s *LocalSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	sentences := splitSentences(text)
	if len(sentences) <= s.maxSentences {
		return strings.TrimSpace(text), nil
	}

	freq := make(map[string]int)
	for _, sentence := range sentences {
		for _, w := range tokenize(sentence) {
			freq[w]++
		}
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sentence := range sentences {
		words := tokenize(sentence)
		if len(words) == 0 {
			ranked[i] = scored{index: i}
			continue
		}
		total := 0
		for _, w := range words {
			total += freq[w]
		}
		ranked[i] = scored{index: i, score: float64(total) / float64(len(words))}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	keep := make([]int, 0, s.maxSentences)
	for _, r := range ranked[:s.maxSentences] {
		keep = append(keep, r.index)
	}
	sort.Ints(keep)

	parts := make([]string, 0, len(keep))
	for _, i := range keep {
		parts = append(parts, strings.TrimSpace(sentences[i]))
	}
	return strings.Join(parts, " "), nil
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func tokenize(sentence string) []string {
	fields := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 { // skip stopword-sized tokens
			words = append(words, f)
		}
	}
	return words
}
