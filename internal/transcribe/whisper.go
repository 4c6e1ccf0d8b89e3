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

//go:build whisper

package transcribe

import (
	"fmt"
	"os"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperEngine wraps a loaded whisper model
type whisperEngine struct {
	model     whisper.Model
	modelPath string
}

// newWhisperEngine loads the model from disk
func newWhisperEngine(modelPath string) (*whisperEngine, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found at %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	return &whisperEngine{
		model:     model,
		modelPath: modelPath,
	}, nil
}

// transcribe runs the model over 16kHz mono samples
func (e *whisperEngine) transcribe(samples []float32) (string, error) {
	if e.model == nil {
		return "", fmt.Errorf("whisper model not initialized")
	}

	ctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to process audio: %w", err)
	}

	var transcript strings.Builder
	for {
		segment, err := ctx.NextSegment()
		if err != nil {
			break
		}
		transcript.WriteString(segment.Text)
	}

	return strings.TrimSpace(transcript.String()), nil
}

// close releases the model
func (e *whisperEngine) close() error {
	if e.model != nil {
		e.model.Close()
	}
	return nil
}
