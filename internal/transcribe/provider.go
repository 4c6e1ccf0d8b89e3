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
	"context"
	"fmt"
	"time"

	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
)

// Result is the outcome of one batch transcription
type Result struct {
	Text            string
	Speakers        []events.SpeakerSegment
	DurationSeconds float64
	Confidence      float64
}

// Provider runs batch speech-to-text over a finished recording blob
type Provider interface {
	Transcribe(ctx context.Context, audio []byte) (*Result, error)
}

// Summarizer condenses a completed transcript. An empty summary return is a
// valid vendor response, not an error; callers decide what to do with it.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// StreamingTokenSource mints short-lived tokens for the live ASR socket
type StreamingTokenSource interface {
	StreamingToken(ctx context.Context, ttl time.Duration) (string, error)
}

// NewProvider maps a provider configuration to a transcription implementation.
// Pure mapping from the injected enum; no environment inspection here.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderAssemblyAI:
		return NewAssemblyAIClient(cfg), nil
	case config.ProviderLocal:
		return NewLocalProvider(cfg.BaseURL)
	case config.ProviderOpenAI, config.ProviderAnthropic:
		return nil, fmt.Errorf("provider %q does not offer batch transcription", cfg.Provider)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

// NewStreamingTokenSource maps a provider configuration to a realtime token
// minter. Providers without a realtime endpoint get a source that refuses
// every mint, so the token route reports the mismatch instead of calling a
// vendor the deployment is not configured for.
func NewStreamingTokenSource(cfg config.ProviderConfig) StreamingTokenSource {
	if cfg.Provider == config.ProviderAssemblyAI {
		return NewAssemblyAIClient(cfg)
	}
	return unsupportedTokenSource{provider: cfg.Provider}
}

type unsupportedTokenSource struct {
	provider config.Provider
}

func (u unsupportedTokenSource) StreamingToken(ctx context.Context, ttl time.Duration) (string, error) {
	return "", fmt.Errorf("provider %q does not mint streaming tokens", u.provider)
}

// NewSummarizer maps a provider configuration to a summarization
// implementation
func NewSummarizer(cfg config.ProviderConfig) (Summarizer, error) {
	switch cfg.Provider {
	case config.ProviderAssemblyAI:
		return NewAssemblyAIClient(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAISummarizer(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicSummarizer(cfg), nil
	case config.ProviderLocal:
		return NewLocalSummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider %q", cfg.Provider)
	}
}
