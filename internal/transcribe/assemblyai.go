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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

const (
	defaultPollAttempts = 30
	defaultPollInterval = 1500 * time.Millisecond
)

// AssemblyAIClient implements batch transcription, summarization, and
// streaming token minting against the AssemblyAI REST API.
type AssemblyAIClient struct {
	baseURL      string
	apiKey       string
	pollAttempts int
	pollInterval time.Duration
	httpClient   *http.Client
}

// NewAssemblyAIClient creates a client from provider configuration
func NewAssemblyAIClient(cfg config.ProviderConfig) *AssemblyAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.assemblyai.com/v2"
	}
	attempts := cfg.MaxPollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &AssemblyAIClient{
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		pollAttempts: attempts,
		pollInterval: interval,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type utterance struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"` // milliseconds
	End     float64 `json:"end"`   // milliseconds
	Text    string  `json:"text"`
}

type transcriptResponse struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Text          string      `json:"text"`
	Utterances    []utterance `json:"utterances"`
	AudioDuration float64     `json:"audio_duration"`
	Confidence    float64     `json:"confidence"`
	Error         string      `json:"error"`
}

// Transcribe uploads the blob, creates a speaker-labeled transcript job, and
// polls until the job is terminal or the attempt budget runs out. Exhausting
// the budget is a failure even if the vendor would eventually finish.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, audio []byte) (*Result, error) {
	audioURL, err := c.upload(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	jobID, err := c.createTranscript(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("transcript creation failed: %w", err)
	}

	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		tr, err := c.getTranscript(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("transcript poll failed: %w", err)
		}

		switch tr.Status {
		case "completed":
			return resultFromTranscript(tr), nil
		case "error":
			return nil, fmt.Errorf("transcription failed: %s", tr.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return nil, fmt.Errorf("transcription timed out after %d poll attempts", c.pollAttempts)
}

// resultFromTranscript converts the vendor payload, including the
// millisecond-to-second conversion on utterance boundaries.
func resultFromTranscript(tr *transcriptResponse) *Result {
	speakers := make([]events.SpeakerSegment, 0, len(tr.Utterances))
	for _, u := range tr.Utterances {
		speakers = append(speakers, events.SpeakerSegment{
			Speaker: u.Speaker,
			Start:   u.Start / 1000,
			End:     u.End / 1000,
			Text:    u.Text,
		})
	}

	return &Result{
		Text:            tr.Text,
		Speakers:        speakers,
		DurationSeconds: tr.AudioDuration,
		Confidence:      tr.Confidence,
	}
}

func (c *AssemblyAIClient) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}

	logging.LogJob("assemblyai_upload", "", zap.Int("bytes", len(audio)))
	return resp.UploadURL, nil
}

func (c *AssemblyAIClient) createTranscript(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{
		AudioURL:      audioURL,
		SpeakerLabels: true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp transcriptResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("transcript response missing id")
	}
	return resp.ID, nil
}

func (c *AssemblyAIClient) getTranscript(ctx context.Context, id string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	var resp transcriptResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type lemurRequest struct {
	InputText string `json:"input_text"`
}

type lemurResponse struct {
	Response string `json:"response"`
}

// Summarize condenses a transcript via the LeMUR summary endpoint. The vendor
// may legitimately return an empty summary; that is passed through untouched.
func (c *AssemblyAIClient) Summarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(lemurRequest{InputText: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lemur/v3/generate/summary", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp lemurResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}

	return resp.Response, nil
}

type realtimeTokenRequest struct {
	ExpiresIn int `json:"expires_in"`
}

type realtimeTokenResponse struct {
	Token string `json:"token"`
}

// StreamingToken mints a short-lived realtime socket token. The TTL is capped
// upstream; no retry here, the caller surfaces a failure directly.
func (c *AssemblyAIClient) StreamingToken(ctx context.Context, ttl time.Duration) (string, error) {
	body, err := json.Marshal(realtimeTokenRequest{ExpiresIn: int(ttl.Seconds())})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/realtime/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp realtimeTokenResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("streaming token request failed: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("token response missing token")
	}

	return resp.Token, nil
}

// do executes a request and decodes the JSON response, treating any non-2xx
// status as an error.
func (c *AssemblyAIClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
