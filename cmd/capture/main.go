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

// The capture client runs the live side of a session: microphone frames go to
// the remote ASR socket for instant text while the same audio accumulates in
// the recorder for the accurate batch pass, uploaded to the hub on stop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akshaymugale01/audio-transcripter/internal/audio"
	"github.com/akshaymugale01/audio-transcripter/internal/config"
	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/recorder"
	"github.com/akshaymugale01/audio-transcripter/internal/streaming"
)

// hubTokens mints streaming tokens through the hub so the provider API key
// never reaches this process
type hubTokens struct {
	baseURL    string
	httpClient *http.Client
}

func (h hubTokens) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api/streaming-token", nil)
	if err != nil {
		return "", err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request rejected with status %d", resp.StatusCode)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return parsed.Token, nil
}

// createSession registers a new session with the hub and returns its token
func createSession(hubURL string, client *http.Client) (string, error) {
	resp, err := client.Post(hubURL+"/api/sessions", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("session creation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("session creation rejected with status %d", resp.StatusCode)
	}

	var session events.TranscriptionSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to decode session: %w", err)
	}
	return session.SessionToken, nil
}

func main() {
	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	hubURL := getEnv("HUB_URL", "http://localhost:8080")
	micRate := getEnvInt("MIC_SAMPLE_RATE", 48000)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	sessionToken, err := createSession(hubURL, httpClient)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	logging.Sugar.Infow("🎤 Session started", "session_token", sessionToken)

	// Live path: fixed-size frames, resampled and PCM-encoded
	pipeline := audio.NewPipeline(cfg.Streaming.FrameSize, cfg.Streaming.TargetSampleRate)

	backend, err := audio.SelectBackend(pipeline, micRate, stdinSource{rate: micRate})
	if err != nil {
		log.Fatalf("No capture backend available: %v", err)
	}

	// Batch path: same audio, accumulated for the accurate upload
	codecs := recorder.NewRegistry()
	rec, err := recorder.NewRecorder(codecs.Select(recorder.PreferredMimeTypes), cfg.Streaming.TargetSampleRate)
	if err != nil {
		log.Fatalf("Failed to create recorder: %v", err)
	}
	rec.SetReleaseFunc(func() {
		if err := backend.Stop(); err != nil {
			logging.LogError(err, "Failed to release capture backend")
		}
	})

	// Optional viewer bridge so other watchers of the session see live text
	viewer := dialViewer(hubURL, sessionToken)

	client := streaming.NewClient(
		cfg.Streaming.ASRSocketURL,
		sessionToken,
		hubTokens{baseURL: hubURL, httpClient: httpClient},
		streaming.ReconnectPolicy{Delay: cfg.Streaming.ReconnectDelay, MaxAttempts: 1},
		nil,
		func(e streaming.Event) { handleEvent(e, viewer) },
	)

	if err := client.Connect(context.Background()); err != nil {
		logging.LogError(err, "Live transcription unavailable, recording continues")
	}

	if err := backend.Start(); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for segment := range pipeline.Segments() {
			rec.Write(segment.PCM)
			if err := client.Send(segment.Bytes()); err != nil {
				logging.LogError(err, "Frame send failed")
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Teardown order matters: finalize the recording first (which releases
	// the backend), then the live socket, then the frame pump.
	recording, err := rec.Stop()
	if err != nil {
		logging.LogError(err, "Failed to finalize recording")
	}

	if err := client.Stop(); err != nil {
		logging.LogError(err, "Failed to close live socket")
	}
	if viewer != nil {
		viewer.Close()
	}

	pipeline.Close()
	<-done

	if recording != nil {
		uploader := recorder.NewUploader(hubURL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := uploader.Upload(ctx, sessionToken, recording); err != nil {
			logging.LogError(err, "Recording upload failed")
			os.Exit(1)
		}
		logging.Sugar.Infow("✅ Recording uploaded",
			"session_token", sessionToken,
			"duration_seconds", recording.DurationSeconds)
	}
}

// handleEvent prints live transcript text and relays partials to the hub's
// viewers
func handleEvent(e streaming.Event, viewer *websocket.Conn) {
	switch e.Kind {
	case streaming.KindPartialTranscript, streaming.KindTranscript:
		fmt.Printf("\r%s", e.Text)
		relayPartial(viewer, e.Text)
	case streaming.KindFinalTranscript:
		fmt.Printf("\r%s\n", e.Text)
		relayPartial(viewer, e.Text)
	case streaming.KindSessionBegins:
		logging.Sugar.Infow("🔊 Live transcription ready", "remote_session", e.SessionID)
	case streaming.KindError:
		logging.Sugar.Warnw("⚠️  Live transcription error", "error", e.ErrorText)
	}
}

func dialViewer(hubURL, sessionToken string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(hubURL, "http") + "/ws/sessions/" + sessionToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logging.Sugar.Warnw("Viewer bridge unavailable", "error", err.Error())
		return nil
	}
	return conn
}

func relayPartial(viewer *websocket.Conn, text string) {
	if viewer == nil || strings.TrimSpace(text) == "" {
		return
	}
	data, err := events.NewPartialTranscription(text).Marshal()
	if err != nil {
		return
	}
	if err := viewer.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.LogWarn("Viewer relay write failed")
	}
}

// stdinSource feeds raw little-endian int16 PCM from stdin when no audio
// device is available
type stdinSource struct {
	rate int
}

func (s stdinSource) ReadSamples(buf []float32) (int, error) {
	raw := make([]byte, len(buf)*2)
	n, err := os.Stdin.Read(raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8)
		buf[i] = float32(v) / 32768
	}
	return samples, err
}

func (s stdinSource) SampleRate() int { return s.rate }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
