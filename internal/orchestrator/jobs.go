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

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/storage"
	"github.com/akshaymugale01/audio-transcripter/internal/transcribe"
)

// Broadcaster publishes events to a session's broadcast topic
type Broadcaster interface {
	Publish(sessionToken string, event *events.BroadcastEvent) error
}

// Orchestrator drives the server-side lifecycle of a session: batch
// transcription on upload, then summarization once the transcript lands.
type Orchestrator struct {
	store       *storage.TranscriptionStore
	provider    transcribe.Provider
	summarizer  transcribe.Summarizer
	broadcaster Broadcaster
	pool        *Pool
}

// New creates an orchestrator over the given collaborators
func New(store *storage.TranscriptionStore, provider transcribe.Provider, summarizer transcribe.Summarizer, broadcaster Broadcaster, pool *Pool) *Orchestrator {
	return &Orchestrator{
		store:       store,
		provider:    provider,
		summarizer:  summarizer,
		broadcaster: broadcaster,
		pool:        pool,
	}
}

// Start launches the underlying worker pool
func (o *Orchestrator) Start() { o.pool.Start() }

// Stop shuts the worker pool down
func (o *Orchestrator) Stop() { o.pool.Stop() }

// EnqueueRecording schedules batch transcription of an uploaded blob
func (o *Orchestrator) EnqueueRecording(sessionToken string, blob []byte) error {
	return o.pool.Enqueue(&processRecordingJob{o: o, sessionToken: sessionToken, blob: blob})
}

// EnqueueSummary schedules summary generation for a session
func (o *Orchestrator) EnqueueSummary(sessionToken string) error {
	return o.pool.Enqueue(&generateSummaryJob{o: o, sessionToken: sessionToken})
}

// broadcast publishes best-effort; a broadcast failure never changes the
// session outcome.
func (o *Orchestrator) broadcast(sessionToken string, event *events.BroadcastEvent) {
	if err := o.broadcaster.Publish(sessionToken, event); err != nil {
		logging.LogError(err, "Broadcast failed",
			zap.String("session_token", sessionToken),
			zap.String("event_type", string(event.Type)))
	}
}

// processRecordingJob runs the batch transcription for one uploaded recording
type processRecordingJob struct {
	o            *Orchestrator
	sessionToken string
	blob         []byte
}

func (j *processRecordingJob) ID() string {
	return "process_recording:" + j.sessionToken
}

// Execute transcribes the blob and moves the session to completed or failed.
// Success triggers the summary job; an empty transcript completes without one.
func (j *processRecordingJob) Execute(ctx context.Context) (err error) {
	o := j.o

	session, err := o.store.GetByToken(j.sessionToken)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	// A panic below must still leave the session in a terminal state with
	// viewers told, same as an ordinary provider error.
	defer func() {
		if r := recover(); r != nil {
			if markErr := o.store.MarkFailed(session.ID); markErr != nil {
				logging.LogError(markErr, "Failed to mark session failed",
					zap.String("session_token", j.sessionToken))
			}
			o.broadcast(j.sessionToken, events.NewErrorEvent("transcription failed"))
			err = fmt.Errorf("transcription panicked: %v", r)
		}
	}()

	logging.LogJob("process_recording", j.sessionToken,
		zap.Int("blob_bytes", len(j.blob)))

	result, err := o.provider.Transcribe(ctx, j.blob)
	if err != nil {
		if markErr := o.store.MarkFailed(session.ID); markErr != nil {
			logging.LogError(markErr, "Failed to mark session failed",
				zap.String("session_token", j.sessionToken))
		}
		o.broadcast(j.sessionToken, events.NewErrorEvent("transcription failed"))
		return fmt.Errorf("transcription failed: %w", err)
	}

	if err := o.store.MarkCompleted(session.ID, result.Text, result.Speakers, result.DurationSeconds); err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	o.broadcast(j.sessionToken, events.NewTranscriptionComplete(result.Text, result.Speakers))

	if strings.TrimSpace(result.Text) == "" {
		logging.LogJob("process_recording", j.sessionToken,
			zap.String("outcome", "empty transcript, no summary"))
		return nil
	}

	if err := o.EnqueueSummary(j.sessionToken); err != nil {
		logging.LogError(err, "Failed to enqueue summary job",
			zap.String("session_token", j.sessionToken))
	}
	return nil
}

// generateSummaryJob condenses a completed transcript. Summary failure is
// soft: the session keeps its transcript and stays completed.
type generateSummaryJob struct {
	o            *Orchestrator
	sessionToken string
}

func (j *generateSummaryJob) ID() string {
	return "generate_summary:" + j.sessionToken
}

func (j *generateSummaryJob) Execute(ctx context.Context) (err error) {
	o := j.o

	session, err := o.store.GetByToken(j.sessionToken)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	// Summary failure stays soft even when it is a panic: the session keeps
	// its transcript and completed status.
	defer func() {
		if r := recover(); r != nil {
			o.broadcast(j.sessionToken, events.NewErrorEvent("summary generation failed"))
			err = fmt.Errorf("summarization panicked: %v", r)
		}
	}()

	if !session.ReadyForSummary() {
		logging.LogJob("generate_summary", j.sessionToken,
			zap.String("outcome", "not eligible, skipping"))
		return nil
	}

	summary, err := o.summarizer.Summarize(ctx, session.RawText)
	if err != nil {
		o.broadcast(j.sessionToken, events.NewErrorEvent("summary generation failed"))
		return fmt.Errorf("summarization failed: %w", err)
	}

	if strings.TrimSpace(summary) == "" {
		// Vendor answered with nothing usable. Leave the session
		// completed and tell viewers the summary is not coming.
		o.broadcast(j.sessionToken, events.NewErrorEvent("summary generation failed"))
		logging.LogJob("generate_summary", j.sessionToken,
			zap.String("outcome", "empty summary"))
		return nil
	}

	claimed, err := o.store.ClaimSummary(session.ID, summary)
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	if !claimed {
		logging.LogJob("generate_summary", j.sessionToken,
			zap.String("outcome", "already claimed"))
		return nil
	}

	o.broadcast(j.sessionToken, events.NewSummaryComplete(summary))
	return nil
}
