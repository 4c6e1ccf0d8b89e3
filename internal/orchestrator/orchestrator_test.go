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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akshaymugale01/audio-transcripter/internal/events"
	"github.com/akshaymugale01/audio-transcripter/internal/logging"
	"github.com/akshaymugale01/audio-transcripter/internal/storage"
	"github.com/akshaymugale01/audio-transcripter/internal/transcribe"
)

func TestMain(m *testing.M) {
	logging.Initialize()
	m.Run()
}

type fakeProvider struct {
	result *transcribe.Result
	err    error
}

func (f *fakeProvider) Transcribe(ctx context.Context, audio []byte) (*transcribe.Result, error) {
	return f.result, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.summary, f.err
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []*events.BroadcastEvent
}

func (f *fakeBroadcaster) Publish(token string, event *events.BroadcastEvent) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	return nil
}

func (f *fakeBroadcaster) byType(t events.EventType) []*events.BroadcastEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*events.BroadcastEvent
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestStore(t *testing.T) *storage.TranscriptionStore {
	t.Helper()
	db, err := storage.NewDatabase(storage.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewTranscriptionStore(db)
}

func newTestOrchestrator(t *testing.T, provider transcribe.Provider, summarizer transcribe.Summarizer) (*Orchestrator, *storage.TranscriptionStore, *fakeBroadcaster) {
	store := newTestStore(t)
	broadcaster := &fakeBroadcaster{}
	o := New(store, provider, summarizer, broadcaster, NewPool(1, 8))
	return o, store, broadcaster
}

func insertSession(t *testing.T, store *storage.TranscriptionStore) *events.TranscriptionSession {
	t.Helper()
	session := events.NewTranscriptionSession()
	if err := store.Insert(session); err != nil {
		t.Fatalf("failed to insert session: %v", err)
	}
	return session
}

func TestProcessRecordingSuccess(t *testing.T) {
	provider := &fakeProvider{result: &transcribe.Result{
		Text: "the full transcript",
		Speakers: []events.SpeakerSegment{
			{Speaker: "A", Start: 0, End: 3.5, Text: "the full transcript"},
		},
		DurationSeconds: 3.5,
	}}
	summarizer := &fakeSummarizer{summary: "a summary"}
	o, store, broadcaster := newTestOrchestrator(t, provider, summarizer)
	o.Start()
	defer o.Stop()

	session := insertSession(t, store)

	job := &processRecordingJob{o: o, sessionToken: session.SessionToken, blob: []byte{1, 2}}
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got, err := store.GetByID(session.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != events.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.RawText != "the full transcript" {
		t.Errorf("raw text = %q", got.RawText)
	}
	if got.DurationSeconds != 3.5 {
		t.Errorf("duration = %v", got.DurationSeconds)
	}
	if len(got.Speakers) != 1 || got.Speakers[0].Speaker != "A" {
		t.Errorf("speakers = %+v", got.Speakers)
	}

	if n := len(broadcaster.byType(events.EventTranscriptionComplete)); n != 1 {
		t.Errorf("transcription_complete events = %d, want 1", n)
	}

	// The summary job was enqueued on the pool; wait for it to land
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, _ = store.GetByID(session.ID)
		if got.Summary != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got.Summary != "a summary" {
		t.Errorf("summary = %q, want a summary", got.Summary)
	}
}

func TestProcessRecordingProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("vendor down")}
	o, store, broadcaster := newTestOrchestrator(t, provider, &fakeSummarizer{})

	session := insertSession(t, store)

	job := &processRecordingJob{o: o, sessionToken: session.SessionToken, blob: []byte{1}}
	if err := job.Execute(context.Background()); err == nil {
		t.Fatal("expected error from failed transcription")
	}

	got, err := store.GetByID(session.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != events.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if n := len(broadcaster.byType(events.EventError)); n != 1 {
		t.Errorf("error events = %d, want 1", n)
	}
}

func TestProcessRecordingEmptyTranscriptSkipsSummary(t *testing.T) {
	provider := &fakeProvider{result: &transcribe.Result{Text: "   "}}
	summarizer := &fakeSummarizer{summary: "should never appear"}
	o, store, broadcaster := newTestOrchestrator(t, provider, summarizer)
	o.Start()
	defer o.Stop()

	session := insertSession(t, store)

	job := &processRecordingJob{o: o, sessionToken: session.SessionToken, blob: []byte{1}}
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got, _ := store.GetByID(session.ID)
	if got.Status != events.StatusCompleted {
		t.Errorf("status = %s, want completed (empty transcript is not a failure)", got.Status)
	}

	time.Sleep(50 * time.Millisecond)
	if summarizer.calls != 0 {
		t.Errorf("summarizer called %d times for empty transcript", summarizer.calls)
	}
	if n := len(broadcaster.byType(events.EventSummaryComplete)); n != 0 {
		t.Errorf("summary_complete events = %d, want 0", n)
	}
}

func TestGenerateSummaryEmptyIsSoftFailure(t *testing.T) {
	summarizer := &fakeSummarizer{summary: "  "}
	o, store, broadcaster := newTestOrchestrator(t, &fakeProvider{}, summarizer)

	session := insertSession(t, store)
	if err := store.MarkCompleted(session.ID, "transcript text", nil, 1); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	job := &generateSummaryJob{o: o, sessionToken: session.SessionToken}
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned hard error for empty summary: %v", err)
	}

	got, _ := store.GetByID(session.ID)
	if got.Status != events.StatusCompleted {
		t.Errorf("status = %s, want completed (soft failure)", got.Status)
	}
	if got.Summary != "" {
		t.Errorf("summary = %q, want empty", got.Summary)
	}
	if n := len(broadcaster.byType(events.EventError)); n != 1 {
		t.Errorf("error events = %d, want 1", n)
	}
}

func TestGenerateSummarySkipsIneligibleSession(t *testing.T) {
	summarizer := &fakeSummarizer{summary: "anything"}
	o, store, _ := newTestOrchestrator(t, &fakeProvider{}, summarizer)

	// Still processing, not eligible
	session := insertSession(t, store)

	job := &generateSummaryJob{o: o, sessionToken: session.SessionToken}
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer called for ineligible session")
	}
}

func TestGenerateSummaryDoubleRunStoresOnce(t *testing.T) {
	summarizer := &fakeSummarizer{summary: "the one summary"}
	o, store, broadcaster := newTestOrchestrator(t, &fakeProvider{}, summarizer)

	session := insertSession(t, store)
	if err := store.MarkCompleted(session.ID, "transcript", nil, 1); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	first := &generateSummaryJob{o: o, sessionToken: session.SessionToken}
	second := &generateSummaryJob{o: o, sessionToken: session.SessionToken}
	if err := first.Execute(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := second.Execute(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	got, _ := store.GetByID(session.ID)
	if got.Summary != "the one summary" {
		t.Errorf("summary = %q", got.Summary)
	}
	if n := len(broadcaster.byType(events.EventSummaryComplete)); n != 1 {
		t.Errorf("summary_complete events = %d, want exactly 1", n)
	}
}

func TestClaimSummaryRace(t *testing.T) {
	store := newTestStore(t)
	session := insertSession(t, store)
	if err := store.MarkCompleted(session.ID, "transcript", nil, 1); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	// Both writers passed the eligibility check; only one may win the claim
	first, err := store.ClaimSummary(session.ID, "summary A")
	if err != nil {
		t.Fatalf("first claim errored: %v", err)
	}
	second, err := store.ClaimSummary(session.ID, "summary B")
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}

	if !first || second {
		t.Errorf("claims = (%v, %v), want (true, false)", first, second)
	}

	got, _ := store.GetByID(session.ID)
	if got.Summary != "summary A" {
		t.Errorf("summary = %q, want summary A", got.Summary)
	}
}

type panickingProvider struct{}

func (panickingProvider) Transcribe(ctx context.Context, audio []byte) (*transcribe.Result, error) {
	panic("vendor client blew up")
}

func TestProcessRecordingPanicMarksSessionFailed(t *testing.T) {
	o, store, broadcaster := newTestOrchestrator(t, panickingProvider{}, &fakeSummarizer{})
	o.Start()
	defer o.Stop()

	session := insertSession(t, store)

	if err := o.EnqueueRecording(session.SessionToken, []byte{1}); err != nil {
		t.Fatalf("EnqueueRecording failed: %v", err)
	}

	var got *events.TranscriptionSession
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, _ = store.GetByID(session.ID)
		if got.Status == events.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got.Status != events.StatusFailed {
		t.Fatalf("status = %s, want failed after provider panic", got.Status)
	}
	if n := len(broadcaster.byType(events.EventError)); n != 1 {
		t.Errorf("error events = %d, want 1", n)
	}
}

type panickingSummarizer struct{}

func (panickingSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	panic("summarizer blew up")
}

func TestGenerateSummaryPanicIsSoftFailure(t *testing.T) {
	o, store, broadcaster := newTestOrchestrator(t, &fakeProvider{}, panickingSummarizer{})

	session := insertSession(t, store)
	if err := store.MarkCompleted(session.ID, "transcript", nil, 1); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	job := &generateSummaryJob{o: o, sessionToken: session.SessionToken}
	if err := job.Execute(context.Background()); err == nil {
		t.Fatal("expected error from panicking summarizer")
	}

	got, _ := store.GetByID(session.ID)
	if got.Status != events.StatusCompleted {
		t.Errorf("status = %s, want completed (summary failure is soft)", got.Status)
	}
	if n := len(broadcaster.byType(events.EventError)); n != 1 {
		t.Errorf("error events = %d, want 1", n)
	}
}

type panicJob struct{ ran chan struct{} }

func (p *panicJob) ID() string { return "panic_job" }
func (p *panicJob) Execute(ctx context.Context) error {
	close(p.ran)
	panic("boom")
}

type okJob struct{ ran chan struct{} }

func (j *okJob) ID() string { return "ok_job" }
func (j *okJob) Execute(ctx context.Context) error {
	close(j.ran)
	return nil
}

func TestPoolContainsPanicAtJobBoundary(t *testing.T) {
	pool := NewPool(1, 8)
	pool.Start()
	defer pool.Stop()

	bad := &panicJob{ran: make(chan struct{})}
	good := &okJob{ran: make(chan struct{})}

	if err := pool.Enqueue(bad); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := pool.Enqueue(good); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case <-good.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not survive the panicking job")
	}
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1) // never started, nothing drains the queue

	if err := pool.Enqueue(&okJob{ran: make(chan struct{})}); err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}
	if err := pool.Enqueue(&okJob{ran: make(chan struct{})}); err == nil {
		t.Fatal("expected rejection when queue is full")
	}
}
