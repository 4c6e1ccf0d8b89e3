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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize()
	m.Run()
}

type fakeEncoder struct {
	mime string
	got  []int16
	rate int
}

func (f *fakeEncoder) MimeType() string      { return f.mime }
func (f *fakeEncoder) FileExtension() string { return ".bin" }
func (f *fakeEncoder) Encode(pcm []int16, sampleRate int) ([]byte, error) {
	f.got = append([]int16(nil), pcm...)
	f.rate = sampleRate
	return []byte{0xAB}, nil
}

func TestRegistrySelectFollowsPreferenceOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeEncoder{mime: "audio/ogg"})
	reg.Register(&fakeEncoder{mime: "audio/webm"})

	// First preference absent, second present
	got := reg.Select(PreferredMimeTypes)
	if got.MimeType() != "audio/webm" {
		t.Errorf("selected %s, want audio/webm", got.MimeType())
	}
}

func TestRegistrySelectFallsBackToWAV(t *testing.T) {
	reg := NewRegistry()

	got := reg.Select(PreferredMimeTypes)
	if got.MimeType() != "audio/wav" {
		t.Errorf("selected %s, want audio/wav fallback", got.MimeType())
	}
}

func TestRecorderCutsOneSecondSlices(t *testing.T) {
	enc := &fakeEncoder{mime: "audio/test"}
	r, err := NewRecorder(enc, 100) // 100 samples per slice
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	r.Write(make([]int16, 250))
	if got := r.SliceCount(); got != 2 {
		t.Errorf("slices after 250 samples = %d, want 2", got)
	}

	r.Write(make([]int16, 60))
	if got := r.SliceCount(); got != 3 {
		t.Errorf("slices after 310 samples = %d, want 3", got)
	}
}

func TestRecorderStopConcatenatesEverything(t *testing.T) {
	enc := &fakeEncoder{mime: "audio/test"}
	r, err := NewRecorder(enc, 4)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	in := []int16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	r.Write(in[:3])
	r.Write(in[3:7])
	r.Write(in[7:])

	rec, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(enc.got) != len(in) {
		t.Fatalf("encoded %d samples, want %d", len(enc.got), len(in))
	}
	for i := range in {
		if enc.got[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, enc.got[i], in[i])
		}
	}
	if rec.DurationSeconds != 2.5 {
		t.Errorf("duration = %v, want 2.5", rec.DurationSeconds)
	}
	if rec.MimeType != "audio/test" {
		t.Errorf("mime = %s, want audio/test", rec.MimeType)
	}
}

func TestRecorderReleasesSourceAfterFinalize(t *testing.T) {
	enc := &fakeEncoder{mime: "audio/test"}
	r, err := NewRecorder(enc, 4)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	released := false
	r.SetReleaseFunc(func() {
		released = true
		// The blob must already be encoded when the source is let go
		if enc.got == nil {
			t.Error("release fired before the recording was finalized")
		}
	})

	r.Write([]int16{1, 2, 3})
	if released {
		t.Fatal("release fired before Stop")
	}

	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !released {
		t.Error("release never fired")
	}
}

func TestRecorderRejectsDoubleStopAndLateWrites(t *testing.T) {
	enc := &fakeEncoder{mime: "audio/test"}
	r, err := NewRecorder(enc, 4)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	r.Write([]int16{1, 2})
	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if _, err := r.Stop(); err == nil {
		t.Error("second Stop should fail")
	}

	r.Write([]int16{9, 9, 9, 9, 9})
	if got := r.SliceCount(); got != 0 {
		t.Errorf("late write produced %d slices, want 0", got)
	}
}

func TestWAVEncoderProducesValidHeader(t *testing.T) {
	blob, err := WAVEncoder{}.Encode([]int16{0, 100, -100, 32767}, 16000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if len(blob) < 44 {
		t.Fatalf("blob too short for a wav header: %d bytes", len(blob))
	}
	if string(blob[0:4]) != "RIFF" || string(blob[8:12]) != "WAVE" {
		t.Errorf("missing RIFF/WAVE magic: % x", blob[:12])
	}
}

func TestUploaderPostsMultipartBlob(t *testing.T) {
	var gotPath, gotField, gotMime string
	var gotBlob []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile(audioBlobField)
		if err != nil {
			t.Errorf("missing %s field: %v", audioBlobField, err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer file.Close()

		gotField = header.Filename
		gotBlob, _ = io.ReadAll(file)
		gotMime = r.FormValue("mime_type")

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	rec := &Recording{
		Blob:          []byte{1, 2, 3},
		MimeType:      "audio/wav",
		FileExtension: ".wav",
	}

	u := NewUploader(server.URL)
	if err := u.Upload(context.Background(), "tok-99", rec); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if gotPath != "/api/sessions/tok-99/recording" {
		t.Errorf("path = %s", gotPath)
	}
	if gotField != "recording.wav" {
		t.Errorf("filename = %s, want recording.wav", gotField)
	}
	if len(gotBlob) != 3 {
		t.Errorf("blob = % x, want 3 bytes", gotBlob)
	}
	if gotMime != "audio/wav" {
		t.Errorf("mime_type field = %s, want audio/wav", gotMime)
	}
}

func TestUploaderReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer server.Close()

	u := NewUploader(server.URL)
	err := u.Upload(context.Background(), "missing", &Recording{Blob: []byte{1}, FileExtension: ".wav"})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}
