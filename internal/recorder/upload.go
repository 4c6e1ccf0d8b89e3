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
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

// audioBlobField is the multipart form field name the hub expects
const audioBlobField = "audio_blob"

// Uploader submits a finalized recording to the hub for batch transcription
type Uploader struct {
	baseURL    string
	httpClient *http.Client
}

// NewUploader creates an uploader targeting the hub base URL
func NewUploader(baseURL string) *Uploader {
	return &Uploader{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Upload posts the recording as multipart form data to the session's
// recording endpoint. The hub responds 202 and processes asynchronously;
// a non-2xx status is an upload failure, not a processing result.
func (u *Uploader) Upload(ctx context.Context, sessionToken string, rec *Recording) error {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	blobWriter, err := writer.CreateFormFile(audioBlobField, "recording"+rec.FileExtension)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := blobWriter.Write(rec.Blob); err != nil {
		return fmt.Errorf("failed to write audio blob: %w", err)
	}

	_ = writer.WriteField("mime_type", rec.MimeType)

	contentType := writer.FormDataContentType()
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/api/sessions/%s/recording", u.baseURL, sessionToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &requestBody)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recording upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("recording upload rejected with status %d: %s", resp.StatusCode, body)
	}

	logging.LogCapture("recorder", "uploaded",
		zap.String("session_token", sessionToken),
		zap.Int("bytes", len(rec.Blob)),
		zap.Int("status", resp.StatusCode))

	return nil
}
