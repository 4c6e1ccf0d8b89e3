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

package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/akshaymugale01/audio-transcripter/internal/events"
)

// ErrSessionNotFound is returned when no session matches the lookup key
var ErrSessionNotFound = fmt.Errorf("transcription session not found")

// TranscriptionStore handles database operations for transcription sessions
type TranscriptionStore struct {
	db *Database
}

// NewTranscriptionStore creates a new transcription session store
func NewTranscriptionStore(db *Database) *TranscriptionStore {
	return &TranscriptionStore{db: db}
}

// Insert stores a new transcription session and fills in its row ID
func (s *TranscriptionStore) Insert(session *events.TranscriptionSession) error {
	if err := session.IsValid(); err != nil {
		return fmt.Errorf("invalid transcription session: %w", err)
	}

	speakersJSON, err := session.SpeakersJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize speakers: %w", err)
	}

	metadataJSON, err := session.MetadataJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	query := `
		INSERT INTO transcription_sessions (
			session_token, status, raw_text, speaker_data,
			summary, duration_seconds, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.DB().Exec(query,
		session.SessionToken, session.Status, session.RawText, speakersJSON,
		session.Summary, session.DurationSeconds, metadataJSON,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcription session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted session id: %w", err)
	}
	session.ID = id

	log.Printf("📝 Stored transcription session: %s (id: %d)", session.SessionToken, id)
	return nil
}

// GetByID retrieves a session by its row ID
func (s *TranscriptionStore) GetByID(id int64) (*events.TranscriptionSession, error) {
	row := s.db.DB().QueryRow(selectColumns+" WHERE id = ?", id)
	return s.scanSession(row)
}

// GetByToken retrieves a session by its opaque session token
func (s *TranscriptionStore) GetByToken(token string) (*events.TranscriptionSession, error) {
	row := s.db.DB().QueryRow(selectColumns+" WHERE session_token = ?", token)
	return s.scanSession(row)
}

// MarkCompleted records the batch transcription result for a processing session
func (s *TranscriptionStore) MarkCompleted(id int64, rawText string, speakers []events.SpeakerSegment, duration float64) error {
	session := events.TranscriptionSession{Speakers: speakers}
	speakersJSON, err := session.SpeakersJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize speakers: %w", err)
	}

	query := `
		UPDATE transcription_sessions
		SET status = ?, raw_text = ?, speaker_data = ?, duration_seconds = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.DB().Exec(query,
		events.StatusCompleted, rawText, speakersJSON, duration, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark session completed: %w", err)
	}

	return requireRow(result, id)
}

// MarkFailed moves a session into the terminal failed state
func (s *TranscriptionStore) MarkFailed(id int64) error {
	query := `UPDATE transcription_sessions SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.DB().Exec(query, events.StatusFailed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}

	return requireRow(result, id)
}

// ClaimSummary stores the summary iff the session is still eligible: completed,
// raw text present, no summary stored. The compare-and-set closes the window in
// which two concurrent summary jobs could both pass the eligibility check.
// Returns false when another writer already claimed it or the session is not
// eligible.
func (s *TranscriptionStore) ClaimSummary(id int64, summary string) (bool, error) {
	query := `
		UPDATE transcription_sessions
		SET summary = ?, updated_at = ?
		WHERE id = ? AND status = ? AND TRIM(raw_text) != '' AND TRIM(summary) = ''`

	result, err := s.db.DB().Exec(query, summary, time.Now().UTC(), id, events.StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to claim summary: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	Status    string
	StartTime *time.Time
	EndTime   *time.Time

	Limit  int
	Offset int

	SortOrder string // "ASC", "DESC"
}

// List retrieves sessions with pagination and filtering, newest first by default
func (s *TranscriptionStore) List(options ListOptions) ([]*events.TranscriptionSession, error) {
	query, args := s.buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcription sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*events.TranscriptionSession
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcription session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcription sessions: %w", err)
	}

	return sessions, nil
}

// Count returns the total number of sessions matching the filter
func (s *TranscriptionStore) Count(options ListOptions) (int64, error) {
	options.Limit = 0
	options.Offset = 0
	query, args := s.buildListQuery(options)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") as filtered"

	var count int64
	err := s.db.DB().QueryRow(countQuery, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transcription sessions: %w", err)
	}

	return count, nil
}

const selectColumns = `
	SELECT id, session_token, status, raw_text, speaker_data,
		   summary, duration_seconds, metadata, created_at, updated_at
	FROM transcription_sessions`

// buildListQuery constructs the SQL query based on ListOptions
func (s *TranscriptionStore) buildListQuery(options ListOptions) (string, []interface{}) {
	query := selectColumns + " WHERE 1=1"

	var args []interface{}

	if options.Status != "" {
		query += " AND status = ?"
		args = append(args, options.Status)
	}

	if options.StartTime != nil {
		query += " AND created_at >= ?"
		args = append(args, options.StartTime)
	}

	if options.EndTime != nil {
		query += " AND created_at <= ?"
		args = append(args, options.EndTime)
	}

	sortOrder := options.SortOrder
	if sortOrder != "ASC" {
		sortOrder = "DESC"
	}
	query += " ORDER BY created_at " + sortOrder

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

// scanSession scans a database row into a TranscriptionSession struct
func (s *TranscriptionStore) scanSession(scanner interface{}) (*events.TranscriptionSession, error) {
	var session events.TranscriptionSession
	var speakersJSON, metadataJSON string

	var row interface {
		Scan(dest ...interface{}) error
	}

	switch v := scanner.(type) {
	case *sql.Row:
		row = v
	case *sql.Rows:
		row = v
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}

	err := row.Scan(
		&session.ID, &session.SessionToken, &session.Status,
		&session.RawText, &speakersJSON,
		&session.Summary, &session.DurationSeconds, &metadataJSON,
		&session.CreatedAt, &session.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if err := session.SetSpeakersFromJSON(speakersJSON); err != nil {
		return nil, fmt.Errorf("failed to parse speaker JSON: %w", err)
	}

	if err := session.SetMetadataFromJSON(metadataJSON); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}

	return &session, nil
}

// requireRow converts a zero-rows-affected update into a not-found error
func requireRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrSessionNotFound, id)
	}

	return nil
}
