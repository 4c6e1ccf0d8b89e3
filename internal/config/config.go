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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider identifies an external transcription/summarization vendor.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderAssemblyAI Provider = "assemblyai"
	ProviderLocal      Provider = "local"
)

// Config holds all configuration for the hub
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	NATS          NATSConfig
	Transcription ProviderConfig
	Summarization ProviderConfig
	Streaming     StreamingConfig
	Ingest        IngestConfig
	Logging       LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// ProviderConfig selects an external capability implementation. It is injected
// at construction; capability selection is a pure mapping from this value, with
// no ambient provider globals.
type ProviderConfig struct {
	Provider Provider
	APIKey   string
	BaseURL  string

	// Polling bounds for providers that poll a job until terminal status.
	MaxPollAttempts int
	PollInterval    time.Duration
}

// StreamingConfig holds the live ASR socket configuration used by the capture
// client and by the hub's token endpoint.
type StreamingConfig struct {
	ASRSocketURL     string
	TokenTTL         time.Duration
	TargetSampleRate int
	FrameSize        int
	ReconnectDelay   time.Duration
}

// IngestConfig holds the reprocessing drop-directory configuration
type IngestConfig struct {
	WatchDir string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("HUB_HOST", "0.0.0.0"),
			Port:         getEnvInt("HUB_PORT", 8080),
			ReadTimeout:  getEnvDuration("HUB_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HUB_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnvString("DB_PATH", "./data/transcripter.db"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Transcription: ProviderConfig{
			Provider:        Provider(getEnvString("TRANSCRIPTION_PROVIDER", "assemblyai")),
			APIKey:          getEnvString("TRANSCRIPTION_API_KEY", ""),
			BaseURL:         getEnvString("TRANSCRIPTION_BASE_URL", "https://api.assemblyai.com/v2"),
			MaxPollAttempts: getEnvInt("TRANSCRIPTION_MAX_POLL_ATTEMPTS", 30),
			PollInterval:    getEnvDuration("TRANSCRIPTION_POLL_INTERVAL", 1500*time.Millisecond),
		},
		Summarization: ProviderConfig{
			Provider: Provider(getEnvString("SUMMARIZATION_PROVIDER", "assemblyai")),
			APIKey:   getEnvString("SUMMARIZATION_API_KEY", ""),
			BaseURL:  getEnvString("SUMMARIZATION_BASE_URL", ""),
		},
		Streaming: StreamingConfig{
			ASRSocketURL:     getEnvString("ASR_SOCKET_URL", "wss://streaming.assemblyai.com/v3/ws"),
			TokenTTL:         getEnvDuration("STREAMING_TOKEN_TTL", 10*time.Minute),
			TargetSampleRate: getEnvInt("STREAMING_TARGET_SAMPLE_RATE", 16000),
			FrameSize:        getEnvInt("STREAMING_FRAME_SIZE", 4096),
			ReconnectDelay:   getEnvDuration("STREAMING_RECONNECT_DELAY", 2*time.Second),
		},
		Ingest: IngestConfig{
			WatchDir: getEnvString("INGEST_WATCH_DIR", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}

	if err := c.Summarization.Validate(); err != nil {
		return fmt.Errorf("summarization: %w", err)
	}

	if c.Streaming.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.Streaming.TargetSampleRate)
	}

	if c.Streaming.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive: %d", c.Streaming.FrameSize)
	}

	if c.Streaming.TokenTTL > 10*time.Minute {
		return fmt.Errorf("streaming token TTL must not exceed 10 minutes: %s", c.Streaming.TokenTTL)
	}

	return nil
}

// Validate checks that the provider enum value is known
func (p ProviderConfig) Validate() error {
	switch p.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderAssemblyAI, ProviderLocal:
		return nil
	default:
		return fmt.Errorf("unknown provider %q", p.Provider)
	}
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
