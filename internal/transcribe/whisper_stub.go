//go:build !whisper

package transcribe

import "fmt"

// whisperEngine stub when whisper is disabled
type whisperEngine struct {
	modelPath string
}

// newWhisperEngine creates a stub engine when whisper is disabled
func newWhisperEngine(modelPath string) (*whisperEngine, error) {
	return &whisperEngine{modelPath: modelPath}, nil
}

// transcribe stub implementation always fails
func (e *whisperEngine) transcribe(samples []float32) (string, error) {
	return "", fmt.Errorf("local transcription disabled (build with -tags whisper to enable)")
}

// close stub implementation
func (e *whisperEngine) close() error {
	return nil
}
