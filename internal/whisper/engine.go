package whisper

import (
	"context"
	"errors"
)

// Tasks an engine can perform on an audio file.
const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"
)

var (
	// ErrInvalidAudio marks input the engine could not decode; handlers map
	// it to a client error.
	ErrInvalidAudio = errors.New("invalid or unsupported audio")

	// ErrEngine marks a failure of the engine itself.
	ErrEngine = errors.New("transcription engine failure")
)

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
	Task      string
}

type Transcription struct {
	Text     string
	Language string
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (Transcription, error)
}

func ValidTask(task string) bool {
	return task == TaskTranscribe || task == TaskTranslate
}
