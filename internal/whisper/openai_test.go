package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func newOpenAIStub(t *testing.T, handler http.HandlerFunc) *OpenAIEngine {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL

	return NewOpenAIEngineWithConfig(cfg, "", nil)
}

func writeTestAudio(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o644))
	return path
}

func TestOpenAIEngineTranscribe(t *testing.T) {
	t.Parallel()

	engine := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "/audio/transcriptions")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":1.2,"text":"hello world"}`))
	})

	result, err := engine.Transcribe(context.Background(), TranscriptionRequest{
		AudioPath: writeTestAudio(t),
		Language:  "auto",
		Task:      TaskTranscribe,
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", result.Text)
	require.Equal(t, "english", result.Language)
}

func TestOpenAIEngineInvalidAudio(t *testing.T) {
	t.Parallel()

	engine := newOpenAIStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Unrecognized file format.","type":"invalid_request_error"}}`))
	})

	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: writeTestAudio(t)})
	require.ErrorIs(t, err, ErrInvalidAudio)
}

func TestOpenAIEngineServerFailure(t *testing.T) {
	t.Parallel()

	engine := newOpenAIStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	})

	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: writeTestAudio(t)})
	require.ErrorIs(t, err, ErrEngine)
}

func TestOpenAIEngineRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIEngine("", "", nil)
	require.Error(t, err)
}
