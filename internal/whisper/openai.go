package whisper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIEngine transcribes through the hosted OpenAI audio API instead of a
// local whisper-cli binary. The model path in requests is ignored.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIEngine(apiKey, model string, logger *zap.Logger) (*OpenAIEngine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is required for the openai engine")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}

	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

// NewOpenAIEngineWithConfig exists so tests can point the client at a stub
// server.
func NewOpenAIEngineWithConfig(cfg openai.ClientConfig, model string, logger *zap.Logger) *OpenAIEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (Transcription, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Transcription{}, errors.New("audio path is required")
	}

	apiReq := openai.AudioRequest{
		Model:    e.model,
		FilePath: req.AudioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	lang := strings.TrimSpace(req.Language)
	if lang != "" && lang != "auto" {
		apiReq.Language = lang
	}

	e.logger.Debug("calling hosted transcription API", zap.String("model", e.model), zap.String("audio", req.AudioPath))

	var (
		resp openai.AudioResponse
		err  error
	)
	if req.Task == TaskTranslate {
		resp, err = e.client.CreateTranslation(ctx, apiReq)
	} else {
		resp, err = e.client.CreateTranscription(ctx, apiReq)
	}
	if err != nil {
		return Transcription{}, classifyOpenAIError(err)
	}

	language := resp.Language
	if language == "" {
		language = lang
	}

	return Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: language,
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrInvalidAudio, apiErr.Message)
		}
		return fmt.Errorf("%w: %s", ErrEngine, apiErr.Message)
	}

	return fmt.Errorf("%w: %v", ErrEngine, err)
}
