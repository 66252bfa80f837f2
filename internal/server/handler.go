package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sekachev/whisper-api/internal/audio"
	"github.com/sekachev/whisper-api/internal/whisper"
	"go.uber.org/zap"
)

type fileResult struct {
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	Error    string `json:"error,omitempty"`
}

type transcribeResponse struct {
	// Text and Language repeat the single upload's result, keeping the
	// original desktop service's one-file response shape working.
	Text     string                `json:"text,omitempty"`
	Language string                `json:"language,omitempty"`
	Results  map[string]fileResult `json:"results"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to Local Whisper API",
		"endpoints": map[string]string{
			"/transcribe": "POST - Transcribe one or more audio files",
			"/models":     "GET - List available models",
			"/health":     "GET - Liveness probe",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"available_models": whisper.ModelNames(),
		"current_model":    s.opts.Model,
		"engine":           s.opts.EngineName,
		"model_present":    s.opts.ModelReady(),
	})
}

// POST /transcribe accepts multipart uploads under the "file" field. Each
// file is handled independently in upload order; one bad file never aborts
// the rest of the batch.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, `no uploads in request; send one or more "file" parts`)
		return
	}

	task := strings.TrimSpace(r.FormValue("task"))
	if task == "" {
		task = whisper.TaskTranscribe
	}
	if !whisper.ValidTask(task) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown task %q (expected %s or %s)", task, whisper.TaskTranscribe, whisper.TaskTranslate))
		return
	}

	language := strings.TrimSpace(strings.ToLower(r.FormValue("language")))
	if language == "" {
		language = s.opts.Language
	}

	modelPath, err := s.ensureModel(r.Context())
	if err != nil {
		s.logger.Error("model preparation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("model not available: %v", err))
		return
	}

	results := make(map[string]fileResult, len(files))
	var succeeded, invalid, failed int

	for _, header := range files {
		name := uniqueResultName(results, header.Filename)

		result, err := s.transcribeUpload(r.Context(), header, whisper.TranscriptionRequest{
			ModelPath: modelPath,
			Language:  language,
			Task:      task,
		})
		if err != nil {
			if errors.Is(err, whisper.ErrInvalidAudio) {
				invalid++
			} else {
				failed++
			}
			s.logger.Warn("transcription failed", zap.String("file", header.Filename), zap.Error(err))
			results[name] = fileResult{Error: err.Error()}
			continue
		}

		succeeded++
		results[name] = fileResult{Text: result.Text, Language: result.Language}
	}

	status := http.StatusOK
	if succeeded == 0 {
		if failed > 0 {
			status = http.StatusInternalServerError
		} else {
			status = http.StatusBadRequest
		}
	}

	resp := transcribeResponse{Results: results}
	if len(files) == 1 && succeeded == 1 {
		for _, result := range results {
			resp.Text = result.Text
			resp.Language = result.Language
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) transcribeUpload(ctx context.Context, header *multipart.FileHeader, req whisper.TranscriptionRequest) (whisper.Transcription, error) {
	path, err := s.spoolUpload(header)
	if err != nil {
		return whisper.Transcription{}, err
	}
	defer os.Remove(path)

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if err := audio.ValidateWAV(path); err != nil {
			if errors.Is(err, audio.ErrInvalidWAV) || errors.Is(err, audio.ErrUnsupportedWAV) {
				return whisper.Transcription{}, fmt.Errorf("%w: %v", whisper.ErrInvalidAudio, err)
			}
			return whisper.Transcription{}, err
		}

		if s.opts.SilenceGate {
			silent, metrics, err := audio.IsSilentWAV(path, s.opts.SilenceDBFS)
			if err != nil {
				s.logger.Warn("silence analysis failed; transcribing anyway", zap.String("file", header.Filename), zap.Error(err))
			} else if silent {
				s.logger.Info("upload considered silent; skipping engine",
					zap.String("file", header.Filename),
					zap.Float64("rms_dbfs", metrics.RMSdBFS),
					zap.Float64("peak_dbfs", metrics.PeakdBFS),
				)
				return whisper.Transcription{}, nil
			}
		}
	}

	req.AudioPath = path
	return s.engine.Transcribe(ctx, req)
}

// spoolUpload writes the multipart part to a temp file so the engine can
// read it by path. The caller removes the file.
func (s *Server) spoolUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open upload %s: %v", whisper.ErrInvalidAudio, header.Filename, err)
	}
	defer src.Close()

	ext := filepath.Ext(header.Filename)
	path := filepath.Join(os.TempDir(), fmt.Sprintf("upload-%s%s", uuid.NewString(), ext))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("spool upload: %w", err)
	}

	return path, nil
}

// uniqueResultName keeps the filename-to-result mapping lossless when a
// batch repeats a filename: N uploads always produce N entries.
func uniqueResultName(results map[string]fileResult, filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		name = "upload"
	}

	if _, taken := results[name]; !taken {
		return name
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if _, taken := results[candidate]; !taken {
			return candidate
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
