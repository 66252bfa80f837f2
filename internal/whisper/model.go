package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultModel matches the model the original desktop service shipped with.
const DefaultModel = "base"

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

type Model struct {
	Name     string
	FileName string
	URL      string
	SHA256   string
}

type ResolvedModel struct {
	Name          string
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
	IsCustomPath  bool
}

// catalog lists the supported ggml models in size order, each pinned to the
// digest of the upstream file.
var catalog = []Model{
	ggml("tiny", "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"),
	ggml("base", "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"),
	ggml("small", "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"),
	ggml("medium", "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"),
	ggml("large-v3", "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"),
}

func ggml(name, sha256 string) Model {
	fileName := "ggml-" + name + ".bin"
	return Model{
		Name:     name,
		FileName: fileName,
		URL:      modelBaseURL + fileName,
		SHA256:   sha256,
	}
}

// ModelNames returns the catalog names in size order.
func ModelNames() []string {
	names := make([]string, len(catalog))
	for i, model := range catalog {
		names[i] = model.Name
	}
	return names
}

func LookupModel(name string) (Model, bool) {
	for _, model := range catalog {
		if model.Name == name {
			return model, true
		}
	}
	return Model{}, false
}

// ResolveModel maps a model reference (catalog name or file path) onto a
// local file, reporting whether it still needs to be downloaded.
func ResolveModel(modelRef, modelDir string) (ResolvedModel, error) {
	ref := strings.TrimSpace(modelRef)
	if ref == "" {
		ref = DefaultModel
	}

	if model, ok := LookupModel(ref); ok {
		return resolveNamed(model, modelDir)
	}

	if !looksLikePath(ref) {
		return ResolvedModel{}, fmt.Errorf("unknown model %q (known models: %s)", ref, strings.Join(ModelNames(), ", "))
	}

	return resolveCustomPath(ref)
}

func resolveNamed(model Model, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty for named model")
	}

	modelPath := filepath.Join(modelDir, model.FileName)

	needsDownload := false
	if _, err := os.Stat(modelPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
		}
		needsDownload = true
	}

	return ResolvedModel{
		Name:          model.Name,
		Path:          modelPath,
		URL:           model.URL,
		SHA256:        model.SHA256,
		NeedsDownload: needsDownload,
	}, nil
}

func resolveCustomPath(ref string) (ResolvedModel, error) {
	customPath := filepath.Clean(ref)
	if _, err := os.Stat(customPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", customPath)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}

	return ResolvedModel{Path: customPath, IsCustomPath: true}, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
