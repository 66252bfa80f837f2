package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BundledEngine runs the whisper-cli binary from whisper.cpp as a child
// process. The binary is looked up near the service executable, or taken
// from WHISPERAPI_WHISPER_PATH.
type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv("WHISPERAPI_WHISPER_PATH")); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("WHISPERAPI_WHISPER_PATH is not executable: %w", err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	selfExe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve service executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(selfExe)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
}

func ResolveBundledEnginePath(serviceExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(serviceExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s; set WHISPERAPI_WHISPER_PATH or place whisper-cli at ../libexec/whisper/%s", serviceExecutable, engineBinaryName())
}

func EnginePathCandidates(serviceExecutable string) []string {
	binDir := filepath.Dir(serviceExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, normalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (Transcription, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Transcription{}, errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return Transcription{}, errors.New("model path is required")
	}

	if err := ensureExecutable(b.Executable); err != nil {
		return Transcription{}, fmt.Errorf("%w: whisper-cli missing or not executable: %v", ErrEngine, err)
	}

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("whisperapi-%d", time.Now().UnixNano()))
	txtOut := outBase + ".txt"

	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-nt", "-otxt", "-of", outBase}
	lang := strings.TrimSpace(req.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	if req.Task == TaskTranslate {
		args = append(args, "-tr")
	}

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = ioDiscard{}
	cmd.Stderr = &stderr

	b.logger().Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return Transcription{}, classifyEngineFailure(b.Executable, err, strings.TrimSpace(stderr.String()))
	}

	defer os.Remove(txtOut)
	content, err := os.ReadFile(txtOut)
	if err != nil {
		return Transcription{}, fmt.Errorf("%w: read whisper output: %v", ErrEngine, err)
	}

	return Transcription{
		Text:     strings.TrimSpace(string(content)),
		Language: detectedLanguage(stderr.String(), lang),
	}, nil
}

func (b *BundledEngine) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func classifyEngineFailure(executable string, runErr error, errText string) error {
	if isUnreadableAudioError(errText) {
		return fmt.Errorf("%w: %s", ErrInvalidAudio, errText)
	}
	if isMissingSharedLibraryError(errText) {
		return fmt.Errorf("%w: whisper-cli at %s is missing required shared libraries (%s); rebuild it with BUILD_SHARED_LIBS=OFF or fix the library path", ErrEngine, executable, errText)
	}
	if isIllegalInstructionError(errText) || isIllegalInstructionError(runErr.Error()) {
		return fmt.Errorf("%w: whisper-cli crashed with an illegal CPU instruction; "+
			"set WHISPERAPI_WHISPER_PATH to a whisper-cli binary built for your CPU", ErrEngine)
	}
	return fmt.Errorf("%w: %v (%s)", ErrEngine, runErr, errText)
}

type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) {
	return len(p), nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// whisper-cli reports the detected language on stderr when run with -l auto.
var detectedLanguagePattern = regexp.MustCompile(`auto-detected language:\s*([a-z]{2,3})`)

func detectedLanguage(stderr, requested string) string {
	if requested != "" && requested != "auto" {
		return requested
	}

	match := detectedLanguagePattern.FindStringSubmatch(strings.ToLower(stderr))
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

func isUnreadableAudioError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"failed to read audio",
		"failed to open",
		"failed to decode",
		"unsupported audio format",
		"not a valid wav",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}
