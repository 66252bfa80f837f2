package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const userAgent = "whisper-api/1"

// Options describes a single model download. Every model in the registry
// carries a pinned SHA256, so the checksum is always verified against the
// bytes as they stream in.
type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	Retries        int
	NoProgress     bool
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// DownloadFile fetches opts.URL into opts.Destination through a .part
// temp file, retrying transient failures. The file only appears at the
// destination after its checksum has been verified.
func DownloadFile(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return errors.New("download URL is required")
	}
	if opts.Destination == "" {
		return errors.New("destination path is required")
	}

	d := downloader{
		opts:     opts,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
		expected: strings.ToLower(strings.TrimSpace(opts.ExpectedSHA256)),
	}
	if d.opts.Retries <= 0 {
		d.opts.Retries = 3
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 10 * time.Minute}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	return d.run(ctx)
}

// VerifyFileChecksum re-hashes a file already on disk; used by setup to
// detect models corrupted after their original download.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedSHA256))
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}

	if actual := hex.EncodeToString(h.Sum(nil)); actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

type downloader struct {
	opts     Options
	client   *http.Client
	logger   *zap.Logger
	expected string
}

func (d downloader) run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.opts.Retries; attempt++ {
		if attempt > 1 {
			d.logger.Warn("retrying download",
				zap.Int("attempt", attempt),
				zap.Int("max", d.opts.Retries),
				zap.String("url", d.opts.URL),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
		}

		if lastErr = d.attempt(ctx); lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (d downloader) attempt(ctx context.Context) (err error) {
	tempPath := d.opts.Destination + ".part"
	_ = os.Remove(tempPath)

	temp, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = temp.Close()
			_ = os.Remove(tempPath)
		}
	}()

	resp, err := d.get(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	digest := sha256.New()
	if err := d.stream(resp, temp, digest); err != nil {
		return err
	}

	if actual := hex.EncodeToString(digest.Sum(nil)); d.expected != "" && actual != d.expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", d.expected, actual)
	}

	if err := temp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, d.opts.Destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}
	return nil
}

func (d downloader) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp, nil
}

func (d downloader) stream(resp *http.Response, temp *os.File, digest hash.Hash) error {
	writer := io.MultiWriter(temp, digest)

	if d.renderProgress(resp.ContentLength) {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		defer func() {
			_ = bar.Finish()
		}()
		writer = io.MultiWriter(temp, digest, bar)
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	return nil
}

func (d downloader) renderProgress(contentLength int64) bool {
	if d.opts.NoProgress || contentLength <= 0 {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
