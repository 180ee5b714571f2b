// Package staging downloads allowed remote resources into uniquely named
// temporary files under a hard byte cap, tracks every file created during a
// pipeline run, and guarantees cleanup on every exit path.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxFileSize is the per-file ceiling for staged downloads.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024 // 10 MiB

// ErrTooLarge marks a resource whose probed or measured size exceeds the cap.
var ErrTooLarge = errors.New("staging: resource exceeds size limit")

// Asset is the result of a successful fetch. It is owned by the Run that
// created it until cleanup deletes the backing file.
type Asset struct {
	SourceURL string
	Path      string
	Size      int64
}

// Config configures the Stager.
type Config struct {
	// Dir is the staging directory for temporary files.
	Dir string `yaml:"dir"`

	// MaxFileSize caps each staged file in bytes. Zero means DefaultMaxFileSize.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// Stager probes and streams remote resources onto local disk.
type Stager struct {
	dir     string
	maxSize int64
	client  *http.Client
	logger  *slog.Logger
}

// NewStager creates a Stager. A nil client gets a 30s-timeout default,
// matching the platform binding's own HTTP client.
func NewStager(cfg Config, client *http.Client, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "linkclaw")
	}
	maxSize := cfg.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Stager{
		dir:     dir,
		maxSize: maxSize,
		client:  client,
		logger:  logger.With("component", "staging"),
	}
}

// Dir returns the staging directory.
func (s *Stager) Dir() string { return s.dir }

// MaxFileSize returns the per-file byte cap.
func (s *Stager) MaxFileSize() int64 { return s.maxSize }

// EnsureDir creates the staging directory if missing.
func (s *Stager) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating staging directory %s: %w", s.dir, err)
	}
	return nil
}

// Probe issues a metadata-only request and returns the reported content
// length. Probe failure is non-fatal: it returns 0, meaning size unknown,
// and the caller continues optimistically.
func (s *Stager) Probe(ctx context.Context, rawURL string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("size probe failed", "url", rawURL, "error", err)
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.ContentLength < 0 {
		return 0
	}
	return resp.ContentLength
}

// Stage downloads one resource into a fresh temporary file and returns the
// asset. The file is registered with run before any byte is written, so a
// partial download is always cleaned up. Failure of one candidate leaves
// the rest of the run unaffected; the caller decides what to do next.
func (s *Stager) Stage(ctx context.Context, run *Run, tenantID, messageID, rawURL, ext string) (*Asset, error) {
	if probed := s.Probe(ctx, rawURL); probed > s.maxSize {
		return nil, fmt.Errorf("%w: probed %d > %d for %s", ErrTooLarge, probed, s.maxSize, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	if err := s.EnsureDir(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s-%s-%d-%s%s",
		tenantID, messageID, time.Now().UnixNano(), uuid.New().String()[:8], ext)
	path := filepath.Join(s.dir, name)

	// Exclusive create: never overwrite an existing path.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating staging file %s: %w", path, err)
	}
	run.Track(path)

	// Copy at most maxSize+1 bytes so an oversized body is detected without
	// filling the disk. The probe above is advisory, not authoritative.
	written, copyErr := io.Copy(f, io.LimitReader(resp.Body, s.maxSize+1))
	closeErr := f.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("writing %s: %w", path, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("closing %s: %w", path, closeErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", path, err)
	}
	if info.Size() > s.maxSize || written > s.maxSize {
		return nil, fmt.Errorf("%w: wrote %d > %d for %s", ErrTooLarge, info.Size(), s.maxSize, rawURL)
	}

	s.logger.Debug("staged resource", "url", rawURL, "path", path, "size", info.Size())
	return &Asset{SourceURL: rawURL, Path: path, Size: info.Size()}, nil
}
