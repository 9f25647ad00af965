// File: internal/scraper/scraper.go

// Package scraper pulls media off supported social platforms by shelling
// out to an external downloader binary.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/config"
)

// ErrUnsupportedSource is returned for URLs outside the platform allowlist.
var ErrUnsupportedSource = errors.New("scraper: URL is not from a supported platform")

// allowedDomains is the closed set of platforms the downloader may be
// pointed at. Subdomains of these match too.
var allowedDomains = []string{
	"youtube.com",
	"youtu.be",
	"tiktok.com",
	"instagram.com",
}

// Scraper wraps the external downloader.
type Scraper struct {
	cfg    config.ScraperConfig
	logger *zap.Logger
}

// New builds a scraper from configuration.
func New(cfg config.ScraperConfig, logger *zap.Logger) *Scraper {
	return &Scraper{cfg: cfg, logger: logger.Named("scraper")}
}

// Supported reports whether rawURL points at an allowed platform.
func Supported(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Download fetches the media behind rawURL into outputDir and returns the
// path of the downloaded file.
func (s *Scraper) Download(ctx context.Context, rawURL, outputDir string) (string, error) {
	if !Supported(rawURL) {
		return "", ErrUnsupportedSource
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("scraper: failed to create output dir: %w", err)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	template := filepath.Join(outputDir, "%(id)s.%(ext)s")
	args := []string{
		"--no-playlist",
		"--restrict-filenames",
		"--print", "after_move:filepath",
		"--no-simulate",
		"-o", template,
		rawURL,
	}

	s.logger.Info("Starting media download.", zap.String("url", rawURL))
	cmd := exec.CommandContext(ctx, s.cfg.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.logger.Warn("Downloader failed.", zap.String("url", rawURL),
			zap.String("stderr", truncate(stderr.String(), 2000)))
		return "", fmt.Errorf("scraper: %s failed: %w", s.cfg.Binary, err)
	}

	path := lastLine(stdout.String())
	if path == "" {
		return "", fmt.Errorf("scraper: downloader reported no output file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("scraper: reported file %q is missing: %w", path, err)
	}

	s.logger.Info("Media downloaded.", zap.String("path", path))
	return path, nil
}

// lastLine returns the final non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
