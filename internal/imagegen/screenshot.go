// File: internal/imagegen/screenshot.go
package imagegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// captureScreenshot saves a full-page screenshot into the configured
// screenshot directory for post-mortem debugging of selector misses.
// Failures are logged, never propagated.
func (g *Generator) captureScreenshot(ctx context.Context, label string, log *zap.Logger) {
	dir := g.cfg.ScreenshotDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("Failed to create screenshot dir.", zap.Error(err))
		return
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		log.Warn("Failed to capture diagnostic screenshot.", zap.String("label", label), zap.Error(err))
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", label, time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		log.Warn("Failed to write diagnostic screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("Diagnostic screenshot saved.", zap.String("path", path))
}
