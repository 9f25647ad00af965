// File: internal/imagegen/generator.go
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/browser"
	"github.com/xkilldash9x/mediaforge/internal/config"
)

// Sentinel failures surfaced to the web layer.
var (
	// ErrNoPromptInput means no editable prompt region could be located
	// after trying every input strategy. The whole request is aborted.
	ErrNoPromptInput = errors.New("imagegen: no prompt input field found")
	// ErrNoResults means the page never produced any result elements
	// within the configured wait.
	ErrNoResults = errors.New("imagegen: no generated images found on page")
	// ErrNoImages means result elements were located but not a single
	// file could be extracted from them.
	ErrNoImages = errors.New("imagegen: no images could be downloaded")
)

// Request describes one submission + extraction cycle. It is ephemeral;
// nothing outlives the call besides the files in OutputDir.
type Request struct {
	Prompt    string
	OutputDir string
	NumImages int
	WaitTime  time.Duration
}

// Item is one saved file, indexed 1..NumImages.
type Item struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
}

// Result is the outcome of a batch. The batch counts as a success when at
// least one item produced a file, no matter how many others failed.
type Result struct {
	Prompt string `json:"prompt"`
	Items  []Item `json:"items"`
}

// Success reports whether the batch produced anything at all.
func (r *Result) Success() bool { return r != nil && len(r.Items) > 0 }

// Generator drives the third-party generation page through the shared
// browser handle. All of its operations are attempted exactly once; there
// is no retry anywhere in the pipeline.
type Generator struct {
	cfg        config.ImagegenConfig
	browserCfg config.BrowserConfig
	mgr        *browser.Manager
	store      *browser.CookieStore
	client     *http.Client
	logger     *zap.Logger

	// sessionOnce restores the saved login the first time the browser is
	// actually used for generation.
	sessionOnce sync.Once
}

// NewGenerator wires a generator against the shared browser manager.
func NewGenerator(cfg config.ImagegenConfig, browserCfg config.BrowserConfig, mgr *browser.Manager, store *browser.CookieStore, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:        cfg,
		browserCfg: browserCfg,
		mgr:        mgr,
		store:      store,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Named("imagegen"),
	}
}

// Generate runs one full submission + extraction cycle. The browser handle
// is held exclusively for the duration, serializing concurrent callers.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("imagegen: prompt must not be empty")
	}
	if req.NumImages <= 0 {
		req.NumImages = g.cfg.NumImages
	}
	if req.WaitTime <= 0 {
		req.WaitTime = g.cfg.WaitTime
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("imagegen: failed to create output dir %q: %w", req.OutputDir, err)
	}

	handle, err := g.mgr.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to acquire browser handle: %w", err)
	}
	defer handle.Release()

	// Actions run against the handle context but honor the caller's
	// cancellation as well.
	runCtx, cancel := browser.CombineContext(handle.Context(), ctx)
	defer cancel()

	log := g.logger.With(zap.String("prompt", req.Prompt), zap.Int("num_images", req.NumImages))

	g.sessionOnce.Do(func() {
		if _, err := browser.EnsureSession(runCtx, g.browserCfg, g.store, g.logger); err != nil {
			log.Warn("Session restore failed; continuing unauthenticated.", zap.Error(err))
		}
	})

	// -- NAVIGATED --
	log.Info("Navigating to generation page.", zap.String("state", "NAVIGATED"))
	if err := chromedp.Run(runCtx, chromedp.Navigate(g.browserCfg.GenerateURL())); err != nil {
		return nil, fmt.Errorf("imagegen: failed to load generation page: %w", err)
	}

	// -- MODE_SELECTED -- best effort; the page may already default right.
	g.selectImageMode(runCtx, log)

	// -- PROMPT_ENTERED --
	inputSel, err := g.enterPrompt(runCtx, req.Prompt, log)
	if err != nil {
		return nil, err
	}

	// -- SUBMITTED -- submission success is not verified.
	g.submitPrompt(runCtx, inputSel, log)

	// -- WAITING / SCANNING --
	resultStrategy, found, err := g.awaitResults(runCtx, req, log)
	if err != nil {
		return nil, err
	}

	n := attemptCount(found, req.NumImages)
	log.Info("Scanning complete.", zap.String("state", "SCANNING"),
		zap.Int("located", found), zap.Int("processing", n))

	// -- Per-item extraction --
	result := &Result{Prompt: req.Prompt}
	for idx := 1; idx <= n; idx++ {
		item, ok := g.extractItem(runCtx, resultStrategy, idx, req, log)
		if ok {
			result.Items = append(result.Items, item)
		}

		// Dismiss the detail view regardless of outcome so the next item
		// starts from the grid.
		if err := chromedp.Run(runCtx, browser.PressEscape(), browser.Hesitate(500, 1000)); err != nil {
			log.Debug("Failed to dismiss detail view.", zap.Int("index", idx), zap.Error(err))
		}
	}

	if !result.Success() {
		log.Warn("Batch produced no files.", zap.String("state", "FAILED"))
		return result, ErrNoImages
	}
	log.Info("Batch complete.", zap.String("state", "DONE"), zap.Int("saved", len(result.Items)))
	return result, nil
}

// attemptCount caps how many located results get processed: excess DOM
// matches are ignored and a shortfall is accepted silently.
func attemptCount(found, requested int) int {
	if found > requested {
		return requested
	}
	return found
}

// domCount reports how many elements the selector matches right now.
func domCount(ctx context.Context, selector string) (int, error) {
	var n int
	err := chromedp.Run(ctx, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelectorAll(%q).length`, selector), &n))
	return n, err
}

// selectImageMode clicks a control whose label mentions "image". All
// failures here are soft; generation proceeds either way.
func (g *Generator) selectImageMode(ctx context.Context, log *zap.Logger) {
	script := `(() => {
		const els = document.querySelectorAll(%q);
		for (const el of els) {
			const label = ((el.getAttribute('aria-label') || '') + ' ' + (el.textContent || '')).toLowerCase();
			if (label.includes('image')) { el.click(); return true; }
		}
		return false;
	})()`

	for _, s := range modeStrategies {
		var clicked bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(script, s.Selector), &clicked)); err != nil {
			continue
		}
		if clicked {
			log.Info("Image mode selected.", zap.String("state", "MODE_SELECTED"), zap.String("strategy", s.Name))
			_ = chromedp.Run(ctx, browser.Hesitate(1000, 2000))
			return
		}
	}
	log.Debug("No image mode control found; continuing anyway.", zap.String("state", "MODE_SELECTED"))
}

// enterPrompt locates the editable prompt region and types the prompt.
// Failure to find any input after polling briefly is fatal for the request
// and captures a diagnostic screenshot.
func (g *Generator) enterPrompt(ctx context.Context, prompt string, log *zap.Logger) (string, error) {
	// The page exposes no readiness signal, so poll for the input field
	// instead of sleeping blind.
	const settleTimeout = 15 * time.Second
	deadline := time.Now().Add(settleTimeout)

	var strategy Strategy
	var ok bool
	for {
		strategy, _, ok = firstMatch(inputStrategies, func(sel string) (int, error) {
			return domCount(ctx, sel)
		})
		if ok || time.Now().After(deadline) {
			break
		}
		if err := chromedp.Run(ctx, browser.Hesitate(500, 1000)); err != nil {
			return "", err
		}
	}
	if !ok {
		g.captureScreenshot(ctx, "no_input_found", log)
		return "", ErrNoPromptInput
	}

	log.Info("Typing prompt.", zap.String("state", "PROMPT_ENTERED"), zap.String("strategy", strategy.Name))
	if err := chromedp.Run(ctx, browser.TypeSlowly(strategy.Selector, prompt)); err != nil {
		return "", fmt.Errorf("imagegen: failed to type prompt: %w", err)
	}
	return strategy.Selector, nil
}

// submitPrompt clicks the first enabled submit button, falling back to a
// carriage return on the prompt field. Always proceeds; submission success
// is not verified.
func (g *Generator) submitPrompt(ctx context.Context, inputSel string, log *zap.Logger) {
	script := `(() => {
		const els = document.querySelectorAll(%q);
		for (const el of els) {
			if (!el.disabled && !el.getAttribute('disabled')) { el.click(); return true; }
		}
		return false;
	})()`

	for _, s := range submitStrategies {
		var clicked bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(script, s.Selector), &clicked)); err != nil {
			continue
		}
		if clicked {
			log.Info("Prompt submitted.", zap.String("state", "SUBMITTED"), zap.String("strategy", s.Name))
			return
		}
	}

	log.Info("No enabled submit button; sending Enter.", zap.String("state", "SUBMITTED"))
	if err := chromedp.Run(ctx, browser.PressEnter(inputSel)); err != nil {
		log.Warn("Failed to send Enter to prompt field.", zap.Error(err))
	}
}

// awaitResults polls for result elements in fixed sub-intervals up to the
// request's wait time, then scans with the ordered result strategies. Zero
// matches after the full wait fails the request with a screenshot.
func (g *Generator) awaitResults(ctx context.Context, req Request, log *zap.Logger) (Strategy, int, error) {
	interval := g.cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	start := time.Now()
	deadline := start.Add(req.WaitTime)

	for {
		// Bring lazy-loaded results into the DOM before each scan.
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		); err != nil {
			return Strategy{}, 0, fmt.Errorf("imagegen: failed to scroll page: %w", err)
		}

		strategy, count, ok := firstMatch(resultStrategies, func(sel string) (int, error) {
			return domCount(ctx, sel)
		})
		if ok {
			return strategy, count, nil
		}

		if time.Now().After(deadline) {
			break
		}
		log.Info("Waiting for results...", zap.String("state", "WAITING"),
			zap.Duration("elapsed", time.Since(start).Round(time.Second)),
			zap.Duration("total", req.WaitTime))

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Strategy{}, 0, ctx.Err()
		}
	}

	g.captureScreenshot(ctx, "no_images_found", log)
	return Strategy{}, 0, ErrNoResults
}
