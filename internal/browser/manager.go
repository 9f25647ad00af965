// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/config"
)

// Manager owns the single long-lived Chrome handle for the process.
// The handle is created lazily on first Acquire, reused across requests to
// amortize browser startup and login, and torn down only by an explicit
// Shutdown. Acquire hands the handle out under an exclusive lock so that
// generation requests serialize instead of racing the shared tab state.
type Manager struct {
	cfg     config.BrowserConfig
	persona Persona
	logger  *zap.Logger

	// mu serializes all use of the browser handle.
	mu sync.Mutex

	// Initialization state management.
	initOnce sync.Once
	initErr  error

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Handle is an acquired, exclusively held browser handle. Context() is valid
// until Release is called; Release must always be called, typically deferred.
type Handle struct {
	ctx context.Context
	mgr *Manager

	releaseOnce sync.Once
}

// Context returns the chromedp context of the live browser tab.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Release returns the handle to the manager. Safe to call more than once.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		h.mgr.mu.Unlock()
	})
}

// NewManager creates a browser manager. Initialization is deferred until the
// first handle is requested.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		persona: DefaultPersona,
		logger:  logger.Named("browser_manager"),
	}
}

// Acquire returns the single live handle, creating the browser if none
// exists. The returned handle holds an exclusive lock on the browser until
// released. A second failure to start the browser binary is fatal and is
// reported to every subsequent caller.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()

	m.initOnce.Do(func() {
		m.initErr = m.initialize(ctx)
	})
	if m.initErr != nil {
		m.mu.Unlock()
		return nil, m.initErr
	}

	select {
	case <-m.browserCtx.Done():
		m.mu.Unlock()
		return nil, fmt.Errorf("browser handle is no longer alive: %w", m.browserCtx.Err())
	default:
	}

	return &Handle{ctx: m.browserCtx, mgr: m}, nil
}

// Warm initializes the browser in the background so server startup is not
// blocked on Chrome. Errors are logged, not returned; the first real request
// will surface them.
func (m *Manager) Warm(ctx context.Context) {
	go func() {
		handle, err := m.Acquire(ctx)
		if err != nil {
			m.logger.Error("Background browser warm-up failed.", zap.Error(err))
			return
		}
		handle.Release()
		m.logger.Info("Browser handle warmed up and ready.")
	}()
}

// initialize launches Chrome, retrying once with default options before
// giving up. Called with m.mu held.
func (m *Manager) initialize(ctx context.Context) error {
	m.logger.Info("Initializing Chrome browser...",
		zap.Bool("headless", m.cfg.Headless),
		zap.String("download_dir", m.cfg.DownloadDir),
	)

	startupTimeout := m.cfg.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = 60 * time.Second
	}

	// First attempt: full anti-detection option set with a randomized
	// viewport so repeated sessions do not share a fingerprint.
	width := 1366 + rand.Intn(1920-1366+1)
	height := 768 + rand.Intn(1080-768+1)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("start-maximized", true),
		chromedp.WindowSize(width, height),
	)

	if err := m.launch(ctx, startupTimeout, opts); err != nil {
		m.logger.Warn("Browser failed to start with anti-detection options; retrying with defaults.", zap.Error(err))

		// Single retry with default options. A second failure is fatal.
		if retryErr := m.launch(ctx, startupTimeout, chromedp.DefaultExecAllocatorOptions[:]); retryErr != nil {
			return fmt.Errorf("browser failed to start after retry: %w", retryErr)
		}
	}

	// Best-effort post-launch setup. Neither stealth nor download routing
	// is allowed to fail the handle.
	if err := chromedp.Run(m.browserCtx, applyStealth(m.persona, m.logger)); err != nil {
		m.logger.Warn("Failed to apply stealth configuration; continuing without it.", zap.Error(err))
	}
	if m.cfg.DownloadDir != "" {
		err := chromedp.Run(m.browserCtx,
			cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(m.cfg.DownloadDir).
				WithEventsEnabled(true),
		)
		if err != nil {
			m.logger.Warn("Failed to route browser downloads; native downloads may land elsewhere.", zap.Error(err))
		}
	}

	m.logger.Info("Browser initialized.", zap.Int("viewport_width", width), zap.Int("viewport_height", height))
	return nil
}

// launch creates the allocator and browser contexts and starts the binary.
// The contexts are parented to the background context on purpose: the handle
// outlives the request that triggered its creation.
func (m *Manager) launch(ctx context.Context, timeout time.Duration, opts []chromedp.ExecAllocatorOption) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// Bound the actual process start on the caller's context plus the
	// configured startup timeout.
	startCtx, startCancel := context.WithTimeout(ctx, timeout)
	defer startCancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			browserCancel()
			allocCancel()
			return fmt.Errorf("failed to start browser: %w", err)
		}
	case <-startCtx.Done():
		browserCancel()
		allocCancel()
		return fmt.Errorf("timeout waiting for browser startup: %w", startCtx.Err())
	}

	m.allocCancel = allocCancel
	m.browserCtx = browserCtx
	m.browserCancel = browserCancel
	return nil
}

// Shutdown tears down the browser. This is the only teardown path; nothing
// closes the handle implicitly.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browserCtx == nil {
		m.logger.Info("Browser never initialized; nothing to shut down.")
		return nil
	}

	m.logger.Info("Shutting down browser.")

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(m.browserCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for graceful browser close; cancelling contexts.", zap.Error(ctx.Err()))
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	if err != nil {
		return fmt.Errorf("failed to close browser cleanly: %w", err)
	}
	return nil
}
