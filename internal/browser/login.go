// File: internal/browser/login.go
package browser

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/config"
)

// WaitFunc blocks until the operator signals that manual login is complete.
// Injectable so tests do not read stdin.
type WaitFunc func() error

// StdinWaiter prints instructions and blocks until the operator presses
// enter on the controlling terminal.
func StdinWaiter() error {
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("MANUAL LOGIN")
	fmt.Println("============================================================")
	fmt.Println("1. A browser window has opened on the target site.")
	fmt.Println("2. Sign in with your account.")
	fmt.Println("3. Navigate to the image generation page.")
	fmt.Println("4. Come back here and press ENTER.")
	fmt.Println("============================================================")
	fmt.Print("Press ENTER after you're logged in... ")

	reader := bufio.NewReader(os.Stdin)
	if _, err := reader.ReadString('\n'); err != nil {
		return fmt.Errorf("failed to read operator confirmation: %w", err)
	}
	return nil
}

// InteractiveLogin walks the operator through first-time authentication:
// open the site, suspend until the operator finishes logging in, persist
// the resulting cookies, and land on the generation page. This is a
// blocking, human-in-the-loop procedure and is never run unattended.
func InteractiveLogin(ctx context.Context, cfg config.BrowserConfig, store *CookieStore, wait WaitFunc, logger *zap.Logger) error {
	log := logger.Named("interactive_login")
	if wait == nil {
		wait = StdinWaiter
	}

	log.Info("Starting interactive login.", zap.String("url", cfg.BaseURL))
	if err := chromedp.Run(ctx, chromedp.Navigate(cfg.BaseURL)); err != nil {
		return fmt.Errorf("failed to open login page %q: %w", cfg.BaseURL, err)
	}

	if err := wait(); err != nil {
		return err
	}

	log.Info("Operator signalled login complete; saving session.")
	if err := store.SaveSession(ctx); err != nil {
		return fmt.Errorf("failed to persist session after login: %w", err)
	}

	// Make sure the browser is parked on the generation page for the next
	// request.
	var currentURL string
	if err := chromedp.Run(ctx, chromedp.Location(&currentURL)); err == nil && currentURL != cfg.GenerateURL() {
		log.Info("Navigating to generation page.", zap.String("url", cfg.GenerateURL()))
		if err := chromedp.Run(ctx, chromedp.Navigate(cfg.GenerateURL())); err != nil {
			return fmt.Errorf("failed to navigate to generation page: %w", err)
		}
	}

	log.Info("Interactive login finished.")
	return nil
}

// EnsureSession restores the saved session, reporting whether the browser is
// now authenticated. It never triggers interactive login itself.
func EnsureSession(ctx context.Context, cfg config.BrowserConfig, store *CookieStore, logger *zap.Logger) (bool, error) {
	restored, err := store.RestoreSession(ctx, cfg.BaseURL)
	if err != nil {
		return false, err
	}
	if !restored {
		logger.Warn("No stored session found; run the login command to bootstrap cookies.",
			zap.String("cookie_file", store.Path()))
	}
	return restored, nil
}
