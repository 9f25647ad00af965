// File: internal/browser/stealth.go
package browser

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Platform  string
	Timezone  string
	Locale    string
}

// DefaultPersona provides a realistic default browser profile. The same
// user agent is reused for direct HTTP fetches so downloads and page loads
// present one identity.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Timezone:  "America/Los_Angeles",
	Locale:    "en-US",
}

// applyStealth constructs the CDP actions that make the automated browser
// look like a standard, user-operated one. Failure of any individual action
// is non-fatal for the caller; the handle stays usable without it.
func applyStealth(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
	)

	return chromedp.Tasks{
		// 1. Set the User-Agent override.
		emulation.SetUserAgentOverride(p.UserAgent),

		// 2. Inject the evasions script so it runs before any page script.
		// ActionFunc is needed because Do() returns two values here.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		// 3. Keep timezone and locale consistent with the persona.
		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
	}
}
