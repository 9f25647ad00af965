// File: internal/browser/typist.go
package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Typing delays in milliseconds. The randomized inter-key interval defeats
// the cruder bot-detection heuristics; it is not a correctness requirement.
const (
	minKeyDelayMs = 50
	maxKeyDelayMs = 200
)

// TypeSlowly clears the element matched by selector and types text into it
// character by character with randomized micro-delays, the way a person
// would.
func TypeSlowly(selector, text string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Click(selector, chromedp.ByQuery),
		hesitate(300, 600),

		// Clear any existing content: select-all then backspace works on
		// both inputs and contenteditable regions.
		chromedp.SendKeys(selector, kb.Control+"a", chromedp.ByQuery),
		chromedp.SendKeys(selector, kb.Backspace, chromedp.ByQuery),
		hesitate(200, 400),

		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, r := range text {
				if err := chromedp.SendKeys(selector, string(r), chromedp.ByQuery).Do(ctx); err != nil {
					return err
				}
				if err := sleepCtx(ctx, randomDelay(minKeyDelayMs, maxKeyDelayMs)); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

// PressEnter sends a carriage return to the element matched by selector.
func PressEnter(selector string) chromedp.Action {
	return chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)
}

// PressEscape sends an escape keystroke to the page body, dismissing any
// open overlay or detail view.
func PressEscape() chromedp.Action {
	return chromedp.SendKeys("body", kb.Escape, chromedp.ByQuery)
}

// Hesitate pauses for a random duration between min and max milliseconds,
// respecting context cancellation.
func Hesitate(minMs, maxMs int) chromedp.Action {
	return hesitate(minMs, maxMs)
}

func hesitate(minMs, maxMs int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return sleepCtx(ctx, randomDelay(minMs, maxMs))
	})
}

func randomDelay(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
