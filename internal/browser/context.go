// File: internal/browser/context.go
package browser

import "context"

// CombineContext creates a context that carries the chromedp state of
// parentCtx but is additionally canceled when secondaryCtx is canceled.
// Browser actions run against the long-lived handle context; combining it
// with the per-request context lets callers abandon an in-flight operation
// without tearing the handle down.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
			// Already canceled from the parent side; exit the watcher.
		}
	}()

	return combinedCtx, cancel
}
