// File: internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled in time")
	}
}

func TestCombineContext(t *testing.T) {
	t.Run("secondary cancellation propagates", func(t *testing.T) {
		parent := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(parent, secondary)
		defer cancel()

		cancelSecondary()
		waitDone(t, combined)
	})

	t.Run("parent cancellation propagates", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.Background())
		combined, cancel := CombineContext(parent, context.Background())
		defer cancel()

		cancelParent()
		waitDone(t, combined)
	})

	t.Run("explicit cancel works", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		waitDone(t, combined)
	})

	t.Run("values flow from the parent side", func(t *testing.T) {
		type key struct{}
		parent := context.WithValue(context.Background(), key{}, "handle-state")
		combined, cancel := CombineContext(parent, context.Background())
		defer cancel()

		assert.Equal(t, "handle-state", combined.Value(key{}))
	})
}
