// File: internal/imagegen/selectors_test.go
package imagegen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstMatch(t *testing.T) {
	strategies := []Strategy{
		{Name: "first", Selector: "a"},
		{Name: "second", Selector: "b"},
		{Name: "third", Selector: "c"},
	}

	t.Run("returns first strategy with matches", func(t *testing.T) {
		counts := map[string]int{"a": 0, "b": 3, "c": 5}
		s, n, ok := firstMatch(strategies, func(sel string) (int, error) {
			return counts[sel], nil
		})
		require.True(t, ok)
		assert.Equal(t, "second", s.Name)
		assert.Equal(t, 3, n)
	})

	t.Run("earlier strategy wins even with fewer matches", func(t *testing.T) {
		counts := map[string]int{"a": 1, "b": 10, "c": 10}
		s, n, ok := firstMatch(strategies, func(sel string) (int, error) {
			return counts[sel], nil
		})
		require.True(t, ok)
		assert.Equal(t, "first", s.Name)
		assert.Equal(t, 1, n)
	})

	t.Run("erroring strategy is skipped", func(t *testing.T) {
		s, n, ok := firstMatch(strategies, func(sel string) (int, error) {
			if sel == "a" {
				return 0, errors.New("evaluate failed")
			}
			if sel == "b" {
				return 2, nil
			}
			return 0, nil
		})
		require.True(t, ok)
		assert.Equal(t, "second", s.Name)
		assert.Equal(t, 2, n)
	})

	t.Run("no matches anywhere", func(t *testing.T) {
		calls := 0
		_, _, ok := firstMatch(strategies, func(string) (int, error) {
			calls++
			return 0, nil
		})
		assert.False(t, ok)
		assert.Equal(t, len(strategies), calls, "every strategy should be tried")
	})

	t.Run("empty strategy list", func(t *testing.T) {
		_, _, ok := firstMatch(nil, func(string) (int, error) {
			t.Fatal("count should never be called")
			return 0, nil
		})
		assert.False(t, ok)
	})
}

func TestStrategyOrdering(t *testing.T) {
	// The generic contenteditable selector must stay last so a specific
	// prompt field is always preferred over some unrelated editable div.
	require.NotEmpty(t, inputStrategies)
	assert.Equal(t, "contenteditable", inputStrategies[len(inputStrategies)-1].Name)

	// A bare type=submit button is the weakest submit signal.
	require.NotEmpty(t, submitStrategies)
	assert.Equal(t, "type-submit", submitStrategies[len(submitStrategies)-1].Name)
}
