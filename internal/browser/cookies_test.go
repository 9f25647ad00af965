// File: internal/browser/cookies_test.go
package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNormalizeSameSite(t *testing.T) {
	testCases := []struct {
		in   string
		want network.CookieSameSite
	}{
		{"Strict", network.CookieSameSiteStrict},
		{"strict", network.CookieSameSiteStrict},
		{"Lax", network.CookieSameSiteLax},
		{"None", network.CookieSameSiteNone},
		{"no_restriction", network.CookieSameSiteNone},
		// Anything unrecognized falls back to Lax.
		{"unspecified", network.CookieSameSiteLax},
		{"", network.CookieSameSiteLax},
		{"garbage", network.CookieSameSiteLax},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeSameSite(tc.in))
		})
	}
}

func TestCookieStoreRoundTrip(t *testing.T) {
	logger := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "cookies.json")
	store := NewCookieStore(path, logger)

	cookies := []Cookie{
		{
			Name:     "session",
			Value:    "abc123",
			Domain:   ".example.com",
			Path:     "/",
			Expiry:   1767225600,
			Secure:   true,
			HTTPOnly: true,
			SameSite: "Lax",
		},
		{Name: "pref", Value: "dark", Domain: "example.com", Path: "/"},
	}
	require.NoError(t, store.Save(cookies))

	// The file must not be world readable; it is a credential.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "session", loaded[0].Name)
	assert.Equal(t, float64(1767225600), loaded[0].Expiry)
	assert.True(t, loaded[0].HTTPOnly)
}

func TestCookieStoreLoadMissingFile(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := NewCookieStore(filepath.Join(t.TempDir(), "absent.json"), logger)

	cookies, err := store.Load()
	require.NoError(t, err, "a missing cookie file is not an error")
	assert.Nil(t, cookies)
}

func TestCookieStoreLoadCorruptFile(t *testing.T) {
	logger := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewCookieStore(path, logger)
	_, err := store.Load()
	assert.Error(t, err)
}
