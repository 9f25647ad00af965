// File: internal/browser/cookies.go
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Cookie is one record of the on-disk session store. The field set matches
// the browser automation export format so a store written by another tool
// can be consumed verbatim.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expiry   float64 `json:"expiry,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CookieStore persists the authenticated session as a JSON array on disk.
// The store is written only during interactive login; the automation never
// mutates it mid-session.
type CookieStore struct {
	path   string
	logger *zap.Logger
}

// NewCookieStore creates a store backed by the given file path.
func NewCookieStore(path string, logger *zap.Logger) *CookieStore {
	return &CookieStore{path: path, logger: logger.Named("cookie_store")}
}

// Path returns the location of the backing file.
func (s *CookieStore) Path() string { return s.path }

// Load reads the cookie file. A missing file yields an empty slice and no
// error; the caller decides whether that means interactive login is needed.
func (s *CookieStore) Load() ([]Cookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No cookie file found.", zap.String("path", s.path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie file %q: %w", s.path, err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %q: %w", s.path, err)
	}
	return cookies, nil
}

// Save writes the cookies as an indented JSON array, replacing any previous
// contents.
func (s *CookieStore) Save(cookies []Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file %q: %w", s.path, err)
	}
	s.logger.Info("Cookies saved.", zap.String("path", s.path), zap.Int("count", len(cookies)))
	return nil
}

// normalizeSameSite maps a stored sameSite value onto the enumeration the
// browser accepts. Extension exports write "no_restriction" for None, and
// casing varies between tools; anything unrecognized coerces to Lax.
func normalizeSameSite(v string) network.CookieSameSite {
	switch strings.ToLower(v) {
	case "strict":
		return network.CookieSameSiteStrict
	case "none", "no_restriction":
		return network.CookieSameSiteNone
	default:
		return network.CookieSameSiteLax
	}
}

// RestoreSession replays the stored cookies into the browser. It returns
// false when the store is absent or empty, meaning the caller must fall back
// to interactive login. Individual cookies the browser rejects are logged
// and skipped; the session is still considered restored as long as the
// store was non-empty.
func (s *CookieStore) RestoreSession(ctx context.Context, baseURL string) (bool, error) {
	cookies, err := s.Load()
	if err != nil {
		return false, err
	}
	if len(cookies) == 0 {
		return false, nil
	}

	s.logger.Info("Restoring session from cookie store.",
		zap.String("path", s.path), zap.Int("count", len(cookies)))

	// The site must be loaded before its cookies can be set.
	if err := chromedp.Run(ctx, chromedp.Navigate(baseURL)); err != nil {
		return false, fmt.Errorf("failed to navigate to %q before cookie replay: %w", baseURL, err)
	}

	added := 0
	for _, c := range cookies {
		c := c
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.SameSite != "" {
				p = p.WithSameSite(normalizeSameSite(c.SameSite))
			}
			if c.Expiry > 0 {
				// Expiry is coerced to whole seconds before replay.
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expiry), 0))
				p = p.WithExpires(&expires)
			}
			return p.Do(ctx)
		}))
		if err != nil {
			// Rejected cookies are expected (domain mismatches, expired
			// entries) and never abort the replay loop.
			s.logger.Debug("Browser rejected cookie; skipping.",
				zap.String("name", c.Name), zap.Error(err))
			continue
		}
		added++
	}

	s.logger.Info("Cookie replay complete.",
		zap.Int("added", added), zap.Int("total", len(cookies)))

	if err := chromedp.Run(ctx, chromedp.Reload()); err != nil {
		return false, fmt.Errorf("failed to reload page after cookie replay: %w", err)
	}
	return true, nil
}

// SaveSession exports the browser's current cookies into the store,
// replacing its previous contents. Used after interactive login.
func (s *CookieStore) SaveSession(ctx context.Context) error {
	var exported []Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		browserCookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		exported = make([]Cookie, 0, len(browserCookies))
		for _, bc := range browserCookies {
			exported = append(exported, Cookie{
				Name:     bc.Name,
				Value:    bc.Value,
				Domain:   bc.Domain,
				Path:     bc.Path,
				Expiry:   bc.Expires,
				Secure:   bc.Secure,
				HTTPOnly: bc.HTTPOnly,
				SameSite: string(bc.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to export cookies from browser: %w", err)
	}
	return s.Save(exported)
}
