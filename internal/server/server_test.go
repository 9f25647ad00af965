// File: internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mediaforge/internal/config"
	"github.com/xkilldash9x/mediaforge/internal/engage"
	"github.com/xkilldash9x/mediaforge/internal/imagegen"
	"github.com/xkilldash9x/mediaforge/internal/metadata"
	"github.com/xkilldash9x/mediaforge/internal/store"
)

type stubGenerator struct {
	result *imagegen.Result
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	r.Prompt = req.Prompt
	return &r, nil
}

type stubEngager struct {
	comments []engage.Comment
	ideas    []engage.PostIdea
	err      error
}

func (s *stubEngager) GenerateComments(ctx context.Context, mediaPath, desc string, count int) ([]engage.Comment, error) {
	return s.comments, s.err
}

func (s *stubEngager) SuggestPostIdeas(ctx context.Context, mediaPath string, count int) ([]engage.PostIdea, error) {
	return s.ideas, s.err
}

type stubExtractor struct {
	info *metadata.Info
	err  error
}

func (s *stubExtractor) Extract(ctx context.Context, path string) (*metadata.Info, error) {
	if s.err != nil {
		return nil, s.err
	}
	info := *s.info
	info.Path = path
	return &info, nil
}

type stubDownloader struct {
	path string
	err  error
}

func (s *stubDownloader) Download(ctx context.Context, rawURL, outputDir string) (string, error) {
	return s.path, s.err
}

type testEnv struct {
	srv   *Server
	store *store.Store
	token string
}

func newTestEnv(t *testing.T, eng Engager) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := New(
		config.ServerConfig{Addr: ":0", PublicRoot: t.TempDir(), JWTSecret: "test-secret"},
		st,
		&stubGenerator{result: &imagegen.Result{Items: []imagegen.Item{{Index: 1, Filename: "image_1.jpg"}}}},
		eng,
		&stubExtractor{info: &metadata.Info{Kind: metadata.KindImage, Fields: map[string]string{}, Year: 2020}},
		&stubDownloader{path: "/public/scraped/clip.mp4"},
		nil,
		logger,
	)

	env := &testEnv{srv: srv, store: st}
	env.token = env.register(t, "op@example.com", "operator", "hunter22hunter22")
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, email, username, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "username": username, "password": password,
	}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("login with valid credentials", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "op@example.com", "password": "hunter22hunter22",
		}, false)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "op@example.com", "password": "wrong-password",
		}, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("login with unknown email gets same answer", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "ghost@example.com", "password": "whatever1234",
		}, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email": "op@example.com", "username": "operator2", "password": "hunter22hunter22",
		}, false)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("protected route without token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/profiles", nil, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("protected route with garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestProfileCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/profiles", map[string]string{
		"name": "Main", "bio": "persona one",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var profile store.Profile
	decodeJSON(t, w, &profile)

	t.Run("list", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/profiles", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Profiles []store.Profile `json:"profiles"`
		}
		decodeJSON(t, w, &resp)
		assert.Len(t, resp.Profiles, 1)
	})

	t.Run("update", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/profiles/"+profile.ID, map[string]string{
			"name": "Renamed", "bio": "updated",
		}, true)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/profiles/"+profile.ID, nil, true)
		var got store.Profile
		decodeJSON(t, w, &got)
		assert.Equal(t, "Renamed", got.Name)
	})

	t.Run("foreign profile is invisible", func(t *testing.T) {
		otherToken := env.register(t, "two@example.com", "second", "hunter22hunter22")
		req := httptest.NewRequest(http.MethodGet, "/api/profiles/"+profile.ID, nil)
		req.Header.Set("Authorization", "Bearer "+otherToken)
		w := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/profiles/"+profile.ID, nil, true)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(t, http.MethodGet, "/api/profiles/"+profile.ID, nil, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPostFlow(t *testing.T) {
	env := newTestEnv(t, &stubEngager{comments: []engage.Comment{
		{Username: "gen_ana", Comment: "love it"},
	}})

	w := env.do(t, http.MethodPost, "/api/profiles", map[string]string{"name": "P"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var profile store.Profile
	decodeJSON(t, w, &profile)

	w = env.do(t, http.MethodPost, "/api/posts", map[string]any{
		"profile_id":  profile.ID,
		"description": "sunset",
		"media_path":  "/media/sunset.jpg",
		"tags":        []string{"sunset", "beach"},
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post store.Post
	decodeJSON(t, w, &post)

	t.Run("metadata filled in from extractor", func(t *testing.T) {
		assert.Equal(t, "image", post.MediaKind)
		assert.Equal(t, 2020, post.Year)
	})

	t.Run("list filtered by year", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/posts?year=2020", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Posts []store.Post `json:"posts"`
		}
		decodeJSON(t, w, &resp)
		assert.Len(t, resp.Posts, 1)
	})

	t.Run("bad year query", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/posts?year=abc", nil, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("like and unlike", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%s/like", post.ID), nil, true)
		assert.Equal(t, http.StatusOK, w.Code)
		w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%s/like", post.ID), nil, true)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("manual comment", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%s/comments", post.ID), map[string]string{
			"username": "real_user", "body": "nice shot",
		}, true)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("synthetic engagement persisted", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%s/engage", post.ID), nil, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, "/api/posts/"+post.ID, nil, true)
		var got store.Post
		decodeJSON(t, w, &got)
		var synthetic int
		for _, cm := range got.Comments {
			if cm.Synthetic {
				synthetic++
				assert.Equal(t, "gen_ana", cm.Username)
			}
		}
		assert.Equal(t, 1, synthetic)
	})

	t.Run("years archive", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/years", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Years []int `json:"years"`
		}
		decodeJSON(t, w, &resp)
		assert.Equal(t, []int{2020}, resp.Years)
	})

	t.Run("missing post is 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/posts/nope", nil, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestEngageUnconfigured(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/profiles", map[string]string{"name": "P"}, true)
	var profile store.Profile
	decodeJSON(t, w, &profile)
	w = env.do(t, http.MethodPost, "/api/posts", map[string]any{
		"profile_id": profile.ID, "media_path": "/m.jpg",
	}, true)
	var post store.Post
	decodeJSON(t, w, &post)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%s/engage", post.ID), nil, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodPost, "/api/ideas", map[string]any{"path": "/m.jpg"}, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGenerateImage(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/generate/image", map[string]any{
			"prompt": "a lighthouse at dusk",
		}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result struct {
			Prompt string          `json:"prompt"`
			Items  []imagegen.Item `json:"items"`
			Posts  []store.Post    `json:"posts"`
		}
		decodeJSON(t, w, &result)
		assert.Equal(t, "a lighthouse at dusk", result.Prompt)
		assert.Len(t, result.Items, 1)
		assert.Empty(t, result.Posts)
	})

	t.Run("profile id creates post rows", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/profiles", map[string]string{"name": "Gen"}, true)
		require.Equal(t, http.StatusCreated, w.Code)
		var profile store.Profile
		decodeJSON(t, w, &profile)

		w = env.do(t, http.MethodPost, "/api/generate/image", map[string]any{
			"prompt":     "a lighthouse at dusk",
			"profile_id": profile.ID,
		}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result struct {
			Posts []store.Post `json:"posts"`
		}
		decodeJSON(t, w, &result)
		require.Len(t, result.Posts, 1)
		assert.Equal(t, profile.ID, result.Posts[0].ProfileID)
		assert.Equal(t, "a lighthouse at dusk", result.Posts[0].Description)
	})

	t.Run("missing prompt", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/generate/image", map[string]any{}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pipeline failure maps to 502", func(t *testing.T) {
		env.srv.generator = &stubGenerator{err: imagegen.ErrNoResults}
		defer func() {
			env.srv.generator = &stubGenerator{result: &imagegen.Result{Items: []imagegen.Item{{Index: 1}}}}
		}()
		w := env.do(t, http.MethodPost, "/api/generate/image", map[string]any{"prompt": "x"}, true)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestScrape(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/scrape", map[string]string{
		"url": "https://www.youtube.com/watch?v=abc",
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	env.srv.scraper = &stubDownloader{err: fmt.Errorf("network down")}
	w = env.do(t, http.MethodPost, "/api/scrape", map[string]string{
		"url": "https://www.youtube.com/watch?v=abc",
	}, true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
