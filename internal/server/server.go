// File: internal/server/server.go

// Package server exposes the HTTP API: authentication, profile and post
// CRUD, engagement, and the media pipelines (generation, metadata
// extraction, platform scraping).
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/mediaforge/internal/browser"
	"github.com/xkilldash9x/mediaforge/internal/config"
	"github.com/xkilldash9x/mediaforge/internal/engage"
	"github.com/xkilldash9x/mediaforge/internal/imagegen"
	"github.com/xkilldash9x/mediaforge/internal/metadata"
	"github.com/xkilldash9x/mediaforge/internal/store"
)

// Generator is the slice of the image pipeline the API needs. Narrowed to
// an interface so handler tests can stub it.
type Generator interface {
	Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error)
}

// Engager produces synthetic engagement. Nil-able: when the backing API is
// not configured the endpoints answer 503 instead.
type Engager interface {
	GenerateComments(ctx context.Context, mediaPath, desc string, count int) ([]engage.Comment, error)
	SuggestPostIdeas(ctx context.Context, mediaPath string, count int) ([]engage.PostIdea, error)
}

// Extractor reads media metadata.
type Extractor interface {
	Extract(ctx context.Context, path string) (*metadata.Info, error)
}

// Downloader fetches media from external platforms.
type Downloader interface {
	Download(ctx context.Context, rawURL, outputDir string) (string, error)
}

// Server owns the gin engine and its dependencies.
type Server struct {
	cfg       config.ServerConfig
	store     *store.Store
	generator Generator
	engager   Engager
	extractor Extractor
	scraper   Downloader
	browser   *browser.Manager
	logger    *zap.Logger
	engine    *gin.Engine
}

// New assembles the API server. engager may be nil; everything else is
// required.
func New(cfg config.ServerConfig, st *store.Store, gen Generator, eng Engager, ext Extractor, dl Downloader, mgr *browser.Manager, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		generator: gen,
		engager:   eng,
		extractor: ext,
		scraper:   dl,
		browser:   mgr,
		logger:    logger.Named("server"),
	}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(requestLogger(s.logger), recovery(s.logger))

	e.GET("/healthz", s.handleHealth)
	e.Static("/public", s.cfg.PublicRoot)

	api := e.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.handleRegister)
			auth.POST("/login", s.handleLogin)
		}

		// The media pipelines are open, matching the original deployment
		// where the backend sits on a private network.
		api.POST("/generate/image", s.handleGenerateImage)
		api.POST("/metadata/extract", s.handleExtractMetadata)
		api.POST("/scrape", s.handleScrape)
		api.POST("/ideas", s.handleSuggestIdeas)

		authed := api.Group("")
		authed.Use(s.requireAuth())
		{
			authed.GET("/profiles", s.handleListProfiles)
			authed.POST("/profiles", s.handleCreateProfile)
			authed.GET("/profiles/:id", s.handleGetProfile)
			authed.PUT("/profiles/:id", s.handleUpdateProfile)
			authed.DELETE("/profiles/:id", s.handleDeleteProfile)

			authed.GET("/posts", s.handleListPosts)
			authed.POST("/posts", s.handleCreatePost)
			authed.GET("/posts/:id", s.handleGetPost)
			authed.PUT("/posts/:id", s.handleUpdatePost)
			authed.DELETE("/posts/:id", s.handleDeletePost)
			authed.POST("/posts/:id/like", s.handleLikePost)
			authed.DELETE("/posts/:id/like", s.handleUnlikePost)
			authed.POST("/posts/:id/tags", s.handleTagPost)
			authed.POST("/posts/:id/comments", s.handleAddComment)
			authed.POST("/posts/:id/engage", s.handleEngagePost)

			authed.GET("/years", s.handleYears)
		}
	}
	return e
}

// Run serves until ctx is canceled, then drains in-flight requests. The
// browser is warmed in the background so the first generation request does
// not pay the cold-start cost.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.browser != nil {
		g.Go(func() error {
			s.browser.Warm(gctx)
			return nil
		})
	}

	g.Go(func() error {
		s.logger.Info("HTTP API listening.", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP API.")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Handler exposes the underlying engine, used by httptest in handler tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
