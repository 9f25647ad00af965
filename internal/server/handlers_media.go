// File: internal/server/handlers_media.go
package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/imagegen"
	"github.com/xkilldash9x/mediaforge/internal/metadata"
	"github.com/xkilldash9x/mediaforge/internal/scraper"
	"github.com/xkilldash9x/mediaforge/internal/store"
)

type generateImageRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	NumImages int    `json:"num_images"`
	// When set, each saved file also becomes a post on this profile.
	ProfileID string `json:"profile_id"`
}

// handleGenerateImage runs one browser-driven generation batch. Requests
// queue behind the single browser handle; each gets a fresh output
// directory under the public root.
func (s *Server) handleGenerateImage(c *gin.Context) {
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outputDir := filepath.Join(s.cfg.PublicRoot, "generated", uuid.NewString())
	result, err := s.generator.Generate(c.Request.Context(), imagegen.Request{
		Prompt:    req.Prompt,
		OutputDir: outputDir,
		NumImages: req.NumImages,
	})
	if err != nil {
		switch {
		case errors.Is(err, imagegen.ErrNoPromptInput),
			errors.Is(err, imagegen.ErrNoResults),
			errors.Is(err, imagegen.ErrNoImages):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "image generation failed"})
		}
		return
	}

	var posts []store.Post
	if req.ProfileID != "" {
		for _, item := range result.Items {
			post := store.Post{
				ProfileID:   req.ProfileID,
				Description: req.Prompt,
				MediaPath:   item.Path,
				MediaKind:   "image",
			}
			if err := s.store.CreatePost(c.Request.Context(), &post, nil); err != nil {
				s.logger.Warn("Failed to create post for generated image.", zap.Error(err))
				continue
			}
			posts = append(posts, post)
		}
	}

	c.JSON(http.StatusOK, gin.H{"prompt": result.Prompt, "items": result.Items, "posts": posts})
}

// handleExtractMetadata reads technical metadata for a local media file.
func (s *Server) handleExtractMetadata(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.extractor.Extract(c.Request.Context(), req.Path)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleScrape downloads media from a supported external platform into the
// public root.
func (s *Server) handleScrape(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outputDir := filepath.Join(s.cfg.PublicRoot, "scrape", uuid.NewString())
	path, err := s.scraper.Download(c.Request.Context(), req.URL, outputDir)
	if err != nil {
		if errors.Is(err, scraper.ErrUnsupportedSource) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "download failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "kind": metadata.Classify(path)})
}

// handleSuggestIdeas asks the engagement model for post ideas based on a
// media file.
func (s *Server) handleSuggestIdeas(c *gin.Context) {
	if s.engager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engagement generation is not configured"})
		return
	}

	var req struct {
		Path  string `json:"path" binding:"required"`
		Count int    `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ideas, err := s.engager.SuggestPostIdeas(c.Request.Context(), req.Path, req.Count)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "idea generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas})
}
