// File: internal/server/handlers_posts.go
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xkilldash9x/mediaforge/internal/store"
)

type createPostRequest struct {
	ProfileID   string   `json:"profile_id" binding:"required"`
	Description string   `json:"description"`
	MediaPath   string   `json:"media_path"`
	Tags        []string `json:"tags"`
	Year        int      `json:"year"`
}

type updatePostRequest struct {
	Description string `json:"description"`
	Year        int    `json:"year"`
}

func (s *Server) handleListPosts(c *gin.Context) {
	filter := store.PostFilter{
		ProfileID: c.Query("profile_id"),
		Tag:       c.Query("tag"),
	}
	if y := c.Query("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
			return
		}
		filter.Year = year
	}
	if l := c.Query("limit"); l != "" {
		if limit, err := strconv.Atoi(l); err == nil {
			filter.Limit = limit
		}
	}
	if o := c.Query("offset"); o != "" {
		if offset, err := strconv.Atoi(o); err == nil {
			filter.Offset = offset
		}
	}

	posts, err := s.store.ListPosts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post := &store.Post{
		ProfileID:   req.ProfileID,
		Description: req.Description,
		MediaPath:   req.MediaPath,
		Year:        req.Year,
	}

	// Fill in kind and creation year from the media itself when the caller
	// did not supply them. Metadata problems never block the post.
	if req.MediaPath != "" {
		if info, err := s.extractor.Extract(c.Request.Context(), req.MediaPath); err == nil {
			post.MediaKind = string(info.Kind)
			if post.Year == 0 {
				post.Year = info.Year
			}
		}
	}

	if err := s.store.CreatePost(c.Request.Context(), post, req.Tags); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (s *Server) handleGetPost(c *gin.Context) {
	post, err := s.store.PostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post := &store.Post{ID: c.Param("id"), Description: req.Description, Year: req.Year}
	if err := s.store.UpdatePost(c.Request.Context(), post); err != nil {
		s.postError(c, err)
		return
	}

	updated, err := s.store.PostByID(c.Request.Context(), post.ID)
	if err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeletePost(c *gin.Context) {
	if err := s.store.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		s.postError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLikePost(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.LikePost(c.Request.Context(), c.Param("id"), userID); err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true})
}

func (s *Server) handleUnlikePost(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.UnlikePost(c.Request.Context(), c.Param("id"), userID); err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false})
}

func (s *Server) handleTagPost(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.TagPost(c.Request.Context(), c.Param("id"), req.Tags); err != nil {
		s.postError(c, err)
		return
	}

	post, err := s.store.PostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment := &store.Comment{
		PostID:   c.Param("id"),
		Username: req.Username,
		Body:     req.Body,
	}
	if err := s.store.AddComment(c.Request.Context(), comment); err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// handleEngagePost generates synthetic comments for a post's media and
// persists them marked as synthetic.
func (s *Server) handleEngagePost(c *gin.Context) {
	if s.engager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engagement generation is not configured"})
		return
	}

	var req struct {
		Count int `json:"count"`
	}
	// Body is optional; default count applies.
	_ = c.ShouldBindJSON(&req)

	post, err := s.store.PostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.postError(c, err)
		return
	}
	if post.MediaPath == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "post has no media to engage with"})
		return
	}

	generated, err := s.engager.GenerateComments(c.Request.Context(), post.MediaPath, post.Description, req.Count)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "engagement generation failed"})
		return
	}

	comments := make([]store.Comment, 0, len(generated))
	for _, g := range generated {
		comments = append(comments, store.Comment{
			PostID:    post.ID,
			Username:  g.Username,
			Body:      g.Comment,
			Synthetic: true,
		})
	}
	if err := s.store.AddComments(c.Request.Context(), comments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist comments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (s *Server) handleYears(c *gin.Context) {
	years, err := s.store.Years(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list years"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

func (s *Server) postError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
}
