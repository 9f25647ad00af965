// File: internal/server/handlers_profiles.go
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xkilldash9x/mediaforge/internal/store"
)

type profileRequest struct {
	Name       string `json:"name" binding:"required"`
	Bio        string `json:"bio"`
	AvatarPath string `json:"avatar_path"`
}

func (s *Server) handleListProfiles(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	profiles, err := s.store.ProfilesByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list profiles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (s *Server) handleCreateProfile(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := &store.Profile{
		UserID:     userID,
		Name:       req.Name,
		Bio:        req.Bio,
		AvatarPath: req.AvatarPath,
	}
	if err := s.store.CreateProfile(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create profile"})
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(c *gin.Context) {
	profile, ok := s.ownedProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	profile, ok := s.ownedProfile(c)
	if !ok {
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile.Name = req.Name
	profile.Bio = req.Bio
	profile.AvatarPath = req.AvatarPath
	if err := s.store.UpdateProfile(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(c *gin.Context) {
	profile, ok := s.ownedProfile(c)
	if !ok {
		return
	}
	if err := s.store.DeleteProfile(c.Request.Context(), profile.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete profile"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedProfile loads the :id profile and enforces that it belongs to the
// authenticated user. Writes the error response itself on failure.
func (s *Server) ownedProfile(c *gin.Context) (*store.Profile, bool) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return nil, false
	}

	profile, err := s.store.ProfileByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "profile not found"})
		return nil, false
	}
	if profile.UserID != userID {
		// Hide other users' profiles entirely.
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return nil, false
	}
	return profile, true
}
