package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guvercin/messaging-backend/internal/common"
	"github.com/guvercin/messaging-backend/internal/repository"
)

// DirectoryHandler exposes read-only lookups against the external user
// directory.
type DirectoryHandler struct {
	directory repository.UserDirectory
}

// NewDirectoryHandler creates a new DirectoryHandler
func NewDirectoryHandler(directory repository.UserDirectory) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// GetPublicKey handles GET /users/:username/public-key
func (h *DirectoryHandler) GetPublicKey(c *gin.Context) {
	username := c.Param("username")

	key, err := h.directory.PublicKey(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "user not found", nil)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "directory lookup failed", err)
		return
	}

	common.SuccessResponse(c, gin.H{"username": username, "public_key": key}, nil)
}
