package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guvercin/messaging-backend/internal/common"
	"github.com/guvercin/messaging-backend/internal/service"
)

// MessageHandler handles the HTTP message surface
type MessageHandler struct {
	service service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func parseMessageID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid message id", err)
		return 0, false
	}
	return uint(id), true
}

// GetConversation handles GET /users/:username/messages/:peer
// Returns the viewer's view of the conversation, oldest first.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	viewer := c.Param("username")
	peer := c.Param("peer")

	messages, err := h.service.Conversation(viewer, peer)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "conversation lookup failed", err)
		return
	}

	common.SuccessResponse(c, messages, &common.Meta{Count: len(messages)})
}

// GetChats handles GET /users/:username/chats
// Returns the usernames the user has active conversations with.
func (h *MessageHandler) GetChats(c *gin.Context) {
	username := c.Param("username")

	partners, err := h.service.Partners(username)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "chat list lookup failed", err)
		return
	}
	if partners == nil {
		partners = []string{}
	}

	common.SuccessResponse(c, gin.H{"users": partners}, &common.Meta{Count: len(partners)})
}

// SoftDelete handles DELETE /users/:username/messages/:message_id
// Hides the message for this user only. Idempotent: repeats report
// already_deleted.
func (h *MessageHandler) SoftDelete(c *gin.Context) {
	username := c.Param("username")
	id, ok := parseMessageID(c, "message_id")
	if !ok {
		return
	}

	outcome, err := h.service.SoftDelete(username, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "message not found", nil)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "delete failed", err)
		return
	}

	common.SuccessResponse(c, gin.H{"result": string(outcome)}, nil)
}

// HardDelete handles DELETE /messages/:message_id
// Permanently removes the message row and its stored file, if any.
func (h *MessageHandler) HardDelete(c *gin.Context) {
	id, ok := parseMessageID(c, "message_id")
	if !ok {
		return
	}

	if err := h.service.HardDelete(c.Request.Context(), id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "message not found", nil)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "delete failed", err)
		return
	}

	common.SuccessResponse(c, gin.H{"result": "deleted"}, nil)
}

// FileHandler serves stored file downloads
type FileHandler struct {
	files service.FileService
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(files service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// Download handles GET /files/:username/:file_name
// Streams the newest stored file for (username, file_name). A reference
// whose bytes are missing answers 410 Gone, distinct from 404.
func (h *FileHandler) Download(c *gin.Context) {
	username := c.Param("username")
	fileName := c.Param("file_name")

	dl, err := h.files.Download(c.Request.Context(), username, fileName)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			common.ErrorResponse(c, http.StatusNotFound, "file not found", nil)
		case errors.Is(err, common.ErrGone):
			common.ErrorResponse(c, http.StatusGone, "file content no longer available", nil)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "download failed", err)
		}
		return
	}
	defer dl.Reader.Close()

	contentType := dl.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.FileName))
	c.Status(http.StatusOK)
	io.Copy(c.Writer, dl.Reader) //nolint:errcheck
}
