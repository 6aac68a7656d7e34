package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/guvercin/messaging-backend/internal/common"
	"github.com/guvercin/messaging-backend/internal/domain"
	"github.com/guvercin/messaging-backend/internal/repository"
	"github.com/guvercin/messaging-backend/internal/service"
	"github.com/guvercin/messaging-backend/internal/ws"
	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
)

// WSHandler upgrades chat and seen-channel connections and runs their
// read loops. Each connection is served by its own handler goroutine;
// a stalled peer blocks only that goroutine.
type WSHandler struct {
	sessions       *ws.Registry
	seenSessions   *ws.Registry
	delivery       service.DeliveryService
	files          service.FileService
	directory      repository.UserDirectory
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(
	sessions, seenSessions *ws.Registry,
	delivery service.DeliveryService,
	files service.FileService,
	directory repository.UserDirectory,
	allowedOrigins string,
) *WSHandler {
	h := &WSHandler{
		sessions:       sessions,
		seenSessions:   seenSessions,
		delivery:       delivery,
		files:          files,
		directory:      directory,
		allowedOrigins: parseOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Same-origin requests don't have Origin header
	}

	// If no allowed origins configured, allow all (development mode)
	if len(h.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// accept validates the username against the user directory and upgrades
// the connection.
func (h *WSHandler) accept(c *gin.Context) (*ws.Client, bool) {
	username := c.Param("username")
	if username == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "username required", nil)
		return nil, false
	}

	exists, err := h.directory.Exists(c.Request.Context(), username)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "directory lookup failed", err)
		return nil, false
	}
	if !exists {
		common.ErrorResponse(c, http.StatusNotFound, "unknown user", nil)
		return nil, false
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return nil, false
	}
	return ws.NewClient(conn, username), true
}

// Connect handles GET /ws/:username — the chat session.
func (h *WSHandler) Connect(c *gin.Context) {
	client, ok := h.accept(c)
	if !ok {
		return
	}
	username := client.Username()

	// Last connect wins: any previous session for this username is
	// displaced and closed.
	if prev := h.sessions.Register(username, client); prev != nil {
		prev.Close()
	}
	go client.KeepAlive()

	log := pkglogger.WithUsername(username)
	log.Info().Msg("chat session connected")

	defer func() {
		h.sessions.Unregister(username, client)
		client.Close()
		log.Info().Msg("chat session disconnected")
	}()

	h.readLoop(client)
}

// readLoop processes frames from one chat session strictly in arrival
// order, running the two-frame sub-protocol for file messages.
func (h *WSHandler) readLoop(client *ws.Client) {
	ctx := context.Background()
	transfer := h.files.NewTransfer()
	defer transfer.Abort()

	for {
		msgType, data, err := client.ReadMessage()
		if err != nil {
			// Disconnect is the expected terminal condition.
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if transfer.Pending() {
				transfer.Abort()
				h.sendError(client, "expected binary payload frame")
				continue
			}

			var in domain.InboundMessage
			if err := json.Unmarshal(data, &in); err != nil {
				h.sendError(client, "malformed message frame")
				continue
			}
			if in.Sender == "" || in.Receiver == "" {
				h.sendError(client, "sender and receiver are required")
				continue
			}

			if in.IsFile() {
				if err := transfer.Begin(&in); err != nil {
					h.sendError(client, err.Error())
				}
				continue
			}

			h.deliver(ctx, client, &in)

		case websocket.BinaryMessage:
			meta, err := transfer.Complete(ctx, data)
			if err != nil {
				h.sendError(client, err.Error())
				continue
			}
			h.deliver(ctx, client, meta)
		}
	}
}

// deliver runs the pipeline and surfaces persistence failures to the
// sending client.
func (h *WSHandler) deliver(ctx context.Context, client *ws.Client, in *domain.InboundMessage) {
	if _, err := h.delivery.HandleMessage(ctx, client, in); err != nil {
		if errors.Is(err, common.ErrPersistence) {
			h.sendError(client, "message could not be stored")
		} else {
			h.sendError(client, "message could not be processed")
		}
	}
}

// ConnectSeen handles GET /ws/seen/:username — the seen channel. Every
// acknowledgment received here is applied to the store and relayed
// verbatim to all live seen-channel connections.
func (h *WSHandler) ConnectSeen(c *gin.Context) {
	client, ok := h.accept(c)
	if !ok {
		return
	}
	username := client.Username()

	if prev := h.seenSessions.Register(username, client); prev != nil {
		prev.Close()
	}
	go client.KeepAlive()

	log := pkglogger.WithUsername(username)
	log.Info().Msg("seen channel connected")

	defer func() {
		h.seenSessions.Unregister(username, client)
		client.Close()
		log.Info().Msg("seen channel disconnected")
	}()

	ctx := context.Background()
	for {
		msgType, data, err := client.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			h.sendError(client, "expected text frame")
			continue
		}

		if err := h.delivery.HandleSeen(ctx, data); err != nil {
			switch {
			case errors.Is(err, common.ErrNotFound):
				h.sendError(client, "unknown message id")
			case errors.Is(err, common.ErrInvalidInput):
				h.sendError(client, "malformed seen frame")
			default:
				h.sendError(client, "seen update failed")
			}
		}
	}
}

func (h *WSHandler) sendError(client *ws.Client, msg string) {
	err := client.SendJSON(map[string]string{
		"status": "error",
		"error":  msg,
	})
	if err != nil {
		l := pkglogger.WithUsername(client.Username())
		l.Warn().Err(err).Msg("error frame send failed")
	}
}
