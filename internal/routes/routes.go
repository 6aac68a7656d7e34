package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guvercin/messaging-backend/internal/handler"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	messageHandler *handler.MessageHandler,
	fileHandler *handler.FileHandler,
	directoryHandler *handler.DirectoryHandler,
	wsHandler *handler.WSHandler,
) {
	// Health and metrics
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Real-time sessions
	router.GET("/ws/:username", wsHandler.Connect)
	router.GET("/ws/seen/:username", wsHandler.ConnectSeen)

	api := router.Group("/api/v1")

	users := api.Group("/users")
	{
		users.GET("/:username/messages/:peer", messageHandler.GetConversation)
		users.GET("/:username/chats", messageHandler.GetChats)
		users.DELETE("/:username/messages/:message_id", messageHandler.SoftDelete)
		users.GET("/:username/public-key", directoryHandler.GetPublicKey)
	}

	// Global, irreversible removal
	api.DELETE("/messages/:message_id", messageHandler.HardDelete)

	// Stored file downloads; keys are <receiver>/<file_name>
	api.GET("/files/:username/:file_name", fileHandler.Download)
}
