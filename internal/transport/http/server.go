package http

import (
	"github.com/gin-gonic/gin"

	"docchat/internal/bootstrap"
	"docchat/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	uploadHandler := handler.NewUploadHandler(app.UploadService)
	chatHandler := handler.NewChatHandler(app.ChatService, app.Notifier)

	v1 := router.Group("/api/v1")

	uploads := v1.Group("/uploads")
	uploads.POST("", uploadHandler.RequestSlot)
	uploads.POST("/:id/commit", uploadHandler.Commit)

	chats := v1.Group("/chats")
	chats.GET("", chatHandler.List)
	chats.GET("/:id", chatHandler.Get)
	chats.DELETE("/:id", chatHandler.Delete)
	chats.POST("/:id/messages", chatHandler.Send)
	chats.GET("/:id/messages", chatHandler.History)
	chats.GET("/:id/events", chatHandler.Events)

	return router
}
