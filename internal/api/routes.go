package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/api/middleware"
	"github.com/raon-c/re-me-sub000/internal/auth"
	"github.com/raon-c/re-me-sub000/internal/config"
	"github.com/raon-c/re-me-sub000/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
) {
	invitationHandler := NewInvitationHandler(db, asynqClient, storageClient)
	templateHandler := NewTemplateHandler(db)
	authHandler := NewAuthHandler(db, authService, redisClient, logger, cfg.API.CookieDomain)
	editorHandler := NewEditorWsHandler(db, redisClient, authService, logger, cfg.API.AllowedOrigins, cfg.Editor.AutosaveDebounce())
	assetHandler := NewAssetHandler(db, storageClient, logger, cfg.Clamd.Addr)
	viewHandler := NewViewHandler(db, storageClient)
	authMiddleware := middleware.AuthMiddleware(authService)

	// 公开查看页不走 /v1，路径即分享链接。
	router.GET("/view/:slug", viewHandler.ViewInvitation)
	router.GET("/view/:slug/pdf", viewHandler.DownloadPDF)

	v1 := router.Group("/v1")
	v1.Use(middleware.SlogLoggerMiddleware(logger))
	{
		v1.GET("/editor/ws", editorHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		invitationGroup := v1.Group("/invitations")
		invitationGroup.Use(authMiddleware)
		{
			invitationGroup.POST("", invitationHandler.CreateInvitation)
			invitationGroup.GET("", invitationHandler.ListInvitations)
			invitationGroup.GET("/:id", invitationHandler.GetInvitation)
			invitationGroup.PUT("/:id/content", invitationHandler.UpdateContent)
			invitationGroup.POST("/:id/publish", invitationHandler.PublishInvitation)
			invitationGroup.DELETE("/:id", invitationHandler.DeleteInvitation)
		}

		templateGroup := v1.Group("/templates")
		templateGroup.Use(authMiddleware)
		{
			templateGroup.POST("", templateHandler.CreateTemplate)
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
		}

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.POST("/upload", assetHandler.UploadAsset)
			assetGroup.GET("", assetHandler.ListAssets)
			assetGroup.GET("/view", assetHandler.GetAssetURL)
			assetGroup.DELETE("", assetHandler.DeleteAsset)
		}
	}
}
