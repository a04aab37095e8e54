package router

import (
	"OceanBooks/internal/handler"
	"OceanBooks/internal/logger"
	"OceanBooks/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitRouter builds API routes.
func InitRouter(h *handler.Handler, log *zap.Logger, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger(log), logger.GinRecovery(log))
	r.Use(utils.CORSMiddleware(corsOrigins))

	r.GET("/", h.Index)
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		books := api.Group("/books")
		{
			books.GET("", h.ListBooks)
			books.POST("", h.UploadBook)
			books.GET("/:id", h.GetBook)
			books.PUT("/:id", h.UpdateBook)
			books.DELETE("/:id", h.DeleteBook)
			books.GET("/:id/download", h.DownloadBook)
		}

		admin := api.Group("/admin")
		{
			admin.GET("/stats", h.AdminStats)
			admin.POST("/login", h.AdminLogin)
		}

		api.GET("/thumbnails/:name", h.Thumbnail)
	}
	return r
}
