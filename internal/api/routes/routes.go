package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"looprec/backend/internal/api/handlers"
	"looprec/backend/internal/api/middleware"
	"looprec/backend/internal/config"
	"looprec/backend/internal/synth"
)

func SetupRoutes(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	handlers.Logger = logger.Named("handlers")
	handlers.ScriptOptions = synth.Options{
		Browser:    cfg.Script.Browser,
		Timeout:    cfg.Script.Timeout,
		MaxRetries: cfg.Script.MaxRetries,
		MaxPages:   cfg.Script.MaxPages,
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// the session id authorizes the stream; browsers cannot set headers on websockets
		v1.GET("/ws/recording", handlers.RecordingWebSocket)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			devices := protected.Group("/devices")
			{
				devices.GET("", handlers.GetDevices)
				devices.GET("/:id", handlers.GetDevice)
			}

			recording := protected.Group("/recording")
			{
				recording.POST("/start", handlers.StartRecording)
				recording.POST("/stop", handlers.StopRecording)
				recording.GET("/status", handlers.GetRecordingStatus)
				recording.GET("/actions", handlers.GetRecordingActions)
				recording.GET("/actions/export", handlers.ExportRecordingActions)
				recording.DELETE("/actions", handlers.ClearRecordingActions)
				recording.GET("/table-loop", handlers.GetTableLoop)
				recording.POST("/table-loop/toggle", handlers.ToggleTableLoop)
				recording.GET("/script", handlers.DownloadScript)
				recording.POST("/save", handlers.SaveRecording)
			}

			recordings := protected.Group("/recordings")
			{
				recordings.GET("", handlers.GetRecordings)
				recordings.GET("/:id/script", handlers.GetRecordingScript)
			}

			protected.POST("/compile", handlers.CompileActions)
		}
	}

	return router
}
