package api

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/metrics"
	"alcyxob/motion-coach/internal/service"
	"alcyxob/motion-coach/internal/storage"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything SetupRoutes wires together.
type RouterConfig struct {
	JWTSecret      string
	Development    bool
	MaxUploadBytes int64
	AllowedOrigins []string
	Log            *logger.Logger
	Metrics        *metrics.Metrics // nil disables /metrics

	AuthService      service.AuthService
	ExerciseService  service.ExerciseService
	ClientService    service.ClientService
	ImageService     service.ImageService
	IngestionService service.IngestionService
	MediaService     service.MediaService
	AnalysisService  service.AnalysisService
	Storage          storage.FileStorage
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.Use(
		// Outermost so recovered panics are still logged and counted.
		RequestLogger(cfg.Log, cfg.Metrics),
		Recovery(cfg.Log, cfg.Development),
		CORS(cfg.AllowedOrigins),
		ErrorHandler(cfg.Log, cfg.Development),
	)

	authHandler := NewAuthHandler(cfg.AuthService)
	exerciseHandler := NewExerciseHandler(cfg.ExerciseService)
	clientHandler := NewClientHandler(cfg.ClientService)
	mediaHandler := NewMediaHandler(cfg.IngestionService, cfg.MediaService, cfg.AnalysisService, cfg.ImageService, cfg.Storage)

	authMiddleware := AuthMiddleware(cfg.JWTSecret)
	adminOnly := RoleMiddleware(domain.RoleAdmin)
	limitUpload := LimitBody(cfg.MaxUploadBytes)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	if cfg.Development {
		pprof.Register(router)
	}
	router.GET("/uploads/:filename", mediaHandler.ServeUpload)

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/profile", authMiddleware, authHandler.Profile)
		}
	}

	protected := apiGroup.Group("")
	protected.Use(authMiddleware)
	{
		// --- Exercise Routes ---
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.GET("/:id", exerciseHandler.GetExercise)
			exerciseGroup.POST("", adminOnly, exerciseHandler.CreateExercise)
			exerciseGroup.PUT("/:id", adminOnly, exerciseHandler.UpdateExercise)
			exerciseGroup.DELETE("/:id", adminOnly, exerciseHandler.DeleteExercise)
		}

		// --- Processed Data Routes ---
		mediaGroup := protected.Group("/processed-data")
		{
			mediaGroup.GET("", mediaHandler.ListProcessedData)
			mediaGroup.POST("", limitUpload, mediaHandler.UploadProcessedData)
			mediaGroup.POST("/analyze", mediaHandler.RequestAnalysis)
			mediaGroup.GET("/:id", mediaHandler.GetProcessedData)
			mediaGroup.GET("/:id/frames", mediaHandler.GetFrames)
		}
		protected.GET("/analysis/:video_id", mediaHandler.GetAnalysis)

		// --- Image Routes ---
		protected.GET("/data/images", mediaHandler.ListImages)
		protected.POST("/data/images", limitUpload, mediaHandler.UploadImage)

		// --- Client Routes ---
		clientGroup := protected.Group("/clients")
		{
			clientGroup.GET("", clientHandler.ListClients)
			clientGroup.POST("", clientHandler.CreateClient)
			clientGroup.GET("/:id", clientHandler.GetClient)
			clientGroup.PUT("/:id", clientHandler.UpdateClient)
		}
	}
}
