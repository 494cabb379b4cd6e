package main

import (
	"alcyxob/motion-coach/internal/aiclient"
	"alcyxob/motion-coach/internal/api"
	"alcyxob/motion-coach/internal/config"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/metrics"
	"alcyxob/motion-coach/internal/repository"
	"alcyxob/motion-coach/internal/repository/memory"
	"alcyxob/motion-coach/internal/repository/mongo"
	"alcyxob/motion-coach/internal/service"
	"alcyxob/motion-coach/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// repositories groups the stores of one database driver.
type repositories struct {
	users     repository.UserRepository
	exercises repository.ExerciseRepository
	clients   repository.ClientRepository
	images    repository.ImageRepository
	media     repository.MediaRepository
	analyses  repository.AnalysisRepository
}

// @title Motion Coach API
// @version 1.0
// @description Media ingestion and AI motion analysis for coaches and athletes.
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	appLog, err := logger.New(cfg.Server.Env)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("Configuration loaded", "env", cfg.Server.Env, "database", cfg.Database.Driver, "storage", cfg.Storage.Driver)

	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	expiration, err := cfg.JWT.Expiration()
	if err != nil {
		appLog.Fatal("Invalid JWT expiration", "error", err)
	}

	// --- Database ---
	repos, closeDB := openRepositories(cfg.Database, appLog)
	defer closeDB()

	// --- Initialize Storage ---
	fileStorage, err := openStorage(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize file storage", "driver", cfg.Storage.Driver, "error", err)
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics, err := metrics.New(registry)
	if err != nil {
		appLog.Fatal("Failed to register metrics", "error", err)
	}

	aiClient := aiclient.New(cfg.AI, aiclient.WithObserver(appMetrics))

	// --- Initialize Services ---
	authService := service.NewAuthService(repos.users, cfg.JWT.Secret, expiration, cfg.Auth.AllowAdminSignup)
	exerciseService := service.NewExerciseService(repos.exercises)
	clientService := service.NewClientService(repos.clients)
	imageService := service.NewImageService(repos.images, fileStorage, cfg.Server.PublicURL, appLog)
	ingestionService := service.NewIngestionService(repos.exercises, repos.media, fileStorage, aiClient, service.IngestionOptions{
		BaseURL:         cfg.Server.PublicURL,
		MaxVideoSeconds: cfg.Media.MaxVideoSeconds,
		IdempotencyTTL:  cfg.Idempotency.TTL,
	}, appMetrics, appLog)
	mediaService := service.NewMediaService(repos.media, repos.exercises, repos.analyses, appLog)
	analysisService := service.NewAnalysisService(repos.media, repos.exercises, repos.analyses, repos.users, aiClient, cfg.AI.StaleAfter, appMetrics, appLog)

	// --- Setup Routes ---
	router := gin.New()
	api.SetupRoutes(router, api.RouterConfig{
		JWTSecret:        cfg.JWT.Secret,
		Development:      cfg.Server.IsDevelopment(),
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		Log:              appLog,
		Metrics:          appMetrics,
		AuthService:      authService,
		ExerciseService:  exerciseService,
		ClientService:    clientService,
		ImageService:     imageService,
		IngestionService: ingestionService,
		MediaService:     mediaService,
		AnalysisService:  analysisService,
		Storage:          fileStorage,
	})

	// --- Start HTTP Server ---
	// No WriteTimeout: uploads wait on the AI service, which has its own timeout.
	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		appLog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("ListenAndServe error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
		return
	}
	appLog.Info("Server exiting")
}

func openRepositories(cfg config.DatabaseConfig, appLog *logger.Logger) (repositories, func()) {
	if cfg.Driver == "memory" {
		appLog.Warn("Using the in-memory store; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			users:     store.Users(),
			exercises: store.Exercises(),
			clients:   store.Clients(),
			images:    store.Images(),
			media:     store.Media(),
			analyses:  store.Analyses(),
		}, func() {}
	}

	dbClient, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		appLog.Fatal("Could not connect to MongoDB", "error", err)
	}
	appDB := dbClient.Database(cfg.Name)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
		appLog.Fatal("Could not create indexes", "error", err)
	}
	appLog.Info("Database connection established", "database", cfg.Name)

	return repositories{
			users:     mongo.NewMongoUserRepository(appDB),
			exercises: mongo.NewMongoExerciseRepository(appDB),
			clients:   mongo.NewMongoClientRepository(appDB),
			images:    mongo.NewMongoImageRepository(appDB),
			media:     mongo.NewMongoMediaRepository(appDB),
			analyses:  mongo.NewMongoAnalysisRepository(appDB),
		}, func() {
			if err := mongo.DisconnectDB(dbClient); err != nil {
				appLog.Error("Failed to disconnect MongoDB", "error", err)
			}
		}
}

func openStorage(cfg config.Config, appLog *logger.Logger) (storage.FileStorage, error) {
	if cfg.Storage.Driver == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return storage.NewS3Storage(ctx, cfg.S3, appLog)
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir)
}
