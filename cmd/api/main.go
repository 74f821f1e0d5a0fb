package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/api/handlers"
	"github.com/mootann/arxiv-daily/internal/arxiv"
	"github.com/mootann/arxiv-daily/internal/cache/redis"
	"github.com/mootann/arxiv-daily/internal/github"
	"github.com/mootann/arxiv-daily/internal/ingest"
	"github.com/mootann/arxiv-daily/internal/metrics"
	"github.com/mootann/arxiv-daily/internal/middleware/ratelimit"
	"github.com/mootann/arxiv-daily/internal/papers"
	"github.com/mootann/arxiv-daily/internal/storage/sqlite"
	"github.com/mootann/arxiv-daily/pkg/config"
	appLogger "github.com/mootann/arxiv-daily/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting arXiv daily API server")

	metrics.Register()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	limiter := arxiv.NewLimiter(time.Duration(cfg.Arxiv.MinIntervalMS) * time.Millisecond)
	arxivClient := arxiv.NewClient(cfg.Arxiv, limiter)
	githubClient := github.NewClient(cfg.GitHub)

	paperTTL := time.Duration(cfg.Cache.PaperTTLHours) * time.Hour
	listTTL := time.Duration(cfg.Cache.ListTTLMinutes) * time.Minute
	countsTTL := time.Duration(cfg.Cache.CountsTTLHours) * time.Hour

	persister := papers.NewPersister(sqliteClient, redisClient, paperTTL)
	paperService := papers.NewService(sqliteClient, redisClient, arxivClient, persister, listTTL, paperTTL, countsTTL)

	syncJob := ingest.NewJob(cfg.Sync, arxivClient, persister, paperService, sqliteClient, githubClient)
	if err := syncJob.Start(); err != nil {
		appLogger.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer syncJob.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
	})
	defer rateLimiter.Stop()

	papersHandler := handlers.NewPapersHandler(paperService)
	searchHandler := handlers.NewSearchHandler(arxivClient, persister)
	syncHandler := handlers.NewSyncHandler(syncJob)

	api := app.Group("/api/v1", rateLimiter.Middleware())

	api.Get("/papers", papersHandler.ListPapers)
	api.Get("/papers/counts", papersHandler.GetCategoryCounts)
	api.Get("/papers/:id", papersHandler.GetPaper)
	api.Post("/papers/batch", papersHandler.GetPapersBatch)

	api.Get("/search", searchHandler.SearchByKeyword)
	api.Post("/search", searchHandler.SearchAndIngest)
	api.Get("/search/author", searchHandler.SearchByAuthor)
	api.Get("/search/recent", searchHandler.SearchRecent)
	api.Get("/search/category/:category", searchHandler.SearchByCategory)

	api.Post("/sync", syncHandler.TriggerSync)
	api.Get("/sync/status", syncHandler.SyncStatus)

	app.Get("/metrics", metrics.Handler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
