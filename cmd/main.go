package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/ai"
	"github.com/ggokuldas06/tds-project1/internal/api"
	"github.com/ggokuldas06/tds-project1/internal/cache"
	"github.com/ggokuldas06/tds-project1/internal/config"
	"github.com/ggokuldas06/tds-project1/internal/db"
	"github.com/ggokuldas06/tds-project1/internal/deploy"
	"github.com/ggokuldas06/tds-project1/internal/git"
	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/internal/notify"
	"github.com/ggokuldas06/tds-project1/internal/tasks"
)

func main() {
	// .env is a development convenience; deployed instances configure
	// through real environment variables. It must be read before the
	// logger is built so ENVIRONMENT set there selects the encoder.
	dotenvErr := godotenv.Load()

	logging.Init(os.Getenv("ENVIRONMENT"))
	defer logging.Sync()

	if dotenvErr != nil {
		logging.L().Warn("No .env file found, relying on process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, usage())
		logging.L().Fatal("Invalid configuration", zap.Error(err))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logging.L().Info("Starting deployment service",
		zap.String("student_email", cfg.StudentEmail),
		zap.String("github_username", cfg.GitHubUsername),
		zap.String("model", cfg.OpenAIModel),
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port))

	database, err := db.NewDatabase(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logging.L().Fatal("Failed to open run store", zap.Error(err))
	}

	dedupe := cache.NewStore(cfg.RedisURL, cache.DefaultTTL)

	generator := ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	github := git.NewClient(cfg.GitHubToken, cfg.GitHubUsername)
	deployer := deploy.NewDeployer(github, deploy.NewPoller(cfg.PagesTimeout))
	notifier := notify.NewDispatcher(cfg.MaxRetries, cfg.RetryDelays)

	orchestrator := tasks.NewOrchestrator(tasks.Deps{
		Email:     cfg.StudentEmail,
		Generator: generator,
		Deployer:  deployer,
		Notifier:  notifier,
		Runs:      database,
	})
	pool := tasks.NewPool(orchestrator, cfg.WorkerCount, cfg.QueueSize)

	server := api.NewServer(cfg, pool, dedupe, database)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logging.L().Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logging.L().Fatal("Server failed", zap.Error(err))
	case sig := <-quit:
		logging.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop intake first so the drain below only waits on work already
	// accepted.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.L().Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := pool.Shutdown(shutdownCtx); err != nil {
		logging.L().Warn("Task queue did not drain in time", zap.Error(err))
	}

	if err := dedupe.Close(); err != nil {
		logging.L().Warn("Dedupe store close error", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		logging.L().Warn("Run store close error", zap.Error(err))
	}

	logging.L().Info("Shutdown complete")
}

// usage prints startup help when required configuration is absent.
// Kept separate from Load so operators get actionable output instead
// of a bare error line.
func usage() string {
	return fmt.Sprintf(`required environment variables:
  STUDENT_EMAIL     student identity echoed in evaluation callbacks
  STUDENT_SECRET    shared secret checked on every build request
  GITHUB_TOKEN      token with repo + pages scopes
  GITHUB_USERNAME   account that will own generated repositories
  OPENAI_API_KEY    key for the generation endpoint (default %s)`, config.DefaultGenerationURL)
}
