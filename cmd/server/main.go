package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"todo-api/config"
	"todo-api/internal/handler"
	"todo-api/internal/httpserver"
	"todo-api/internal/repository"
	"todo-api/internal/service/task"
	"todo-api/pkg/circuitbreaker"
	"todo-api/pkg/db"
	"todo-api/pkg/logger"
	"todo-api/pkg/mq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("todo-api stopped", zap.Error(err))
	}
	logger.Info("todo-api shutdown complete")
}

// run starts the API and blocks until ctx is done. Every startup failure,
// schema creation included, is returned before the listener binds.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting todo-api...",
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("db_name", cfg.DB.Name),
		zap.String("port", cfg.Server.Port),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer dbConn.Close()

	// Schema must exist before the listener binds.
	schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
	err = repository.EnsureSchema(schemaCtx, dbConn, logger)
	schemaCancel()
	if err != nil {
		return fmt.Errorf("initialize database schema: %w", err)
	}

	// Events
	var publisher mq.EventPublisher = mq.NopPublisher{}
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ)
		if err != nil {
			return fmt.Errorf("init MQ publisher: %w", err)
		}
		publisher = mq.NewGuardedPublisher(p, circuitbreaker.New(circuitbreaker.DefaultConfig()))
		logger.Info("Task events enabled",
			zap.String("exchange", p.Exchange()),
			zap.String("kind", cfg.MQ.ExchangeKind),
		)
	}
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(dbConn, logger)
	dueLoc, err := cfg.Tasks.Location()
	if err != nil {
		return fmt.Errorf("load tasks time zone: %w", err)
	}
	taskService := task.NewService(taskRepo, publisher, logger, task.WithLocation(dueLoc))
	taskHandler := handler.NewTaskHandler(taskService, logger)

	gin.SetMode(cfg.Server.Mode)
	router := httpserver.NewRouter(taskHandler, logger, dbConn, publisher)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Todo API server listening",
			zap.String("addr", srv.Addr),
			zap.String("docs", "http://localhost:"+cfg.Server.Port),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down todo-api gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
