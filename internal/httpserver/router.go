package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"todo-api/internal/handler"
	"todo-api/pkg/mq"
)

// Version is reported by the banner endpoint.
const Version = "1.0.0"

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(taskHandler *handler.TaskHandler, logger *zap.Logger, db Pinger, publisher mq.EventPublisher) *gin.Engine {
	r := gin.New()

	r.Use(Recovery(logger))
	r.Use(RequestID())
	r.Use(RequestLogger(logger))
	r.Use(cors.Default())
	r.Use(ErrorHandler(logger))

	r.GET("/", banner)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Warn("Readiness check: database not ready", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "db_not_ready"})
			return
		}

		if publisher != nil && !publisher.IsConnected() {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tasks := r.Group("/tasks")
	{
		tasks.GET("", taskHandler.ListTasks)
		tasks.GET("/due-soon", taskHandler.DueSoon)
		tasks.GET("/:id", taskHandler.GetTask)
		tasks.POST("", taskHandler.CreateTask)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("Route not found"))
	})

	return r
}

func banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Todo API is running successfully!",
		"version": Version,
		"endpoints": gin.H{
			"GET /tasks":          "Get all tasks",
			"GET /tasks/:id":      "Get task by ID",
			"POST /tasks":         "Create new task",
			"PUT /tasks/:id":      "Update task",
			"DELETE /tasks/:id":   "Delete task",
			"GET /tasks/due-soon": "Get tasks due within 7 days",
		},
	})
}
