package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/triepod-ai/memory-graph/internal/graph"
	"github.com/triepod-ai/memory-graph/pkg/config"
	"github.com/triepod-ai/memory-graph/pkg/errors"
	"github.com/triepod-ai/memory-graph/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting memory graph server...")

	manager := graph.NewManager(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(manager, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := manager.Close(shutdownCtx); err != nil {
			log.Error("Failed to close storage manager", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
	log.Info("Server exited")
}

// newRouter wires the operation surface under /api/memory. The transport
// layer validates argument shapes and maps errors to status codes; the
// manager owns all storage semantics.
func newRouter(manager *graph.Manager, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestID())
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/memory")
	{
		api.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, manager.GetStorageStatus())
		})

		api.GET("/summary", func(c *gin.Context) {
			summary, err := manager.GetGraphSummary(c.Request.Context())
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, summary)
		})

		api.GET("/graph", func(c *gin.Context) {
			var opts graph.ReadOptions
			if err := c.ShouldBindQuery(&opts); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if opts.Limit < 0 || opts.Offset < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit and offset must be non-negative"})
				return
			}
			g, err := manager.ReadGraph(c.Request.Context(), opts)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, g)
		})

		api.POST("/entities", func(c *gin.Context) {
			var req struct {
				Entities []graph.Entity `json:"entities" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			created, err := manager.CreateEntities(c.Request.Context(), req.Entities)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"entities": created})
		})

		api.DELETE("/entities", func(c *gin.Context) {
			var req struct {
				Names []string `json:"names" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := manager.DeleteEntities(c.Request.Context(), req.Names); err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		api.POST("/relations", func(c *gin.Context) {
			var req struct {
				Relations []graph.Relation `json:"relations" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			created, err := manager.CreateRelations(c.Request.Context(), req.Relations)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"relations": created})
		})

		api.DELETE("/relations", func(c *gin.Context) {
			var req struct {
				Relations []graph.Relation `json:"relations" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := manager.DeleteRelations(c.Request.Context(), req.Relations); err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		api.POST("/observations", func(c *gin.Context) {
			var req struct {
				Observations []graph.ObservationAddition `json:"observations" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			results, err := manager.AddObservations(c.Request.Context(), req.Observations)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"results": results})
		})

		api.DELETE("/observations", func(c *gin.Context) {
			var req struct {
				Deletions []graph.ObservationDeletion `json:"deletions" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := manager.DeleteObservations(c.Request.Context(), req.Deletions); err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		api.GET("/search", func(c *gin.Context) {
			query := c.Query("q")
			if query == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
				return
			}
			result, err := manager.SearchNodes(c.Request.Context(), query)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})

		api.POST("/search/relationships", func(c *gin.Context) {
			var req struct {
				Query                     string `json:"query" binding:"required"`
				MaxEntities               *int   `json:"maxEntities"`
				MaxRelationshipsPerEntity *int   `json:"maxRelationshipsPerEntity"`
				FallbackToSimple          *bool  `json:"fallbackToSimple"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			opts := graph.DefaultSearchOptions()
			if req.MaxEntities != nil {
				if *req.MaxEntities < 1 {
					c.JSON(http.StatusBadRequest, gin.H{"error": "maxEntities must be at least 1"})
					return
				}
				opts.MaxEntities = *req.MaxEntities
			}
			if req.MaxRelationshipsPerEntity != nil {
				if *req.MaxRelationshipsPerEntity < 1 {
					c.JSON(http.StatusBadRequest, gin.H{"error": "maxRelationshipsPerEntity must be at least 1"})
					return
				}
				opts.MaxRelationshipsPerEntity = *req.MaxRelationshipsPerEntity
			}
			if req.FallbackToSimple != nil {
				opts.FallbackToSimple = *req.FallbackToSimple
			}
			result, err := manager.SearchWithRelationships(c.Request.Context(), req.Query, opts)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})

		api.POST("/nodes/open", func(c *gin.Context) {
			var req struct {
				Names []string `json:"names" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := manager.OpenNodes(c.Request.Context(), req.Names)
			if err != nil {
				renderError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, result)
		})
	}

	return router
}

// renderError maps core errors to protocol status codes.
func renderError(c *gin.Context, log *zap.Logger, err error) {
	if errors.IsEntityNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.Error("Operation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
}

// requestID attaches a unique id to each request for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString("request_id")),
			zap.String("ip", c.ClientIP()),
		)
	}
}
