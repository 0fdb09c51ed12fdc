// Package httpapi exposes the herd service over a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"herdcore/internal/core"
)

// Service is the subset of core.Service served over HTTP.
type Service interface {
	CreateAnimal(ctx context.Context, a core.Animal) (core.Animal, core.Result, error)
	CreateGroup(ctx context.Context, g core.AnimalGroup) (core.AnimalGroup, core.Result, error)
	GetAnimal(ctx context.Context, id string) (core.Animal, error)
	AnimalLocation(ctx context.Context, id string, at time.Time) (string, bool, error)
	CurrentWeight(ctx context.Context, subjectID string) (core.WeightRecord, bool, error)

	CreateEvent(ctx context.Context, ev core.Event) (core.Event, core.Result, error)
	ValidateEvent(ctx context.Context, id string) (core.Event, core.Result, error)
	CancelEvent(ctx context.Context, id string) (core.Event, core.Result, error)
	DraftEvent(ctx context.Context, id string) (core.Event, core.Result, error)
	DeleteEvent(ctx context.Context, id string) (core.Result, error)

	CreateFeedInventory(ctx context.Context, inv core.FeedInventory) (core.FeedInventory, core.Result, error)
	ValidateFeedInventory(ctx context.Context, id string) (core.FeedInventory, core.Result, error)
	DraftFeedInventory(ctx context.Context, id string) (core.FeedInventory, core.Result, error)

	CreateEventOrder(ctx context.Context, o core.EventOrder) (core.EventOrder, core.Result, error)
	ConfirmEventOrder(ctx context.Context, id string) (core.EventOrder, core.Result, error)
	CancelEventOrder(ctx context.Context, id string) (core.EventOrder, core.Result, error)
	DraftEventOrder(ctx context.Context, id string) (core.EventOrder, core.Result, error)
}

// Options configures the router. A zero RateLimit disables limiting; a nil
// Gatherer serves the default prometheus registry.
type Options struct {
	Logger    *zap.Logger
	RateLimit float64
	RateBurst int
	Gatherer  prometheus.Gatherer
}

// New wires the gin engine with the herd routes and middlewares.
func New(svc Service, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	h := &handler{svc: svc, logger: logger}
	api := r.Group("/api")
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		api.Use(rateLimiter(rate.Limit(opts.RateLimit), burst))
	}

	api.POST("/animals", h.createAnimal)
	api.GET("/animals/:id", h.getAnimal)
	api.POST("/groups", h.createGroup)

	api.POST("/events", h.createEvent)
	api.POST("/events/:id/validate", h.eventTransition(svc.ValidateEvent))
	api.POST("/events/:id/cancel", h.eventTransition(svc.CancelEvent))
	api.POST("/events/:id/draft", h.eventTransition(svc.DraftEvent))
	api.DELETE("/events/:id", h.deleteEvent)

	api.POST("/feed-inventories", h.createFeedInventory)
	api.POST("/feed-inventories/:id/validate", h.inventoryTransition(svc.ValidateFeedInventory))
	api.POST("/feed-inventories/:id/draft", h.inventoryTransition(svc.DraftFeedInventory))

	api.POST("/event-orders", h.createEventOrder)
	api.POST("/event-orders/:id/confirm", h.orderTransition(svc.ConfirmEventOrder))
	api.POST("/event-orders/:id/cancel", h.orderTransition(svc.CancelEventOrder))
	api.POST("/event-orders/:id/draft", h.orderTransition(svc.DraftEventOrder))

	logger.Info("router initialized")
	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
