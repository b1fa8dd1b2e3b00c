package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/demoslots/internal/config"
	"github.com/geocoder89/demoslots/internal/http/handlers"
	"github.com/geocoder89/demoslots/internal/http/middlewares"
	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Reservations handlers.Reservations
	Store        handlers.Pinger
	Prom         *observability.Prom
	// serves /metrics when set
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, deps Deps, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("demoslots-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health
	h := handlers.NewHealthHandler(deps.Store)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	slotsHandler := handlers.NewSlotsHandler(deps.Reservations, log)
	studentsHandler := handlers.NewStudentsHandler(deps.Reservations, log)

	limiter := middlewares.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	register := []gin.HandlerFunc{
		middlewares.MaxBodyBytes(cfg.MaxBodyBytes),
		middlewares.RequireBodyType("application/json", "application/x-www-form-urlencoded", "multipart/form-data"),
		limiter.RateLimiterMiddleware(middlewares.KeyByIP),
		studentsHandler.Register,
	}

	// the registration page posts to /api/students; both prefixes serve the same routes
	for _, g := range []*gin.RouterGroup{r.Group(""), r.Group("/api")} {
		g.GET("/demo-slots", slotsHandler.ListSlots)
		g.GET("/students", studentsHandler.List)
		g.POST("/students", register...)
	}

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	return r
}
