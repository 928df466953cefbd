package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/communityhub/events/internal/cache"
	"github.com/communityhub/events/internal/config"
	"github.com/communityhub/events/internal/http/handlers"
	"github.com/communityhub/events/internal/http/middlewares"
	"github.com/communityhub/events/internal/identity"
	"github.com/communityhub/events/internal/observability"
	"github.com/communityhub/events/internal/registration"
	"github.com/communityhub/events/internal/repo/postgres"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type Deps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Prom     *observability.Prom
	PromReg  *prometheus.Registry
	Verifier middlewares.TokenVerifier
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("communityevents-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(d.Prom.GinMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// wire up repositories and services
	eventsRepo := postgres.NewEventsRepo(d.Pool, d.Prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)
	manager := registration.NewManager(eventsRepo, jobsRepo, d.Log)
	listCache := cache.New(d.Cfg.ListCacheTTL)

	healthHandler := handlers.NewHealthHandler(d.Pool)
	eventsHandler := handlers.NewEventsHandler(eventsRepo, listCache)
	regsHandler := handlers.NewRegistrationsHandler(manager, eventsRepo, listCache)

	verifier := d.Verifier
	if verifier == nil {
		verifier = identity.NewVerifier(d.Cfg.IdentitySecret)
	}
	authMw := middlewares.NewAuthMiddleware(verifier)

	limiter := middlewares.NewRateLimiter(d.Cfg.RateLimitRequests, d.Cfg.RateLimitWindow)

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)

	if d.PromReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromReg, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// public catalog
	r.GET("/events", eventsHandler.ListEvents)
	r.GET("/events/:id", eventsHandler.GetEventByID)
	r.GET("/events/:id/calendar", regsHandler.Calendar)

	// authenticated surface
	authed := r.Group("/", authMw.RequireAuth())
	{
		authed.GET("/me/events", eventsHandler.ListMyEvents)

		authed.POST("/events", authMw.RequireRole(identity.RoleStaff), eventsHandler.CreateEvent)
		authed.PATCH("/events/:id", eventsHandler.UpdateEvent)
		authed.POST("/events/:id/toggle-active", eventsHandler.ToggleEventActive)
		authed.DELETE("/events/:id", eventsHandler.DeleteEvent)

		mutating := authed.Group("/", limiter.Middleware(middlewares.KeyByUserOrIP))
		{
			mutating.POST("/events/:id/registrations", regsHandler.Register)
			mutating.DELETE("/events/:id/registrations", regsHandler.Cancel)
		}

		authed.GET("/events/:id/registrations/me", regsHandler.Status)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "not_found",
				"message": "Route not found",
			},
		})
	})

	return r
}
