// Package server assembles the Linkrem HTTP router.
package server

import (
	"log/slog"
	"net/http"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/auth"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/cache"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/importexport"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/links"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/logging"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/metrics"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/middleware"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/sessions"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/shortcuts"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/tags"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/tokens"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Uzaifm127/linkrem/api/swagger"
)

// Options carries everything the router needs
type Options struct {
	Engine   *reconcile.Engine
	TagCache *cache.TagCache
	Logger   *slog.Logger

	CORSOrigins []string

	// Optional per-IP limiters for login and token exchange
	LoginLimiter *middleware.IPRateLimiter
	TokenLimiter *middleware.IPRateLimiter
}

func guards(l *middleware.IPRateLimiter) []gin.HandlerFunc {
	if l == nil {
		return nil
	}
	return []gin.HandlerFunc{l.Middleware()}
}

// NewRouter builds the gin engine with every route registered
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db := opts.Engine.DB()

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestID(), logging.Middleware(logger), metrics.Middleware())
	r.Use(middleware.CORS(opts.CORSOrigins))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "linkrem"})
	}
	r.GET("/health", health)
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/health", health)

		// Auth routes (public)
		auth.NewHandler(db).RegisterRoutes(api.Group("/auth"), guards(opts.LoginLimiter)...)

		// Everything else accepts a JWT or an extension token
		protected := api.Group("", tokens.CombinedAuthMiddleware(db, logger))

		tokens.NewHandler(db, logger).RegisterRoutes(protected, guards(opts.TokenLimiter)...)
		links.NewHandler(opts.Engine, logger).RegisterRoutes(protected)
		tags.NewHandler(opts.Engine, opts.TagCache, logger).RegisterRoutes(protected)
		sessions.NewHandler(opts.Engine, logger).RegisterRoutes(protected)
		shortcuts.NewHandler(db, logger).RegisterRoutes(protected)
		importexport.NewHandler(opts.Engine, logger).RegisterRoutes(protected)
	}

	return r
}
