package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/backend/internal/infrastructure/config"
	"github.com/ledgerly/backend/internal/infrastructure/logger"
	"github.com/ledgerly/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping() error
}

// Router builds the HTTP engine with the standard middleware chain
type Router struct {
	engine     *gin.Engine
	apiVersion string
	health     HealthChecker
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithHealthChecker wires a dependency check into the readiness endpoint
func WithHealthChecker(h HealthChecker) RouterOption {
	return func(r *Router) {
		r.health = h
	}
}

// New creates a Router with logging, recovery, request ID, CORS and tenant
// middleware installed
func New(cfg *config.Config, log *zap.Logger, opts ...RouterOption) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(corsConfig(cfg)),
	)

	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}

	engine.GET("/health", r.healthHandler)
	engine.GET("/ready", r.readyHandler)

	return r
}

// Register mounts the registrar's routes under the versioned, tenant-scoped
// API group
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	api := r.engine.Group("/api/"+r.apiVersion, middleware.TenantMiddleware())
	for _, registrar := range registrars {
		registrar.RegisterRoutes(api)
	}
	return r
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) readyHandler(c *gin.Context) {
	if r.health != nil {
		if err := r.health.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	return corsCfg
}
