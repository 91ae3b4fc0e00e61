package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticket-ledger/internal/config"
	"github.com/iliyamo/event-ticket-ledger/internal/handler"
	"github.com/iliyamo/event-ticket-ledger/internal/ledger"
	"github.com/iliyamo/event-ticket-ledger/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// are not part of the ledger API.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, a *ledger.Actor) {
	e.GET("/healthz", handler.Health(a))
}

// RegisterAuth registers the account endpoints.  Unauthenticated operations
// live under /v1/auth, while /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token and keeps the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Accepts a refresh_token body, a bearer token, or both; no JWT middleware.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// Mounts carries the optional Redis-backed middleware of the ledger API.
// A nil Redis client disables both.
type Mounts struct {
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// RegisterLedger registers the event endpoints.  Views are public and
// cached; mutations require a JWT, are rate limited per caller and purge
// the cache when they succeed.
func RegisterLedger(e *echo.Echo, h *handler.LedgerHandler, jwtSecret string, m Mounts) {
	cache := middleware.NewRedisCache(m.Cache, m.Redis)
	views := e.Group("/v1/event")
	views.GET("", h.Summary, cache)
	views.GET("/buyers", h.Buyers, cache)
	views.GET("/buyers/:actor/tickets", h.BuyerTickets, cache)
	// Settlement progress must never be served stale.
	views.GET("/state", h.State)

	mutating := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.NewTokenBucket(m.RateLimit, m.Redis),
		middleware.NewCacheInvalidator(m.Cache, m.Redis),
	}
	e.POST("/v1/event", h.Create, mutating...)
	e.POST("/v1/event/purchase", h.Purchase, mutating...)
	e.POST("/v1/event/settle", h.Settle, mutating...)
}
