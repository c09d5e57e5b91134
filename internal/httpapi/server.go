package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/basesub/subscriptions/internal/apikey"
	"github.com/basesub/subscriptions/internal/auth"
	"github.com/basesub/subscriptions/internal/httpapi/middleware"
	"github.com/basesub/subscriptions/internal/service"
	"github.com/basesub/subscriptions/internal/store"
	"github.com/basesub/subscriptions/internal/webhook"
)

// Dependencies are the core-package services cmd/api wires up before
// calling NewRouter; every HTTP handler is a thin translation layer
// over one of these.
type Dependencies struct {
	Store        store.Store
	Subscription *service.Service
	ApiKeys      *apikey.Service
	Webhooks     *webhook.Service
	JWTValidator *auth.Validator
}

// NewRouter builds the gin.Engine exposing spec §6's RPC surface,
// grounded on apps/api/server/server.go's InitializeRoutes shape:
// global middleware first (CORS, correlation id, rate limiting),
// then unauthenticated routes (health, metrics, swagger), then an
// authenticated /api/v1 group behind EnsureValidAPIKeyOrToken.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(configureCORS())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.DefaultRateLimiter.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	subscriptionHandler := NewSubscriptionHandler(deps.Subscription, deps.Store)
	apiKeyHandler := NewApiKeyHandler(deps.ApiKeys)
	webhookHandler := NewWebhookHandler(deps.Webhooks)

	keys := &apiKeyResolver{keys: deps.ApiKeys}
	jwts := &jwtResolver{validator: deps.JWTValidator, store: deps.Store}

	v1 := router.Group("/api/v1")
	protected := v1.Group("/")
	protected.Use(middleware.EnsureValidAPIKeyOrToken(keys, jwts))
	{
		subscriptions := protected.Group("/subscriptions")
		{
			subscriptions.POST("", middleware.StrictRateLimiter.Middleware(), subscriptionHandler.Create)
			subscriptions.GET("", middleware.RelaxedRateLimiter.Middleware(), subscriptionHandler.List)
			subscriptions.GET("/:subscriptionId", subscriptionHandler.Get)
			subscriptions.POST("/:subscriptionId/revoke", middleware.StrictRateLimiter.Middleware(), subscriptionHandler.Revoke)
		}

		apiKeys := protected.Group("/api-keys")
		{
			apiKeys.POST("", middleware.StrictRateLimiter.Middleware(), apiKeyHandler.Create)
			apiKeys.GET("", middleware.RelaxedRateLimiter.Middleware(), apiKeyHandler.List)
			apiKeys.PATCH("/:keyId", apiKeyHandler.Update)
			apiKeys.DELETE("/:keyId", apiKeyHandler.Delete)
		}

		webhooks := protected.Group("/webhooks")
		{
			webhooks.POST("", middleware.StrictRateLimiter.Middleware(), webhookHandler.Create)
			webhooks.GET("", webhookHandler.Get)
			webhooks.PATCH("", webhookHandler.UpdateURL)
			webhooks.POST("/rotate-secret", middleware.StrictRateLimiter.Middleware(), webhookHandler.RotateSecret)
			webhooks.DELETE("", webhookHandler.Delete)
		}
	}

	return router
}

// configureCORS mirrors the teacher's env-driven CORS configuration
// (apps/api/server/server.go configureCORS).
func configureCORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowOrigins = splitAndTrim(origins)
	} else {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}

	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Correlation-ID"}
	cfg.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "X-Correlation-ID"}
	cfg.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(cfg)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
