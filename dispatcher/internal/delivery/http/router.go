package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/coursegrader/pipeline/dispatcher/internal/delivery/http/middleware"
	"github.com/coursegrader/pipeline/dispatcher/internal/domain"
)

// RouterDeps holds everything the router needs to wire routes.
type RouterDeps struct {
	SecretToken     string
	ZipDir          string
	Hooks           chan<- domain.PushHook
	Logger          *zap.Logger
	Redis           *redis.Client
	RateLimitPerMin int
}

// NewRouter builds the gin engine serving /push, /zips/:name, /health
// and /metrics.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.BodySizeLimit(1 << 20))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", NewHealthHandler().Health)
	router.GET("/zips/:name", NewZipHandler(deps.ZipDir, deps.Logger).Get)

	push := router.Group("")
	push.Use(middleware.RateLimiter(deps.Redis, deps.RateLimitPerMin))
	push.POST("/push", NewPushHandler(deps.SecretToken, deps.Hooks, deps.Logger).Push)

	return router
}
