package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"storyverse/internal/core/config"
	"storyverse/internal/core/server"
	mdw "storyverse/internal/transport/http/middleware"
)

// chain 两个 engine 共用的中间件
func chain(l *zap.Logger, service string, lim config.Limits) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		mdw.RequestID(),
		mdw.Recovery(l),
		otelgin.Middleware(service),
		mdw.Metrics(),
		mdw.AccessLog(l),
		mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst),
		mdw.ConcurrencyLimit(lim.Concurrency),
		mdw.MaxBodyBytes(lim.MaxBodyBytes),
		mdw.Timeout(time.Duration(lim.TimeoutSec) * time.Second),
	}
}

// IPGuard /auth 与 /admin 分组的按 IP 限速
func IPGuard(lim config.Limits) gin.HandlerFunc {
	return mdw.RateLimitPerIP(rate.Limit(lim.IPRPS), lim.IPBurst, 15*time.Minute)
}

func mountOps(r *gin.Engine) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
}

func NewAPIEngine(l *zap.Logger, cfg *config.Config, mods *Registry) *gin.Engine {
	r := server.NewRouter(cfg.App.CORSOrigins)
	r.Use(chain(l, cfg.App.Name, cfg.Limits)...)
	mountOps(r)

	mods.MountAPI(r.Group("/api/v1"))
	return r
}
