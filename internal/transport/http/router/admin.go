package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyverse/internal/core/auth"
	"storyverse/internal/core/config"
	"storyverse/internal/core/server"
	mdw "storyverse/internal/transport/http/middleware"
)

func NewAdminEngine(l *zap.Logger, cfg *config.Config, jwter *auth.JWTer, mods *Registry) *gin.Engine {
	r := server.NewRouter(cfg.App.CORSOrigins)
	r.Use(chain(l, cfg.App.Name+"-admin", cfg.Limits)...)
	mountOps(r)

	// 管理端 v1：统一要求登录，管理员身份在 service 层查库确认
	admin := r.Group("/admin/v1", IPGuard(cfg.Limits), mdw.Auth(jwter))
	mods.MountAdmin(admin)
	return r
}
