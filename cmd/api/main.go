package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"storyverse/internal/core/auth"
	"storyverse/internal/core/cache"
	"storyverse/internal/core/config"
	"storyverse/internal/core/database"
	"storyverse/internal/core/logger"
	"storyverse/internal/core/server"
	"storyverse/internal/core/tracing"
	"storyverse/internal/policy"
	"storyverse/internal/repo"
	"storyverse/internal/service"
	"storyverse/internal/transport/http/handler"
	mdw "storyverse/internal/transport/http/middleware"
	"storyverse/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	stopTracing := tracing.Init(context.Background(), cfg.Tracing, cfg.App.Name, cfg.App.Env, log)

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// 缓存（可选）
	rc := openCache(cfg, log)
	defer func() { _ = rc.Close() }()

	// JWT
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	// 依赖
	userRepo := repo.NewUserRepo(db)
	storyRepo := repo.NewStoryRepo(db)
	storySvc := service.NewStoryService(storyRepo, userRepo, rc, service.StoryOptions{
		DefaultLimit:        cfg.Stories.DefaultLimit,
		MaxLimit:            cfg.Stories.MaxLimit,
		CacheTTL:            time.Duration(cfg.Stories.CacheTTLSec) * time.Second,
		CommentDeletePolicy: policy.CommentDeletePolicy(cfg.Comments.DeletePolicy),
		EnforceBans:         cfg.Moderation.EnforceBans,
	}, log)
	authSvc := service.NewAuthService(userRepo, jwter, cfg.Moderation.EnforceBans, log)

	authOpts := handler.AuthOptions{
		LocalLogin:   cfg.Auth.LocalLogin,
		ClientURL:    cfg.App.ClientURL,
		SecureCookie: cfg.App.Env != "local",
		Guards:       []gin.HandlerFunc{router.IPGuard(cfg.Limits)},
	}
	if g := cfg.Auth.Google; g.ClientID != "" {
		authOpts.Google = auth.NewGoogleProvider(g.ClientID, g.ClientSecret, g.CallbackURL)
	} else {
		log.Warn("google login disabled: auth.google.client_id is empty")
	}

	authMW := mdw.Auth(jwter)
	mods := (&router.Registry{}).Register(
		handler.NewAuthHandler(authSvc, authMW, authOpts, log),
		handler.NewStoryHandler(storySvc, authMW, log, cfg.Stories.DefaultLimit, cfg.Stories.MaxLimit),
	)

	// 路由（用户端）
	r := router.NewAPIEngine(log, cfg, mods)

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)
	srv.ErrorLog = logger.ToStdLogger(log, zapcore.WarnLevel)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("story api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.Bool("local_login", cfg.Auth.LocalLogin),
		zap.String("comment_delete_policy", cfg.Comments.DeletePolicy),
	)

	// 异步启动
	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("story api start FAILED", zap.Error(err))
		}
	}()
	log.Info("story api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = stopTracing(ctx)
	log.Info("story api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

// openCache redis.addr 为空返回 nil（不缓存）；连不上只告警，读路径自动回源
func openCache(cfg *config.Config, l *zap.Logger) *cache.Cache {
	if cfg.Redis.Addr == "" {
		l.Info("redis disabled, story reads go straight to db")
		return nil
	}
	rc := cache.New(cache.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		Prefix:      "storyverse:",
		DialTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis ping failed, serving from db", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}
	return rc
}
