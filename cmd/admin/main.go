package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

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
	"storyverse/internal/repo"
	"storyverse/internal/service"
	"storyverse/internal/transport/http/handler"
	"storyverse/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	stopTracing := tracing.Init(context.Background(), cfg.Tracing, cfg.App.Name+"-admin", cfg.App.Env, log)

	// DB 连接（失败直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
	}

	// 与用户端共用同一 redis，删除后让对方缓存失效
	var rc *cache.Cache
	if cfg.Redis.Addr != "" {
		rc = cache.New(cache.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Prefix:      "storyverse:",
			DialTimeout: 2 * time.Second,
		})
		defer func() { _ = rc.Close() }()
	}

	// 依赖
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}
	userRepo := repo.NewUserRepo(db)
	storyRepo := repo.NewStoryRepo(db)
	modSvc := service.NewModerationService(userRepo, storyRepo, rc, log)
	mods := (&router.Registry{}).Register(handler.NewAdminHandler(modSvc, log))

	// 路由（后台端）
	r := router.NewAdminEngine(log, cfg, jwter, mods)

	// HTTP Server
	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 10*time.Second, 60*time.Second)
	srv.ErrorLog = logger.ToStdLogger(log, zapcore.WarnLevel)

	// 启动前打印可点击地址
	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	// 异步启动；失败立即退出
	go func() {
		if err := server.StartHTTP(srv, log); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin api start FAILED", zap.Error(err))
		}
	}()
	log.Info("admin api started SUCCESS")

	// 关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = stopTracing(ctx)
	log.Info("admin api stopped gracefully")
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
