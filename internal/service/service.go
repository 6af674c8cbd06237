// Package service 业务层：校验输入、权限判定、编排 repo 与缓存。
// 不感知 HTTP；错误一律返回 apperror 或包装后的内部错误。
package service

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"storyverse/internal/apperror"
	"storyverse/internal/domain"
)

var tracer = otel.Tracer("storyverse/service")

var storyEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "storyverse_story_events_total", Help: "Story domain events"},
	[]string{"event"},
)

var moderationEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "storyverse_moderation_actions_total", Help: "Admin moderation actions"},
	[]string{"action"},
)

var logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "storyverse_logins_total", Help: "Successful logins"},
	[]string{"provider", "new"},
)

func init() { prometheus.MustRegister(storyEvents, moderationEvents, logins) }

// required 去掉首尾空白后不能为空
func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperror.Validation(field, field+" is required")
	}
	return v, nil
}

// loadActor 取当前请求者；token 有效但用户已被删除视为未登录
func loadActor(ctx context.Context, users domain.UserRepository, uid string) (*domain.User, error) {
	if uid == "" {
		return nil, apperror.Unauthenticated("No token, authorization denied")
	}
	u, err := users.FindByID(ctx, uid)
	if apperror.IsNotFound(err) {
		return nil, apperror.Unauthenticated("user no longer exists")
	}
	return u, err
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
