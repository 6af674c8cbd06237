// Package ez 把 service 方法挂成 HTTP 动作：绑定入参、鉴权、统一错误映射与响应包装。
package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyverse/internal/apperror"
	"storyverse/internal/core/auth"
	mdw "storyverse/internal/transport/http/middleware"
	resp "storyverse/internal/transport/http/response"
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // 例："/stories/:id/like"
	Binder  Binder
	Auth    bool // 要求已登录（上游 Auth 中间件已解析出用户 id）
	Status  int  // 成功状态码，默认 200
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权
		if a.Auth && UserID(c) == "" {
			resp.Abort(c, resp.CodeUnauthorized, "No token, authorization denied")
			return
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			Fail(c, e.log, apperror.Validation("body", bindErr.Error()))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, e.log, err)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// UserID 当前请求的用户 id；未登录为空串
func UserID(c *gin.Context) string {
	uid, _ := auth.UserIDFromContext(c.Request.Context())
	return uid
}

// StatusOf 业务错误 → HTTP 状态
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrInvalidCredential):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Fail 写出错误响应；内部错误只记日志，不把细节返回给调用方
func Fail(c *gin.Context, l *zap.Logger, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		l.Error("request failed",
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = "internal error"
	}
	resp.Abort(c, status, msg)
}
