package middleware

import (
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	resp "storyverse/internal/transport/http/response"
)

// Recovery panic 记录堆栈到 zap，返回统一 500
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, _ any) {
		resp.Abort(c, resp.CodeServerError, "internal error")
	})
}
