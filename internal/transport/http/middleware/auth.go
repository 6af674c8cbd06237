package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"storyverse/internal/apperror"
	"storyverse/internal/core/auth"
	resp "storyverse/internal/transport/http/response"
)

// Auth 解析 x-auth-token / Bearer，把用户 id 放进 request context。
// 缺 token → 401，token 无效 → 400
func Auth(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := j.Resolve(auth.TokenFromRequest(c.Request))
		if err != nil {
			code := resp.CodeBadRequest
			if errors.Is(err, apperror.ErrUnauthenticated) {
				code = resp.CodeUnauthorized
			}
			resp.Abort(c, code, err.Error())
			return
		}
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), uid))
		c.Next()
	}
}
