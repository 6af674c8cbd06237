package auth

import (
	"context"
	"net/http"
	"strings"
)

// HeaderToken 前端沿用的自定义头
const HeaderToken = "x-auth-token"

type ctxKey struct{}

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, uid)
}

// UserIDFromContext 未登录时 ok=false
func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxKey{}).(string)
	return uid, ok && uid != ""
}

// TokenFromRequest 优先 x-auth-token，其次 Authorization: Bearer
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(HeaderToken)); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
