package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"storyverse/internal/apperror"
	"storyverse/internal/core/auth"
	"storyverse/internal/domain"
	"storyverse/internal/service"
	httpez "storyverse/internal/transport/http/ez"
)

const stateCookie = "oauth_state"

// GoogleAuth 由 auth.GoogleProvider 实现
type GoogleAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

type AuthOptions struct {
	LocalLogin   bool
	Google       GoogleAuth // nil = 未配置
	ClientURL    string     // 登录成功后跳回前端
	SecureCookie bool
	Guards       []gin.HandlerFunc // /auth 分组额外中间件（按 IP 限速）
}

type AuthHandler struct {
	svc  *service.AuthService
	auth gin.HandlerFunc
	opts AuthOptions
	log  *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, authMW gin.HandlerFunc, opts AuthOptions, l *zap.Logger) *AuthHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthHandler{svc: svc, auth: authMW, opts: opts, log: l}
}

// Priority 先于故事路由挂载
func (h *AuthHandler) Priority() int { return 10 }

type loginIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"     binding:"omitempty,max=64"` // 首次注册可用
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	g := api.Group("/auth", h.opts.Guards...)

	if h.opts.LocalLogin {
		// /auth/login：查不到就自动注册 + 发 JWT
		httpez.RegisterAction(httpez.New(g, h.log), httpez.Action[loginIn, *service.LoginResult]{
			Method: http.MethodPost,
			Path:   "/login",
			Binder: httpez.BindJSON,
			Handler: func(c *gin.Context, in *loginIn) (*service.LoginResult, error) {
				return h.svc.LocalLogin(c.Request.Context(), in.Email, in.Password, in.Name)
			},
		})
	}

	g.GET("/google", h.googleStart)
	g.GET("/google/callback", h.googleCallback)

	httpez.RegisterAction(httpez.New(g.Group("", h.auth), h.log), httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/user",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.svc.CurrentUser(c.Request.Context(), httpez.UserID(c))
		},
	})
}

func (h *AuthHandler) googleStart(c *gin.Context) {
	if h.opts.Google == nil {
		httpez.Fail(c, h.log, apperror.NotFound("login provider", "google"))
		return
	}
	state := xid.New().String()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", h.opts.SecureCookie, true)
	c.Redirect(http.StatusFound, h.opts.Google.AuthURL(state))
}

func (h *AuthHandler) googleCallback(c *gin.Context) {
	if h.opts.Google == nil {
		httpez.Fail(c, h.log, apperror.NotFound("login provider", "google"))
		return
	}
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		httpez.Fail(c, h.log, apperror.InvalidCredential("invalid oauth state"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.opts.SecureCookie, true)

	code := c.Query("code")
	if code == "" {
		httpez.Fail(c, h.log, apperror.Validation("code", "missing authorization code"))
		return
	}
	gu, err := h.opts.Google.Exchange(c.Request.Context(), code)
	if err != nil {
		h.log.Warn("google exchange failed", zap.Error(err))
		httpez.Fail(c, h.log, apperror.InvalidCredential("google login failed"))
		return
	}
	res, err := h.svc.GoogleLogin(c.Request.Context(), gu)
	if err != nil {
		httpez.Fail(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, strings.TrimRight(h.opts.ClientURL, "/")+"/auth/callback?token="+url.QueryEscape(res.Token))
}
