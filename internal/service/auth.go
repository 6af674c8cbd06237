package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"storyverse/internal/apperror"
	"storyverse/internal/core/auth"
	"storyverse/internal/domain"
	"storyverse/pkg/utils"
)

type LoginResult struct {
	Token string       `json:"token"`
	IsNew bool         `json:"isNew"`
	User  *domain.User `json:"user"`
}

type AuthService struct {
	users       domain.UserRepository
	jwt         *auth.JWTer
	enforceBans bool
	log         *zap.Logger
}

func NewAuthService(users domain.UserRepository, j *auth.JWTer, enforceBans bool, l *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: j, enforceBans: enforceBans, log: orNop(l)}
}

// LocalLogin 邮箱+密码；邮箱不存在则自动注册
func (a *AuthService) LocalLogin(ctx context.Context, email, password, name string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, apperror.Validation("email", "a valid email is required")
	}
	if password == "" {
		return nil, apperror.Validation("password", "password is required")
	}

	u, err := a.users.FindByEmail(ctx, email)
	if apperror.IsNotFound(err) {
		u, err = a.register(ctx, email, password, name)
		if err == nil {
			return a.issue(u, true, "local")
		}
		if apperror.Is(err, apperror.ErrConflict) {
			// 并发注册：对方先落库，按已存在用户校验密码
			u, err = a.users.FindByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, apperror.Unauthenticated("invalid credentials")
	}
	return a.issue(u, false, "local")
}

func (a *AuthService) register(ctx context.Context, email, password, name string) (*domain.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{Email: email, Name: displayName(name, email), PasswordHash: hash}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	a.log.Info("user registered", zap.String("user", u.ID), zap.String("provider", "local"))
	return u, nil
}

// displayName 未提供名字时取邮箱 @ 之前的部分
func displayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// GoogleLogin 按 googleId 查找；没有则按 email 关联已有账号；都没有则新建。
// 只有 Google 确认过邮箱、且已有账号没有本地密码时才按 email 关联
func (a *AuthService) GoogleLogin(ctx context.Context, gu *auth.GoogleUser) (*LoginResult, error) {
	if gu == nil || gu.Sub == "" {
		return nil, apperror.InvalidCredential("missing google identity")
	}
	u, err := a.users.FindByGoogleID(ctx, gu.Sub)
	if err == nil {
		return a.issue(u, false, "google")
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	u, err = a.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !gu.EmailVerified || u.PasswordHash != "" {
			a.log.Warn("google link refused",
				zap.String("user", u.ID), zap.Bool("email_verified", gu.EmailVerified),
				zap.Bool("has_password", u.PasswordHash != ""))
			return nil, apperror.Conflict("An account with this email already exists. Sign in with your password.")
		}
		if err := a.users.LinkGoogle(ctx, u.ID, gu.Sub); err != nil {
			return nil, err
		}
		sub := gu.Sub
		u.GoogleID = &sub
		return a.issue(u, false, "google")
	case !apperror.IsNotFound(err):
		return nil, err
	}

	sub := gu.Sub
	u = &domain.User{GoogleID: &sub, Email: email, Name: displayName(gu.Name, email)}
	if err := a.users.Create(ctx, u); err != nil {
		if apperror.Is(err, apperror.ErrConflict) {
			if u, err = a.users.FindByGoogleID(ctx, sub); err == nil {
				return a.issue(u, false, "google")
			}
		}
		return nil, err
	}
	a.log.Info("user registered", zap.String("user", u.ID), zap.String("provider", "google"))
	return a.issue(u, true, "google")
}

func (a *AuthService) CurrentUser(ctx context.Context, uid string) (*domain.User, error) {
	if uid == "" {
		return nil, apperror.Unauthenticated("No token, authorization denied")
	}
	return a.users.FindByID(ctx, uid)
}

func (a *AuthService) issue(u *domain.User, isNew bool, provider string) (*LoginResult, error) {
	if a.enforceBans && u.IsBanned {
		return nil, apperror.Forbidden("User is banned")
	}
	tok, err := a.jwt.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	logins.WithLabelValues(provider, strconv.FormatBool(isNew)).Inc()
	return &LoginResult{Token: tok, IsNew: isNew, User: u}, nil
}
