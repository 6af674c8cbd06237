package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storyverse/internal/core/auth"
	"storyverse/internal/core/cache"
	"storyverse/internal/core/database"
	"storyverse/internal/domain"
	"storyverse/internal/repo"
)

type env struct {
	users   *repo.UserRepo
	stories *repo.StoryRepo
	story   *StoryService
	mod     *ModerationService
	auth    *AuthService
	jwt     *auth.JWTer
}

func newEnv(t *testing.T, opts StoryOptions) *env {
	t.Helper()
	return newEnvWithCache(t, opts, nil)
}

func newEnvWithCache(t *testing.T, opts StoryOptions, c *cache.Cache) *env {
	t.Helper()
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: "file::memory:?_foreign_keys=on", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	e := &env{
		users:   repo.NewUserRepo(db),
		stories: repo.NewStoryRepo(db),
		jwt:     &auth.JWTer{Secret: []byte("test-secret-0123456789"), Issuer: "storyverse", TTL: time.Hour},
	}
	e.story = NewStoryService(e.stories, e.users, c, opts, nil)
	e.mod = NewModerationService(e.users, e.stories, c, nil)
	e.auth = NewAuthService(e.users, e.jwt, opts.EnforceBans, nil)
	return e
}

func (e *env) user(t *testing.T, name string, admin bool) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, Email: name + "@example.com", IsAdmin: admin}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}
