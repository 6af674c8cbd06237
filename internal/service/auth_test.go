package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyverse/internal/apperror"
	"storyverse/internal/core/auth"
)

func TestLocalLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{})

	res, err := e.auth.LocalLogin(ctx, " Ann@Example.com ", "pw-1", "")
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, "ann", res.User.Name)
	assert.Equal(t, "ann@example.com", res.User.Email)

	uid, err := e.jwt.Resolve(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, uid)

	again, err := e.auth.LocalLogin(ctx, "ann@example.com", "pw-1", "")
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, res.User.ID, again.User.ID)

	_, err = e.auth.LocalLogin(ctx, "ann@example.com", "wrong", "")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, err = e.auth.LocalLogin(ctx, "not-an-email", "pw", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestGoogleLoginUpsert(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{})

	first, err := e.auth.GoogleLogin(ctx, &auth.GoogleUser{Sub: "g-1", Email: "bo@example.com", Name: "Bo"})
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	require.NotNil(t, first.User.GoogleID)
	assert.Equal(t, "g-1", *first.User.GoogleID)

	second, err := e.auth.GoogleLogin(ctx, &auth.GoogleUser{Sub: "g-1", Email: "bo@example.com", Name: "Bo"})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.User.ID, second.User.ID)

	// 无密码的已有账号 + Google 已验证邮箱：按 email 关联
	cy := e.user(t, "cy", false)
	linked, err := e.auth.GoogleLogin(ctx, &auth.GoogleUser{Sub: "g-2", Email: "cy@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.False(t, linked.IsNew)
	assert.Equal(t, cy.ID, linked.User.ID)
	byGoogle, err := e.users.FindByGoogleID(ctx, "g-2")
	require.NoError(t, err)
	assert.Equal(t, cy.ID, byGoogle.ID)
}

func TestGoogleLoginDoesNotLinkPasswordAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{})

	// 先有人用本地密码占了这个邮箱
	squatter, err := e.auth.LocalLogin(ctx, "victim@example.com", "attacker-pw", "")
	require.NoError(t, err)

	_, err = e.auth.GoogleLogin(ctx, &auth.GoogleUser{Sub: "g-victim", Email: "victim@example.com", EmailVerified: true})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = e.users.FindByGoogleID(ctx, "g-victim")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	u, err := e.users.FindByID(ctx, squatter.User.ID)
	require.NoError(t, err)
	assert.Nil(t, u.GoogleID)
}

func TestGoogleLoginRequiresVerifiedEmailToLink(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{})
	e.user(t, "dan", false)

	_, err := e.auth.GoogleLogin(ctx, &auth.GoogleUser{Sub: "g-dan", Email: "dan@example.com"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = e.users.FindByGoogleID(ctx, "g-dan")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGoogleLoginDefaultName(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{})

	res, err := e.auth.GoogleLogin(ctx, &auth.GoogleUser{Sub: "g-3", Email: "fay@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, "fay", res.User.Name)
}

func TestLoginRejectsBannedWhenEnforced(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{EnforceBans: true})
	res, err := e.auth.LocalLogin(ctx, "dee@example.com", "pw", "")
	require.NoError(t, err)
	require.NoError(t, e.users.SetBanned(ctx, res.User.ID, true))

	_, err = e.auth.LocalLogin(ctx, "dee@example.com", "pw", "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, StoryOptions{})
	u := e.user(t, "eve", false)

	got, err := e.auth.CurrentUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "eve", got.Name)

	_, err = e.auth.CurrentUser(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.auth.CurrentUser(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}
