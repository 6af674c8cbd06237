package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyverse/internal/apperror"
	"storyverse/internal/core/cache"
	"storyverse/internal/domain"
)

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.New(cache.Options{Addr: mr.Addr(), Prefix: "storyverse:"})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCachedGetSeesMutations(t *testing.T) {
	ctx := context.Background()
	e := newEnvWithCache(t, StoryOptions{}, newRedisCache(t))
	u1, u2 := e.user(t, "u1", false), e.user(t, "u2", false)

	st, err := e.story.Create(ctx, u1.ID, "A", "B")
	require.NoError(t, err)

	got, err := e.story.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)

	_, err = e.story.ToggleLike(ctx, st.ID, u2.ID)
	require.NoError(t, err)
	got, err = e.story.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LikeSet{u2.ID}, got.Likes)

	_, err = e.story.Update(ctx, st.ID, u1.ID, domain.StoryPatch{Title: strp("A2")})
	require.NoError(t, err)
	got, err = e.story.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Title)

	require.NoError(t, e.mod.DeleteUser(ctx, mustAdmin(t, e).ID, u2.ID))
	got, err = e.story.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)

	require.NoError(t, e.story.Delete(ctx, st.ID, u1.ID))
	_, err = e.story.Get(ctx, st.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCachedGetRacingDelete(t *testing.T) {
	ctx := context.Background()
	c := newRedisCache(t)
	e := newEnvWithCache(t, StoryOptions{}, c)
	u := e.user(t, "u", false)

	st, err := e.story.Create(ctx, u.ID, "A", "B")
	require.NoError(t, err)

	var once sync.Once
	racing := &deleteDuringRead{
		StoryRepository: e.stories,
		after: func() {
			once.Do(func() {
				require.NoError(t, e.stories.Delete(ctx, st.ID))
				require.NoError(t, c.Invalidate(ctx, storyKey(st.ID)))
			})
		},
	}
	svc := NewStoryService(racing, e.users, c, StoryOptions{}, nil)

	// 第一次读拿到的是删除前的快照
	stale, err := svc.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.ID, stale.ID)

	_, err = svc.Get(ctx, st.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// deleteDuringRead 读到故事之后、返回之前，模拟另一个请求删除故事并失效缓存
type deleteDuringRead struct {
	domain.StoryRepository
	after func()
}

func (r *deleteDuringRead) FindByID(ctx context.Context, id string) (*domain.Story, error) {
	s, err := r.StoryRepository.FindByID(ctx, id)
	r.after()
	return s, err
}

func mustAdmin(t *testing.T, e *env) *domain.User {
	t.Helper()
	return e.user(t, "root", true)
}
