package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"storyverse/internal/apperror"
	"storyverse/internal/core/cache"
	"storyverse/internal/domain"
	"storyverse/internal/policy"
	"storyverse/pkg/pagination"
)

type StoryOptions struct {
	DefaultLimit        int
	MaxLimit            int
	CacheTTL            time.Duration
	CommentDeletePolicy policy.CommentDeletePolicy
	EnforceBans         bool
}

type StoryService struct {
	stories domain.StoryRepository
	users   domain.UserRepository
	cache   *cache.Cache
	opts    StoryOptions
	log     *zap.Logger
}

// NewStoryService cache 可为 nil
func NewStoryService(stories domain.StoryRepository, users domain.UserRepository, c *cache.Cache, opts StoryOptions, l *zap.Logger) *StoryService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = pagination.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.CommentDeletePolicy == "" {
		opts.CommentDeletePolicy = policy.CommentDeleteOpen
	}
	return &StoryService{stories: stories, users: users, cache: c, opts: opts, log: orNop(l)}
}

func storyKey(id string) string { return "story:" + id }

func (s *StoryService) Create(ctx context.Context, authorID, title, content string) (*domain.Story, error) {
	if _, err := s.writer(ctx, authorID); err != nil {
		return nil, err
	}
	title, err := required("title", title)
	if err != nil {
		return nil, err
	}
	if content, err = required("content", content); err != nil {
		return nil, err
	}
	st := &domain.Story{Title: title, Content: content, AuthorID: authorID}
	if err := s.stories.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	storyEvents.WithLabelValues("create").Inc()
	s.log.Info("story created", zap.String("story", st.ID), zap.String("author", authorID))
	return s.stories.FindByID(ctx, st.ID)
}

// Get 读路径走缓存；缓存不可用时直接查库
func (s *StoryService) Get(ctx context.Context, id string) (*domain.Story, error) {
	ctx, span := tracer.Start(ctx, "StoryService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("story.id", id))

	return cache.GetOrLoadJSON(s.cache, ctx, storyKey(id), s.opts.CacheTTL, func(ctx context.Context) (*domain.Story, error) {
		return s.stories.FindByID(ctx, id)
	})
}

func (s *StoryService) Update(ctx context.Context, id, requesterID string, p domain.StoryPatch) (*domain.Story, error) {
	st, u, err := s.ownedStory(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(st, u) {
		return nil, apperror.Forbidden("User not authorized to edit this story")
	}
	if p.Title != nil {
		v, err := required("title", *p.Title)
		if err != nil {
			return nil, err
		}
		p.Title = &v
	}
	if p.Content != nil {
		v, err := required("content", *p.Content)
		if err != nil {
			return nil, err
		}
		p.Content = &v
	}
	if err := s.stories.Update(ctx, id, p); err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues("update").Inc()
	return s.fresh(ctx, id)
}

func (s *StoryService) Delete(ctx context.Context, id, requesterID string) error {
	st, u, err := s.ownedStory(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if !policy.CanModify(st, u) {
		return apperror.Forbidden("User not authorized to delete this story")
	}
	if err := s.stories.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	storyEvents.WithLabelValues("delete").Inc()
	s.log.Info("story deleted", zap.String("story", id), zap.String("by", requesterID))
	return nil
}

func (s *StoryService) ListPublic(ctx context.Context, page, limit int) ([]domain.Story, pagination.PageInfo, error) {
	return s.list(ctx, domain.StoryFilter{}, page, limit)
}

func (s *StoryService) ListByAuthor(ctx context.Context, authorID string, page, limit int) ([]domain.Story, pagination.PageInfo, error) {
	if authorID == "" {
		return nil, pagination.PageInfo{}, apperror.Unauthenticated("No token, authorization denied")
	}
	return s.list(ctx, domain.StoryFilter{AuthorID: authorID}, page, limit)
}

func (s *StoryService) list(ctx context.Context, f domain.StoryFilter, page, limit int) ([]domain.Story, pagination.PageInfo, error) {
	if page <= 0 {
		page = pagination.DefaultPage
	}
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	stories, total, err := s.stories.List(ctx, f, pagination.Offset(page, limit), limit)
	if err != nil {
		return nil, pagination.PageInfo{}, fmt.Errorf("list stories: %w", err)
	}
	return stories, pagination.Paginate(total, page, limit), nil
}

func (s *StoryService) ToggleLike(ctx context.Context, id, userID string) (*domain.Story, error) {
	if _, err := s.writer(ctx, userID); err != nil {
		return nil, err
	}
	liked, err := s.stories.ToggleStoryLike(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues(likeEvent("story", liked)).Inc()
	return s.fresh(ctx, id)
}

func (s *StoryService) ToggleContributionLike(ctx context.Context, id, contributionID, userID string) (*domain.Story, error) {
	if _, err := s.writer(ctx, userID); err != nil {
		return nil, err
	}
	liked, err := s.stories.ToggleContributionLike(ctx, id, contributionID, userID)
	if err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues(likeEvent("contribution", liked)).Inc()
	return s.fresh(ctx, id)
}

func likeEvent(target string, liked bool) string {
	if liked {
		return target + "_like"
	}
	return target + "_unlike"
}

// Contribute 在故事末尾追加续写
func (s *StoryService) Contribute(ctx context.Context, storyID, authorID, content string) (*domain.Story, error) {
	if _, err := s.writer(ctx, authorID); err != nil {
		return nil, err
	}
	if err := s.stories.Exists(ctx, storyID); err != nil {
		return nil, err
	}
	content, err := required("content", content)
	if err != nil {
		return nil, err
	}
	c := &domain.Contribution{StoryID: storyID, Content: content, AuthorID: authorID}
	if err := s.stories.AppendContribution(ctx, c); err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues("contribute").Inc()
	return s.fresh(ctx, storyID)
}

func (s *StoryService) RemoveContribution(ctx context.Context, storyID, contributionID, requesterID string) (*domain.Story, error) {
	u, err := s.writer(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.stories.Exists(ctx, storyID); err != nil {
		return nil, err
	}
	c, err := s.stories.FindContribution(ctx, storyID, contributionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(c, u) {
		return nil, apperror.Forbidden("Not authorized to delete this contribution")
	}
	if err := s.stories.DeleteContribution(ctx, storyID, contributionID); err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues("contribution_remove").Inc()
	return s.fresh(ctx, storyID)
}

func (s *StoryService) Comment(ctx context.Context, storyID, authorID, content string) (*domain.Story, error) {
	if _, err := s.writer(ctx, authorID); err != nil {
		return nil, err
	}
	if err := s.stories.Exists(ctx, storyID); err != nil {
		return nil, err
	}
	content, err := required("content", content)
	if err != nil {
		return nil, err
	}
	if err := s.stories.AddComment(ctx, &domain.Comment{StoryID: storyID, Content: content, AuthorID: authorID}); err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues("comment").Inc()
	return s.fresh(ctx, storyID)
}

// DeleteComment 谁能删由 comments.delete_policy 决定
func (s *StoryService) DeleteComment(ctx context.Context, storyID, commentID, requesterID string) (*domain.Story, error) {
	u, err := s.writer(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.stories.Exists(ctx, storyID); err != nil {
		return nil, err
	}
	c, err := s.stories.FindComment(ctx, storyID, commentID)
	if err != nil {
		return nil, err
	}
	if !policy.CanDeleteComment(s.opts.CommentDeletePolicy, c, u) {
		return nil, apperror.Forbidden("Not authorized to delete this comment")
	}
	if err := s.stories.DeleteComment(ctx, storyID, commentID); err != nil {
		return nil, err
	}
	storyEvents.WithLabelValues("comment_remove").Inc()
	return s.fresh(ctx, storyID)
}

// writer 请求者存在且（开启封禁时）未被封禁
func (s *StoryService) writer(ctx context.Context, uid string) (*domain.User, error) {
	u, err := loadActor(ctx, s.users, uid)
	if err != nil {
		return nil, err
	}
	if !policy.CanWrite(u, s.opts.EnforceBans) {
		return nil, apperror.Forbidden("User is banned")
	}
	return u, nil
}

// ownedStory 先确认故事存在，再取请求者：404 优先于 403
func (s *StoryService) ownedStory(ctx context.Context, id, requesterID string) (*domain.Story, *domain.User, error) {
	st, err := s.stories.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.writer(ctx, requesterID)
	if err != nil {
		return nil, nil, err
	}
	return st, u, nil
}

func (s *StoryService) fresh(ctx context.Context, id string) (*domain.Story, error) {
	s.invalidate(ctx, id)
	return s.stories.FindByID(ctx, id)
}

func (s *StoryService) invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = storyKey(id)
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
