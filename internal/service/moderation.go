package service

import (
	"context"

	"go.uber.org/zap"

	"storyverse/internal/apperror"
	"storyverse/internal/core/cache"
	"storyverse/internal/domain"
	"storyverse/internal/policy"
)

// ModerationService 管理端操作。每个方法先校验请求者是管理员；
// 删除故事不经过作者归属判断，与 StoryService.Delete 是两条独立路径。
type ModerationService struct {
	users   domain.UserRepository
	stories domain.StoryRepository
	cache   *cache.Cache
	log     *zap.Logger
}

func NewModerationService(users domain.UserRepository, stories domain.StoryRepository, c *cache.Cache, l *zap.Logger) *ModerationService {
	return &ModerationService{users: users, stories: stories, cache: c, log: orNop(l)}
}

// requireAdmin 请求者不存在 → 404，不是管理员 → 403
func (m *ModerationService) requireAdmin(ctx context.Context, requesterID string) (*domain.User, error) {
	if requesterID == "" {
		return nil, apperror.Unauthenticated("No token, authorization denied")
	}
	u, err := m.users.FindByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !policy.IsAdmin(u) {
		return nil, apperror.Forbidden("Access denied. Admin only.")
	}
	return u, nil
}

func (m *ModerationService) ListUsers(ctx context.Context, requesterID string) ([]domain.User, error) {
	if _, err := m.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}
	return m.users.List(ctx)
}

// DeleteUser 不能删自己，也不能删管理员
func (m *ModerationService) DeleteUser(ctx context.Context, requesterID, targetID string) error {
	admin, err := m.requireAdmin(ctx, requesterID)
	if err != nil {
		return err
	}
	target, err := m.users.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.ID == admin.ID {
		return apperror.Validation("id", "You cannot delete yourself.")
	}
	if target.IsAdmin {
		return apperror.Validation("id", "Cannot delete an admin user.")
	}
	touched, err := m.users.DeleteWithContent(ctx, targetID)
	if err != nil {
		return err
	}
	m.invalidate(ctx, touched...)
	m.record("delete_user", admin.ID, targetID)
	return nil
}

func (m *ModerationService) Promote(ctx context.Context, requesterID, targetID string) error {
	return m.setFlag(ctx, requesterID, targetID, "promote", func(u *domain.User) error {
		if u.IsAdmin {
			return apperror.Conflict("User is already an admin.")
		}
		return m.users.SetAdmin(ctx, u.ID, true)
	})
}

func (m *ModerationService) Demote(ctx context.Context, requesterID, targetID string) error {
	return m.setFlag(ctx, requesterID, targetID, "demote", func(u *domain.User) error {
		if !u.IsAdmin {
			return apperror.Conflict("User is not an admin.")
		}
		return m.users.SetAdmin(ctx, u.ID, false)
	})
}

func (m *ModerationService) Ban(ctx context.Context, requesterID, targetID string) error {
	return m.setFlag(ctx, requesterID, targetID, "ban", func(u *domain.User) error {
		if u.IsBanned {
			return apperror.Conflict("User is already banned.")
		}
		return m.users.SetBanned(ctx, u.ID, true)
	})
}

func (m *ModerationService) Unban(ctx context.Context, requesterID, targetID string) error {
	return m.setFlag(ctx, requesterID, targetID, "unban", func(u *domain.User) error {
		if !u.IsBanned {
			return apperror.Conflict("User is not banned.")
		}
		return m.users.SetBanned(ctx, u.ID, false)
	})
}

func (m *ModerationService) setFlag(ctx context.Context, requesterID, targetID, action string, apply func(*domain.User) error) error {
	admin, err := m.requireAdmin(ctx, requesterID)
	if err != nil {
		return err
	}
	target, err := m.users.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := apply(target); err != nil {
		return err
	}
	m.record(action, admin.ID, targetID)
	return nil
}

// ListStories 全部故事，作者带 email
func (m *ModerationService) ListStories(ctx context.Context, requesterID string) ([]domain.Story, error) {
	if _, err := m.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}
	return m.stories.ListAll(ctx)
}

func (m *ModerationService) DeleteStory(ctx context.Context, requesterID, storyID string) error {
	admin, err := m.requireAdmin(ctx, requesterID)
	if err != nil {
		return err
	}
	if err := m.stories.Delete(ctx, storyID); err != nil {
		return err
	}
	m.invalidate(ctx, storyID)
	m.record("delete_story", admin.ID, storyID)
	return nil
}

func (m *ModerationService) record(action, adminID, target string) {
	moderationEvents.WithLabelValues(action).Inc()
	m.log.Info("moderation", zap.String("action", action), zap.String("admin", adminID), zap.String("target", target))
}

func (m *ModerationService) invalidate(ctx context.Context, storyIDs ...string) {
	keys := make([]string, len(storyIDs))
	for i, id := range storyIDs {
		keys[i] = storyKey(id)
	}
	if err := m.cache.Invalidate(ctx, keys...); err != nil {
		m.log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
