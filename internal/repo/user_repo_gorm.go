package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"storyverse/internal/apperror"
	"storyverse/internal/domain"
	"storyverse/pkg/utils"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	err := r.db.WithContext(ctx).Create(u).Error
	if isDupKey(err) {
		return apperror.Conflict("user already exists")
	}
	return err
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "user", id, "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "user", email, "email = ?", email)
}

func (r *UserRepo) FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return r.first(ctx, "user", googleID, "google_id = ?", googleID)
}

func (r *UserRepo) first(ctx context.Context, resource, key string, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound(resource, key)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) LinkGoogle(ctx context.Context, id, googleID string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("google_id", googleID).Error
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) SetAdmin(ctx context.Context, id string, v bool) error {
	return r.setFlag(ctx, id, "is_admin", v)
}

func (r *UserRepo) SetBanned(ctx context.Context, id string, v bool) error {
	return r.setFlag(ctx, id, "is_banned", v)
}

func (r *UserRepo) setFlag(ctx context.Context, id, column string, v bool) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update(column, v).Error
}

// DeleteWithContent 删除用户及其写下的一切：故事（连带续写、评论、点赞）、在别人故事下的续写与评论、点过的赞
func (r *UserRepo) DeleteWithContent(ctx context.Context, id string) ([]string, error) {
	var touched []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownStories := tx.Model(&domain.Story{}).Select("id").Where("author_id = ?", id)
		doomedContribs := tx.Model(&domain.Contribution{}).Select("id").
			Where("story_id IN (?) OR author_id = ?", ownStories, id)

		var err error
		if touched, err = touchedStories(tx, id); err != nil {
			return err
		}

		steps := []struct {
			model any
			query string
			args  []any
		}{
			{&domain.ContributionLike{}, "contribution_id IN (?) OR user_id = ?", []any{doomedContribs, id}},
			{&domain.StoryLike{}, "story_id IN (?) OR user_id = ?", []any{ownStories, id}},
			{&domain.Comment{}, "story_id IN (?) OR author_id = ?", []any{ownStories, id}},
			{&domain.Contribution{}, "story_id IN (?) OR author_id = ?", []any{ownStories, id}},
			{&domain.Story{}, "author_id = ?", []any{id}},
		}
		for _, s := range steps {
			if err := tx.Where(s.query, s.args...).Delete(s.model).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&domain.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

// touchedStories 用户留下过痕迹的故事 id（去重）
func touchedStories(tx *gorm.DB, uid string) ([]string, error) {
	likedContribs := tx.Model(&domain.ContributionLike{}).Select("contribution_id").Where("user_id = ?", uid)
	queries := []struct {
		q   *gorm.DB
		col string
	}{
		{tx.Model(&domain.Story{}).Where("author_id = ?", uid), "id"},
		{tx.Model(&domain.Contribution{}).Where("author_id = ? OR id IN (?)", uid, likedContribs), "story_id"},
		{tx.Model(&domain.Comment{}).Where("author_id = ?", uid), "story_id"},
		{tx.Model(&domain.StoryLike{}).Where("user_id = ?", uid), "story_id"},
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, q := range queries {
		var ids []string
		if err := q.q.Pluck(q.col, &ids).Error; err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func isDupKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
