package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storyverse/internal/apperror"
	"storyverse/internal/domain"
	"storyverse/pkg/utils"
)

// StoryRepo 故事聚合的持久化。续写、评论、点赞各自一张表，
// 所有修改都是针对单行的语句（不做整文档读改写），并发点赞不会互相覆盖。
type StoryRepo struct{ db *gorm.DB }

func NewStoryRepo(db *gorm.DB) *StoryRepo { return &StoryRepo{db: db} }

var _ domain.StoryRepository = (*StoryRepo)(nil)

func (r *StoryRepo) Create(ctx context.Context, s *domain.Story) error {
	if s.ID == "" {
		s.ID = utils.NewID()
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return err
	}
	s.Likes = domain.LikeSet{}
	s.Contributions = []domain.Contribution{}
	s.Comments = []domain.Comment{}
	return nil
}

func (r *StoryRepo) FindByID(ctx context.Context, id string) (*domain.Story, error) {
	db := r.db.WithContext(ctx)
	var s domain.Story
	err := db.First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("story", id)
	}
	if err != nil {
		return nil, err
	}
	if err := hydrate(db, []*domain.Story{&s}, false); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StoryRepo) Exists(ctx context.Context, id string) error {
	return storyExists(r.db.WithContext(ctx), id)
}

func (r *StoryRepo) Update(ctx context.Context, id string, p domain.StoryPatch) error {
	updates := map[string]any{"updated_at": now()}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Content != nil {
		updates["content"] = *p.Content
	}
	res := r.db.WithContext(ctx).Model(&domain.Story{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("story", id)
	}
	return nil
}

// Delete 一次事务删掉故事和它下面的全部内容
func (r *StoryRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribs := tx.Model(&domain.Contribution{}).Select("id").Where("story_id = ?", id)
		if err := tx.Where("contribution_id IN (?)", contribs).Delete(&domain.ContributionLike{}).Error; err != nil {
			return err
		}
		for _, m := range []any{&domain.StoryLike{}, &domain.Comment{}, &domain.Contribution{}} {
			if err := tx.Where("story_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&domain.Story{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("story", id)
		}
		return nil
	})
}

func (r *StoryRepo) List(ctx context.Context, f domain.StoryFilter, offset, limit int) ([]domain.Story, int64, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&domain.Story{})
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	stories := []domain.Story{}
	if err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&stories).Error; err != nil {
		return nil, 0, err
	}
	if err := hydrate(db, pointers(stories), false); err != nil {
		return nil, 0, err
	}
	return stories, total, nil
}

// ListAll 管理端：全部故事，作者带 email
func (r *StoryRepo) ListAll(ctx context.Context) ([]domain.Story, error) {
	db := r.db.WithContext(ctx)
	stories := []domain.Story{}
	if err := db.Order("created_at DESC, id DESC").Find(&stories).Error; err != nil {
		return nil, err
	}
	if err := hydrate(db, pointers(stories), true); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *StoryRepo) AppendContribution(ctx context.Context, c *domain.Contribution) error {
	if c.ID == "" {
		c.ID = utils.NewID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := storyExists(tx, c.StoryID); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return orphan(err, "story", c.StoryID)
		}
		c.Likes = domain.LikeSet{}
		return touch(tx, c.StoryID)
	})
}

func (r *StoryRepo) FindContribution(ctx context.Context, storyID, contributionID string) (*domain.Contribution, error) {
	var c domain.Contribution
	err := r.db.WithContext(ctx).First(&c, "id = ? AND story_id = ?", contributionID, storyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("contribution", contributionID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *StoryRepo) DeleteContribution(ctx context.Context, storyID, contributionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contribution_id = ?", contributionID).Delete(&domain.ContributionLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND story_id = ?", contributionID, storyID).Delete(&domain.Contribution{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("contribution", contributionID)
		}
		return touch(tx, storyID)
	})
}

func (r *StoryRepo) ToggleStoryLike(ctx context.Context, storyID, userID string) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := storyExists(tx, storyID); err != nil {
			return err
		}
		var err error
		liked, err = toggleRow(tx, &domain.StoryLike{StoryID: storyID, UserID: userID},
			"story_id = ? AND user_id = ?", storyID, userID)
		if err != nil {
			return orphan(err, "story", storyID)
		}
		return touch(tx, storyID)
	})
	return liked, err
}

func (r *StoryRepo) ToggleContributionLike(ctx context.Context, storyID, contributionID, userID string) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := storyExists(tx, storyID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&domain.Contribution{}).
			Where("id = ? AND story_id = ?", contributionID, storyID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("contribution", contributionID)
		}
		var err error
		liked, err = toggleRow(tx, &domain.ContributionLike{ContributionID: contributionID, UserID: userID},
			"contribution_id = ? AND user_id = ?", contributionID, userID)
		if err != nil {
			return orphan(err, "contribution", contributionID)
		}
		return touch(tx, storyID)
	})
	return liked, err
}

func (r *StoryRepo) AddComment(ctx context.Context, c *domain.Comment) error {
	if c.ID == "" {
		c.ID = utils.NewID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := storyExists(tx, c.StoryID); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return orphan(err, "story", c.StoryID)
		}
		return touch(tx, c.StoryID)
	})
}

func (r *StoryRepo) FindComment(ctx context.Context, storyID, commentID string) (*domain.Comment, error) {
	var c domain.Comment
	err := r.db.WithContext(ctx).First(&c, "id = ? AND story_id = ?", commentID, storyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("comment", commentID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *StoryRepo) DeleteComment(ctx context.Context, storyID, commentID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND story_id = ?", commentID, storyID).Delete(&domain.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("comment", commentID)
		}
		return touch(tx, storyID)
	})
}

// toggleRow 点赞切换：先删，删到了就是取消；没删到再插入（冲突忽略）
func toggleRow(tx *gorm.DB, row any, where string, args ...any) (bool, error) {
	res := tx.Where(where, args...).Delete(row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return false, err
	}
	return true, nil
}

func storyExists(db *gorm.DB, id string) error {
	var n int64
	if err := db.Model(&domain.Story{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("story", id)
	}
	return nil
}

// touch 刷新 stories.updated_at
func touch(tx *gorm.DB, storyID string) error {
	return tx.Model(&domain.Story{}).Where("id = ?", storyID).UpdateColumn("updated_at", now()).Error
}

// orphan 父记录在事务中途被并发删除时，外键冲突按 NotFound 处理
func orphan(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperror.NotFound(resource, id)
	}
	return err
}

func now() time.Time { return time.Now().UTC() }

func pointers(stories []domain.Story) []*domain.Story {
	out := make([]*domain.Story, len(stories))
	for i := range stories {
		out[i] = &stories[i]
	}
	return out
}

// hydrate 批量补齐作者、点赞、续写、评论；每类一条查询
func hydrate(db *gorm.DB, stories []*domain.Story, withEmail bool) error {
	if len(stories) == 0 {
		return nil
	}
	ids := make([]string, 0, len(stories))
	byID := make(map[string]*domain.Story, len(stories))
	userIDs := map[string]struct{}{}
	for _, s := range stories {
		ids = append(ids, s.ID)
		byID[s.ID] = s
		userIDs[s.AuthorID] = struct{}{}
		s.Likes = domain.LikeSet{}
		s.Contributions = []domain.Contribution{}
		s.Comments = []domain.Comment{}
	}

	var likes []domain.StoryLike
	if err := db.Where("story_id IN ?", ids).Order("created_at ASC, user_id ASC").Find(&likes).Error; err != nil {
		return err
	}
	for _, l := range likes {
		byID[l.StoryID].Likes = append(byID[l.StoryID].Likes, l.UserID)
	}

	var contribs []domain.Contribution
	if err := db.Where("story_id IN ?", ids).Order("created_at ASC, id ASC").Find(&contribs).Error; err != nil {
		return err
	}
	contribLikes := map[string]domain.LikeSet{}
	if len(contribs) > 0 {
		cids := make([]string, len(contribs))
		for i, c := range contribs {
			cids[i] = c.ID
			userIDs[c.AuthorID] = struct{}{}
		}
		var rows []domain.ContributionLike
		if err := db.Where("contribution_id IN ?", cids).Order("created_at ASC, user_id ASC").Find(&rows).Error; err != nil {
			return err
		}
		for _, l := range rows {
			contribLikes[l.ContributionID] = append(contribLikes[l.ContributionID], l.UserID)
		}
	}

	var comments []domain.Comment
	if err := db.Where("story_id IN ?", ids).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return err
	}
	for _, c := range comments {
		userIDs[c.AuthorID] = struct{}{}
	}

	refs, err := userRefs(db, userIDs, withEmail)
	if err != nil {
		return err
	}
	for _, c := range contribs {
		c.Author = refs.get(c.AuthorID)
		c.Likes = contribLikes[c.ID]
		if c.Likes == nil {
			c.Likes = domain.LikeSet{}
		}
		byID[c.StoryID].Contributions = append(byID[c.StoryID].Contributions, c)
	}
	for _, c := range comments {
		c.Author = refs.get(c.AuthorID)
		byID[c.StoryID].Comments = append(byID[c.StoryID].Comments, c)
	}
	for _, s := range stories {
		s.Author = refs.get(s.AuthorID)
	}
	return nil
}

type refMap map[string]*domain.UserRef

// get 作者已被删除时仍返回只有 id 的引用
func (m refMap) get(id string) *domain.UserRef {
	if r, ok := m[id]; ok {
		cp := *r
		return &cp
	}
	return &domain.UserRef{ID: id}
}

func userRefs(db *gorm.DB, ids map[string]struct{}, withEmail bool) (refMap, error) {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	var users []domain.User
	if err := db.Select("id", "name", "email").Where("id IN ?", list).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(refMap, len(users))
	for _, u := range users {
		ref := &domain.UserRef{ID: u.ID, Name: u.Name}
		if withEmail {
			ref.Email = u.Email
		}
		out[u.ID] = ref
	}
	return out, nil
}
