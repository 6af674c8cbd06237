package domain

import (
	"context"
	"time"
)

type Story struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"size:32;not null;index" json:"authorId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// 以下由 repo 组装，不落 stories 表
	Author        *UserRef       `gorm:"-" json:"author"`
	Likes         LikeSet        `gorm:"-" json:"likes"`
	Contributions []Contribution `gorm:"-" json:"contributions"`
	Comments      []Comment      `gorm:"-" json:"comments"`
}

func (Story) TableName() string { return "stories" }

func (s *Story) OwnerID() string { return s.AuthorID }

// Contribution 追加在故事后的续写片段，只能整条删除，不能编辑
type Contribution struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	StoryID   string    `gorm:"size:32;not null;index" json:"storyId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"size:32;not null;index" json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`

	Author *UserRef `gorm:"-" json:"author"`
	Likes  LikeSet  `gorm:"-" json:"likes"`
	Story  *Story   `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Contribution) TableName() string { return "contributions" }

func (c *Contribution) OwnerID() string { return c.AuthorID }

type Comment struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	StoryID   string    `gorm:"size:32;not null;index" json:"storyId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"size:32;not null;index" json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`

	Author *UserRef `gorm:"-" json:"author"`
	Story  *Story   `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Comment) TableName() string { return "comments" }

func (c *Comment) OwnerID() string { return c.AuthorID }

// StoryLike / ContributionLike 点赞集合，一行一个成员；联合主键保证同一用户最多出现一次
type StoryLike struct {
	StoryID   string `gorm:"primaryKey;size:32"`
	UserID    string `gorm:"primaryKey;size:32;index"`
	CreatedAt time.Time
	Story     *Story `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE"`
}

func (StoryLike) TableName() string { return "story_likes" }

type ContributionLike struct {
	ContributionID string `gorm:"primaryKey;size:32"`
	UserID         string `gorm:"primaryKey;size:32;index"`
	CreatedAt      time.Time
	Contribution   *Contribution `gorm:"foreignKey:ContributionID;constraint:OnDelete:CASCADE"`
}

func (ContributionLike) TableName() string { return "contribution_likes" }

// StoryPatch 部分更新：nil 表示不改
type StoryPatch struct {
	Title   *string
	Content *string
}

type StoryFilter struct {
	AuthorID string // 空 = 全部
}

type StoryRepository interface {
	Create(ctx context.Context, s *Story) error
	FindByID(ctx context.Context, id string) (*Story, error)
	Exists(ctx context.Context, id string) error
	Update(ctx context.Context, id string, p StoryPatch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f StoryFilter, offset, limit int) ([]Story, int64, error)
	ListAll(ctx context.Context) ([]Story, error)

	AppendContribution(ctx context.Context, c *Contribution) error
	FindContribution(ctx context.Context, storyID, contributionID string) (*Contribution, error)
	DeleteContribution(ctx context.Context, storyID, contributionID string) error

	ToggleStoryLike(ctx context.Context, storyID, userID string) (liked bool, err error)
	ToggleContributionLike(ctx context.Context, storyID, contributionID, userID string) (liked bool, err error)

	AddComment(ctx context.Context, c *Comment) error
	FindComment(ctx context.Context, storyID, commentID string) (*Comment, error)
	DeleteComment(ctx context.Context, storyID, commentID string) error
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	LinkGoogle(ctx context.Context, id, googleID string) error
	List(ctx context.Context) ([]User, error)
	SetAdmin(ctx context.Context, id string, v bool) error
	SetBanned(ctx context.Context, id string, v bool) error
	// DeleteWithContent 返回受影响（被删或内容被改）的故事 id，供缓存失效
	DeleteWithContent(ctx context.Context, id string) (touched []string, err error)
}
