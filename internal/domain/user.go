package domain

import "time"

type User struct {
	ID           string    `gorm:"primaryKey;size:32" json:"id"`
	GoogleID     *string   `gorm:"uniqueIndex;size:64" json:"googleId,omitempty"`
	Email        string    `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	PasswordHash string    `gorm:"size:100" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"isAdmin"`
	IsBanned     bool      `gorm:"not null;default:false" json:"isBanned"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// UserRef 作者展示字段
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"` // 仅管理端列表填充
}

func (u *User) Ref() *UserRef { return &UserRef{ID: u.ID, Name: u.Name} }
