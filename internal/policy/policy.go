// Package policy 权限判定；全部为纯函数，调用方在修改数据之前求值
package policy

import "storyverse/internal/domain"

// Owned 有作者的实体：Story / Contribution / Comment
type Owned interface {
	OwnerID() string
}

type CommentDeletePolicy string

const (
	CommentDeleteOpen          CommentDeletePolicy = "open" // 任意已登录用户（与旧版行为一致）
	CommentDeleteAuthor        CommentDeletePolicy = "author"
	CommentDeleteAuthorOrAdmin CommentDeletePolicy = "author_or_admin"
)

func IsOwner(e Owned, userID string) bool {
	return e != nil && userID != "" && e.OwnerID() == userID
}

func IsAdmin(u *domain.User) bool { return u != nil && u.IsAdmin }

// CanModify 编辑/删除故事、删除续写：只看归属；管理员走单独的 moderation 路径
func CanModify(e Owned, u *domain.User) bool {
	return u != nil && IsOwner(e, u.ID)
}

func CanDeleteComment(p CommentDeletePolicy, c *domain.Comment, u *domain.User) bool {
	if u == nil {
		return false
	}
	switch p {
	case CommentDeleteAuthor:
		return IsOwner(c, u.ID)
	case CommentDeleteAuthorOrAdmin:
		return IsOwner(c, u.ID) || IsAdmin(u)
	default:
		return true
	}
}

// CanWrite 封禁检查；enforceBans=false 时封禁用户仍可写
func CanWrite(u *domain.User, enforceBans bool) bool {
	if u == nil {
		return false
	}
	return !enforceBans || !u.IsBanned
}
