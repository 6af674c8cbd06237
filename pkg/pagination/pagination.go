// Package pagination 计算列表分页窗口
package pagination

import "strconv"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

type PageInfo struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalStories int64 `json:"totalStories"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// Paginate totalPages = ceil(total/limit)；limit<=0 按默认值处理
func Paginate(total int64, page, limit int) PageInfo {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PageInfo{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalStories: total,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}

// Parse 解析 ?page&limit：缺省、非数字、<=0 回落到默认值，limit 不超过 maxLimit
func Parse(pageRaw, limitRaw string, defLimit, maxLimit int) (page, limit int) {
	if defLimit <= 0 {
		defLimit = DefaultLimit
	}
	page = atoiDefault(pageRaw, DefaultPage)
	limit = atoiDefault(limitRaw, defLimit)
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func Offset(page, limit int) int {
	if page <= 1 {
		return 0
	}
	return (page - 1) * limit
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
