package domain

import "encoding/json"

// LikeSet 点赞用户 id 集合，按点赞先后排列
type LikeSet []string

func (s LikeSet) Has(userID string) bool {
	for _, id := range s {
		if id == userID {
			return true
		}
	}
	return false
}

// Toggle 已在集合中则移除，否则追加；不修改原切片
func (s LikeSet) Toggle(userID string) LikeSet {
	out := make(LikeSet, 0, len(s)+1)
	found := false
	for _, id := range s {
		if id == userID {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		out = append(out, userID)
	}
	return out
}

// MarshalJSON 空集合输出 []，前端直接取 length
func (s LikeSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}
