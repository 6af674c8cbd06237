package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetOrLoadJSON 以 JSON 形式缓存 load 的结果；load 出错（含 NotFound）不缓存
func GetOrLoadJSON[T any](
	c *Cache,
	ctx context.Context,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (*T, error),
) (*T, error) {
	var loaded *T
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, e := load(ctx)
		if e != nil {
			return nil, e
		}
		loaded = v
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	if loaded != nil {
		return loaded, nil
	}
	var out T
	if e := json.Unmarshal(b, &out); e != nil {
		return nil, e
	}
	return &out, nil
}
