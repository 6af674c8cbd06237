package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache Redis 读缓存 + singleflight 合并回源。
// nil *Cache 合法：直接回源，不缓存；Redis 不可用时同样降级为回源。
//
// 每个 key 配一个代数计数（<key>:gen）。Invalidate 先加代数再删 key；
// 回源前记下代数，写回时在 WATCH 事务里确认代数没变，
// 回源期间发生过失效就放弃写回，旧数据不会在失效之后落进缓存（跨进程同样成立）。
type Cache struct {
	RDB    *redis.Client
	Prefix string
	sf     singleflight.Group
}

type Options struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// 代数 key 的存活时间，远大于任何一次回源
const genTTL = time.Hour

var errStale = errors.New("cache: invalidated during load")

func New(o Options) *Cache {
	ro := &redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}
	if o.DialTimeout > 0 {
		ro.DialTimeout = o.DialTimeout
		ro.ReadTimeout = o.DialTimeout
		ro.WriteTimeout = o.DialTimeout
	}
	return &Cache{RDB: redis.NewClient(ro), Prefix: o.Prefix}
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.RDB.Ping(ctx).Err()
}

func (c *Cache) key(k string) string    { return c.Prefix + k }
func (c *Cache) genKey(k string) string { return c.Prefix + k + ":gen" }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return load(ctx)
	}
	// 先读缓存
	if b, err := c.RDB.Get(ctx, c.key(key)).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源；与发起者的请求生命周期解绑，避免它取消时连累其它等待者
	v, err, _ := c.sf.Do(key, func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		gen, genErr := c.generation(lctx, key)
		b, e := load(lctx)
		if e != nil {
			return nil, e
		}
		if genErr == nil {
			_ = c.store(lctx, key, gen, b, ttl)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) generation(ctx context.Context, key string) (int64, error) {
	n, err := c.RDB.Get(ctx, c.genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// store 代数未变才写回
func (c *Cache) store(ctx context.Context, key string, gen int64, b []byte, ttl time.Duration) error {
	gk := c.genKey(key)
	return c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, c.key(key), b, ttl)
			return nil
		})
		return err
	}, gk)
}

// Invalidate 加代数并删除 key；Redis 出错只返回错误，调用方自行决定是否忽略
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, c.genKey(k))
			p.Expire(ctx, c.genKey(k), genTTL)
			p.Del(ctx, c.key(k))
		}
		return nil
	})
	return err
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.RDB.Close()
}
