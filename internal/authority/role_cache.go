package authority

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RoleCache 角色读穿缓存
// 由容器显式注入,角色编辑后通过 Invalidate/InvalidateAll 失效
type RoleCache struct {
	source RoleSource
	ttl    time.Duration
	cache  *sync.Map
	group  singleflight.Group
	now    func() time.Time

	// 失效时递增,加载期间发生失效则丢弃加载结果
	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

// roleEntry 缓存条目
type roleEntry struct {
	role      *Role
	expiresAt time.Time
}

// NewRoleCache 创建角色缓存
func NewRoleCache(source RoleSource, ttl time.Duration) *RoleCache {
	return &RoleCache{
		source: source,
		ttl:    ttl,
		cache:  &sync.Map{},
		now:    time.Now,
		gens:   make(map[string]uint64),
	}
}

// GetRole 获取角色,缓存未命中时从数据源加载
// 同一角色的并发加载合并为一次
func (c *RoleCache) GetRole(ctx context.Context, id string) (*Role, error) {
	if val, found := c.cache.Load(id); found {
		entry := val.(*roleEntry)
		if c.now().Before(entry.expiresAt) {
			return entry.role, nil
		}
		// 已过期，删除
		c.cache.Delete(id)
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		gen, epoch := c.generation(id)
		role, err := c.source.GetRole(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[id] == gen && c.epoch == epoch {
			c.cache.Store(id, &roleEntry{role: role, expiresAt: c.now().Add(c.ttl)})
		}
		c.mu.Unlock()
		return role, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Role), nil
}

func (c *RoleCache) generation(id string) (uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], c.epoch
}

// Invalidate 失效单个角色
// 正在进行的加载结果不会写入缓存
func (c *RoleCache) Invalidate(id string) {
	c.mu.Lock()
	c.gens[id]++
	c.cache.Delete(id)
	c.mu.Unlock()
	c.group.Forget(id)
}

// InvalidateAll 清空缓存
func (c *RoleCache) InvalidateAll() {
	c.mu.Lock()
	c.epoch++
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		c.group.Forget(key.(string))
		return true
	})
	c.mu.Unlock()
}
