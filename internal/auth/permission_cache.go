package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mautops/submission-workflow/internal/workflow"
)

// ErrListingUnsupported 底层解析器不支持列出成员
var ErrListingUnsupported = errors.New("group resolver cannot list members")

// MembershipCache 成员资格缓存
type MembershipCache struct {
	cache *sync.Map
	ttl   time.Duration
}

// cacheEntry 缓存条目
type cacheEntry struct {
	value     bool
	expiresAt time.Time
}

// NewMembershipCache 创建成员资格缓存
func NewMembershipCache(ttl time.Duration) *MembershipCache {
	return &MembershipCache{
		cache: &sync.Map{},
		ttl:   ttl,
	}
}

// Get 获取缓存
func (c *MembershipCache) Get(key string) (bool, bool) {
	val, found := c.cache.Load(key)
	if !found {
		return false, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Delete(key)
		return false, false
	}

	return entry.value, true
}

// Set 设置缓存
func (c *MembershipCache) Set(key string, value bool) {
	c.cache.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Clear 清空缓存
func (c *MembershipCache) Clear() {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}

// CachedGroupResolver 带缓存的用户组解析器
type CachedGroupResolver struct {
	resolver workflow.GroupResolver
	cache    *MembershipCache
}

// NewCachedGroupResolver 创建带缓存的用户组解析器
func NewCachedGroupResolver(resolver workflow.GroupResolver, cache *MembershipCache) *CachedGroupResolver {
	return &CachedGroupResolver{
		resolver: resolver,
		cache:    cache,
	}
}

// IsMemberOfGroup 检查成员资格(带缓存)
func (c *CachedGroupResolver) IsMemberOfGroup(ctx context.Context, person string, group string) (bool, error) {
	key := cacheKey(person, group)
	if value, found := c.cache.Get(key); found {
		return value, nil
	}

	ok, err := c.resolver.IsMemberOfGroup(ctx, person, group)
	if err != nil {
		return false, err
	}

	c.cache.Set(key, ok)
	return ok, nil
}

// ListMembers 不缓存,直接交给底层解析器
func (c *CachedGroupResolver) ListMembers(ctx context.Context, group string) ([]string, error) {
	lister, ok := c.resolver.(workflow.GroupLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	return lister.ListMembers(ctx, group)
}

// Reset 成员或嵌套关系变更后清空缓存
// 嵌套组的变更会影响所有上级组,无法只清除单个组
func (c *CachedGroupResolver) Reset() {
	c.cache.Clear()
}

func cacheKey(person, group string) string {
	return fmt.Sprintf("user:%s|%s", person, group)
}
