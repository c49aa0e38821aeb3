package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mautops/submission-workflow/internal/auth"
	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/database"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGroups(t *testing.T) repository.GroupRepository {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return repository.NewGroupRepository(db)
}

// TestDBGroupResolver_NestedGroups 测试子组成员同时属于父组
func TestDBGroupResolver_NestedGroups(t *testing.T) {
	ctx := context.Background()
	groups := setupGroups(t)
	require.NoError(t, groups.AddMember(ctx, "COLLECTION_C_REVIEWER", "alice"))
	require.NoError(t, groups.AddMember(ctx, "Seniors", "bob"))
	require.NoError(t, groups.AddChild(ctx, "COLLECTION_C_REVIEWER", "Seniors"))
	require.NoError(t, groups.AddMember(ctx, "Editors", "erin"))

	resolver := auth.NewDBGroupResolver(groups)

	ok, err := resolver.IsMemberOfGroup(ctx, "bob", "COLLECTION_C_REVIEWER")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.IsMemberOfGroup(ctx, "alice", "Seniors")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = resolver.IsMemberOfGroup(ctx, "erin", "COLLECTION_C_REVIEWER")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := resolver.ListMembers(ctx, "COLLECTION_C_REVIEWER")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)

	members, err = resolver.ListMembers(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, members)
}

// TestDBGroupResolver_Cycle 测试组之间存在环时仍能终止
func TestDBGroupResolver_Cycle(t *testing.T) {
	ctx := context.Background()
	groups := setupGroups(t)
	require.NoError(t, groups.AddChild(ctx, "A", "B"))
	require.NoError(t, groups.AddChild(ctx, "B", "A"))
	require.NoError(t, groups.AddMember(ctx, "B", "bob"))

	resolver := auth.NewDBGroupResolver(groups)

	ok, err := resolver.IsMemberOfGroup(ctx, "bob", "A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.IsMemberOfGroup(ctx, "mallory", "A")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := resolver.ListMembers(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)
}

// countingResolver 记录调用次数
type countingResolver struct {
	calls   int
	members map[string]bool
	err     error
}

func (r *countingResolver) IsMemberOfGroup(_ context.Context, person string, group string) (bool, error) {
	r.calls++
	if r.err != nil {
		return false, r.err
	}
	return r.members[person+"@"+group], nil
}

// TestCachedGroupResolver 测试缓存命中、失效与错误不缓存
func TestCachedGroupResolver(t *testing.T) {
	ctx := context.Background()
	inner := &countingResolver{members: map[string]bool{"alice@Reviewers": true}}
	resolver := auth.NewCachedGroupResolver(inner, auth.NewMembershipCache(time.Minute))

	for i := 0; i < 3; i++ {
		ok, err := resolver.IsMemberOfGroup(ctx, "alice", "Reviewers")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.calls)

	resolver.Reset()
	_, err := resolver.IsMemberOfGroup(ctx, "alice", "Reviewers")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	inner.err = errors.New("fga unavailable")
	_, err = resolver.IsMemberOfGroup(ctx, "bob", "Reviewers")
	assert.Error(t, err)
	inner.err = nil
	ok, err := resolver.IsMemberOfGroup(ctx, "bob", "Reviewers")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = resolver.ListMembers(ctx, "Reviewers")
	assert.True(t, errors.Is(err, auth.ErrListingUnsupported))
}

// TestCachedGroupResolver_ListMembersDelegates 测试底层支持时透传成员列表
func TestCachedGroupResolver_ListMembersDelegates(t *testing.T) {
	ctx := context.Background()
	groups := setupGroups(t)
	require.NoError(t, groups.AddMember(ctx, "Editors", "erin"))

	resolver := auth.NewCachedGroupResolver(auth.NewDBGroupResolver(groups), auth.NewMembershipCache(time.Minute))
	members, err := resolver.ListMembers(ctx, "Editors")
	require.NoError(t, err)
	assert.Equal(t, []string{"erin"}, members)
}

// TestMembershipCache_Expiry 测试缓存过期
func TestMembershipCache_Expiry(t *testing.T) {
	cache := auth.NewMembershipCache(10 * time.Millisecond)
	cache.Set("user:alice|Reviewers", true)

	value, found := cache.Get("user:alice|Reviewers")
	assert.True(t, found)
	assert.True(t, value)

	time.Sleep(20 * time.Millisecond)
	_, found = cache.Get("user:alice|Reviewers")
	assert.False(t, found)

	cache.Set("user:alice|Reviewers", true)
	cache.Clear()
	_, found = cache.Get("user:alice|Reviewers")
	assert.False(t, found)
}

// TestGetGroupModel 测试权限模型包含嵌套组定义
func TestGetGroupModel(t *testing.T) {
	model := auth.GetGroupModel()
	assert.Contains(t, model, "type group")
	assert.Contains(t, model, "group#member")
}
