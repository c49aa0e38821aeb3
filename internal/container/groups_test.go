package container

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/submission-workflow/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryGroups struct {
	members map[string]bool
	lookups int
}

func (m *memoryGroups) IsMemberOfGroup(ctx context.Context, person string, group string) (bool, error) {
	m.lookups++
	return m.members[group+"/"+person], nil
}

func (m *memoryGroups) AddMember(ctx context.Context, group string, person string) error {
	m.members[group+"/"+person] = true
	return nil
}

func (m *memoryGroups) RemoveMember(ctx context.Context, group string, person string) error {
	delete(m.members, group+"/"+person)
	return nil
}

func (m *memoryGroups) AddChild(ctx context.Context, parent string, child string) error {
	return nil
}

// TestResettingGroupAdmin 维护用户组后缓存的成员关系失效
func TestResettingGroupAdmin(t *testing.T) {
	ctx := context.Background()
	groups := &memoryGroups{members: map[string]bool{}}
	cached := auth.NewCachedGroupResolver(groups, auth.NewMembershipCache(time.Hour))
	admin := &resettingGroupAdmin{GroupAdmin: groups, cache: cached}

	ok, err := cached.IsMemberOfGroup(ctx, "alice", "Reviewers")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, admin.AddMember(ctx, "Reviewers", "alice"))
	ok, err = cached.IsMemberOfGroup(ctx, "alice", "Reviewers")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, admin.RemoveMember(ctx, "Reviewers", "alice"))
	ok, err = cached.IsMemberOfGroup(ctx, "alice", "Reviewers")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, groups.lookups)
}
