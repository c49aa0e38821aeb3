package auth

import (
	"context"
	"sort"

	"github.com/mautops/submission-workflow/internal/repository"
)

// DBGroupResolver 基于本地数据库的用户组解析,支持嵌套组
type DBGroupResolver struct {
	groups repository.GroupRepository
}

// NewDBGroupResolver 创建数据库用户组解析器
func NewDBGroupResolver(groups repository.GroupRepository) *DBGroupResolver {
	return &DBGroupResolver{groups: groups}
}

// IsMemberOfGroup 广度优先遍历 group 及其子组
func (r *DBGroupResolver) IsMemberOfGroup(ctx context.Context, person string, group string) (bool, error) {
	found := false
	err := r.walk(ctx, group, func(name string) (bool, error) {
		ok, err := r.groups.IsDirectMember(ctx, name, person)
		if err != nil {
			return false, err
		}
		found = ok
		return ok, nil
	})
	return found, err
}

// ListMembers 列出组内全部成员(含子组),按名称排序
func (r *DBGroupResolver) ListMembers(ctx context.Context, group string) ([]string, error) {
	seen := make(map[string]struct{})
	err := r.walk(ctx, group, func(name string) (bool, error) {
		members, err := r.groups.DirectMembers(ctx, name)
		if err != nil {
			return false, err
		}
		for _, m := range members {
			seen[m] = struct{}{}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	members := make([]string, 0, len(seen))
	for m := range seen {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

// walk 依次访问 group 及其可达子组,visit 返回 true 时停止;组之间的环只访问一次
func (r *DBGroupResolver) walk(ctx context.Context, group string, visit func(name string) (bool, error)) error {
	visited := map[string]bool{group: true}
	queue := []string{group}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		stop, err := visit(name)
		if err != nil || stop {
			return err
		}

		children, err := r.groups.Children(ctx, name)
		if err != nil {
			return err
		}
		for _, child := range children {
			if !visited[child] {
				visited[child] = true
				queue = append(queue, child)
			}
		}
	}
	return nil
}
