package workflow

import (
	"fmt"
	"strings"
)

// Outcome 审批动作结果
type Outcome string

const (
	OutcomeApprove         Outcome = "approve"
	OutcomeReject          Outcome = "reject"
	OutcomeApproveWithEdit Outcome = "approve_with_edit"
)

// ParseOutcome 解析审批动作
func ParseOutcome(value string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(value))); o {
	case OutcomeApprove, OutcomeReject, OutcomeApproveWithEdit:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown outcome %q", ErrActionNotAllowed, value)
}

// Scope 角色作用范围
type Scope string

const (
	ScopeCollection Scope = "collection"
	ScopeItem       Scope = "item"
	ScopeRepository Scope = "repository"
)

// 组名中的占位符,按条目解析
const (
	collectionPlaceholder = "${collection}"
	itemPlaceholder       = "${item}"
)

// Role 角色: 一类审批人,绑定到一个用户组
type Role struct {
	Name  string `yaml:"-"`
	Scope Scope  `yaml:"scope"`
	Group string `yaml:"group"`
}

// GroupFor 解析条目对应的用户组名
func (r Role) GroupFor(collectionID, itemID string) string {
	switch r.Scope {
	case ScopeCollection:
		return strings.ReplaceAll(r.Group, collectionPlaceholder, collectionID)
	case ScopeItem:
		group := strings.ReplaceAll(r.Group, itemPlaceholder, itemID)
		return strings.ReplaceAll(group, collectionPlaceholder, collectionID)
	default:
		return r.Group
	}
}

// Step 工作流步骤
type Step struct {
	Name    string    `yaml:"name"`
	Role    string    `yaml:"role"`
	Actions []Outcome `yaml:"actions"`
}

var defaultActions = []Outcome{OutcomeApprove, OutcomeReject}

// Allows 步骤是否允许该动作
func (s Step) Allows(o Outcome) bool {
	actions := s.Actions
	if len(actions) == 0 {
		actions = defaultActions
	}
	for _, a := range actions {
		if a == o {
			return true
		}
	}
	return false
}

// Workflow 有序的步骤列表
type Workflow struct {
	Name  string `yaml:"-"`
	Steps []Step `yaml:"steps"`
}

// IsEmpty 没有任何步骤的工作流,提交即归档
func (w *Workflow) IsEmpty() bool {
	return len(w.Steps) == 0
}

// Step 按名称查找步骤,返回步骤及其序号
func (w *Workflow) Step(name string) (Step, int, bool) {
	for i, s := range w.Steps {
		if s.Name == name {
			return s, i, true
		}
	}
	return Step{}, -1, false
}

// Next 返回 name 之后的步骤;name 为最后一步时 ok 为 false
func (w *Workflow) Next(name string) (Step, bool) {
	_, idx, found := w.Step(name)
	if !found || idx+1 >= len(w.Steps) {
		return Step{}, false
	}
	return w.Steps[idx+1], true
}

// Definitions 启动时加载的工作流配置,加载后只读
type Definitions struct {
	Roles       map[string]Role      `yaml:"roles"`
	Workflows   map[string]*Workflow `yaml:"workflows"`
	Collections map[string]string    `yaml:"collections"`
	Default     string               `yaml:"default"`
}

// WorkflowFor 返回集合配置的工作流
func (d *Definitions) WorkflowFor(collectionID string) (*Workflow, error) {
	name, mapped := d.Collections[collectionID]
	if !mapped {
		if d.Default == "" {
			return nil, Configuration("collection %q has no workflow and no default is configured", collectionID)
		}
		name = d.Default
	}
	wf, ok := d.Workflows[name]
	if !ok {
		return nil, Configuration("collection %q is mapped to undefined workflow %q", collectionID, name)
	}
	for _, step := range wf.Steps {
		if _, ok := d.Roles[step.Role]; !ok {
			return nil, Configuration("step %q of workflow %q references undefined role %q", step.Name, wf.Name, step.Role)
		}
	}
	return wf, nil
}

// RoleFor 返回步骤绑定的角色
func (d *Definitions) RoleFor(step Step) (Role, error) {
	role, ok := d.Roles[step.Role]
	if !ok {
		return Role{}, Configuration("step %q references undefined role %q", step.Name, step.Role)
	}
	return role, nil
}

// GroupForStep 解析某条目在某步骤上的候选用户组
func (d *Definitions) GroupForStep(wf *Workflow, stepName, collectionID, itemID string) (string, error) {
	step, _, ok := wf.Step(stepName)
	if !ok {
		return "", Configuration("workflow %q has no step %q", wf.Name, stepName)
	}
	role, err := d.RoleFor(step)
	if err != nil {
		return "", err
	}
	return role.GroupFor(collectionID, itemID), nil
}

// Validate 校验配置的完整性
func (d *Definitions) Validate() error {
	for name, role := range d.Roles {
		switch role.Scope {
		case ScopeCollection, ScopeItem, ScopeRepository:
		case "":
			return Configuration("role %q has no scope", name)
		default:
			return Configuration("role %q has unknown scope %q", name, role.Scope)
		}
		if strings.TrimSpace(role.Group) == "" {
			return Configuration("role %q has no group", name)
		}
	}
	for name, wf := range d.Workflows {
		if wf == nil {
			return Configuration("workflow %q is empty", name)
		}
		seen := make(map[string]bool, len(wf.Steps))
		for _, step := range wf.Steps {
			if step.Name == "" {
				return Configuration("workflow %q has a step without a name", name)
			}
			if strings.Contains(step.Name, ":") {
				return Configuration("step name %q in workflow %q must not contain ':'", step.Name, name)
			}
			if seen[step.Name] {
				return Configuration("workflow %q has duplicate step %q", name, step.Name)
			}
			seen[step.Name] = true
			if _, ok := d.Roles[step.Role]; !ok {
				return Configuration("step %q of workflow %q references undefined role %q", step.Name, name, step.Role)
			}
			for _, a := range step.Actions {
				if _, err := ParseOutcome(string(a)); err != nil {
					return Configuration("step %q of workflow %q has unknown action %q", step.Name, name, a)
				}
			}
		}
	}
	for collection, wfName := range d.Collections {
		if _, ok := d.Workflows[wfName]; !ok {
			return Configuration("collection %q is mapped to undefined workflow %q", collection, wfName)
		}
	}
	if d.Default != "" {
		if _, ok := d.Workflows[d.Default]; !ok {
			return Configuration("default workflow %q is undefined", d.Default)
		}
	}
	return nil
}
