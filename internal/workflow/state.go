package workflow

import (
	"fmt"
	"strings"
)

// StateKind 状态类别
type StateKind string

const (
	StateSubmit  StateKind = "submit"
	StatePool    StateKind = "pool"
	StateClaimed StateKind = "claimed"
	StateArchive StateKind = "archive"
)

// State 工作流状态
// 任务池和已认领状态携带步骤名,submit 和 archive 不携带
type State struct {
	Kind StateKind
	Step string
}

// Submit 提交前状态
func Submit() State { return State{Kind: StateSubmit} }

// Archive 归档终态
func Archive() State { return State{Kind: StateArchive} }

// Pool 步骤的任务池状态
func Pool(step string) State { return State{Kind: StatePool, Step: step} }

// Claimed 步骤的已认领状态
func Claimed(step string) State { return State{Kind: StateClaimed, Step: step} }

// IsPool 是否为任务池状态
func (s State) IsPool() bool { return s.Kind == StatePool }

// IsClaimed 是否为已认领状态
func (s State) IsClaimed() bool { return s.Kind == StateClaimed }

// IsTerminal 是否为终态
func (s State) IsTerminal() bool { return s.Kind == StateArchive }

// String 返回存储格式: submit / archive / pool:<step> / claimed:<step>
func (s State) String() string {
	switch s.Kind {
	case StatePool, StateClaimed:
		return string(s.Kind) + ":" + s.Step
	default:
		return string(s.Kind)
	}
}

// ParseState 解析存储格式的状态
func ParseState(value string) (State, error) {
	kind, step, hasStep := strings.Cut(value, ":")
	switch StateKind(kind) {
	case StateSubmit, StateArchive:
		if hasStep {
			return State{}, fmt.Errorf("%w: %q carries a step", ErrInvalidState, value)
		}
		return State{Kind: StateKind(kind)}, nil
	case StatePool, StateClaimed:
		if !hasStep || step == "" {
			return State{}, fmt.Errorf("%w: %q has no step", ErrInvalidState, value)
		}
		return State{Kind: StateKind(kind), Step: step}, nil
	}
	return State{}, fmt.Errorf("%w: %q", ErrInvalidState, value)
}

// PoolPrefix 任务池状态前缀,用于存储层查询
const PoolPrefix = string(StatePool) + ":"

// ClaimedPrefix 已认领状态前缀
const ClaimedPrefix = string(StateClaimed) + ":"
