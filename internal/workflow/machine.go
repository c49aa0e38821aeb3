package workflow

import "fmt"

// Disposition 状态转换的结果去向
type Disposition string

const (
	DispositionPooled   Disposition = "pooled"
	DispositionClaimed  Disposition = "claimed"
	DispositionArchived Disposition = "archived"
	DispositionReturned Disposition = "returned"
)

// Transition 一次状态转换
type Transition struct {
	From        State
	To          State
	Disposition Disposition
	// Step 动作发生时所在的步骤
	Step string
}

// StateMachine 工作流状态机
// 无状态,所有步骤信息来自传入的 Workflow
type StateMachine struct{}

// NewStateMachine 创建状态机
func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// Initial 返回提交后的初始状态;空工作流直接归档
func (m *StateMachine) Initial(wf *Workflow) Transition {
	if wf.IsEmpty() {
		return Transition{From: Submit(), To: Archive(), Disposition: DispositionArchived}
	}
	first := wf.Steps[0].Name
	return Transition{From: Submit(), To: Pool(first), Disposition: DispositionPooled, Step: first}
}

// Claim pool:S -> claimed:S
func (m *StateMachine) Claim(wf *Workflow, from State) (Transition, error) {
	if !from.IsPool() {
		return Transition{}, fmt.Errorf("%w: cannot claim from %s", ErrAlreadyClaimed, from)
	}
	if err := m.Validate(wf, from); err != nil {
		return Transition{}, err
	}
	return Transition{From: from, To: Claimed(from.Step), Disposition: DispositionClaimed, Step: from.Step}, nil
}

// Unclaim claimed:S -> pool:S,步骤不回退
func (m *StateMachine) Unclaim(wf *Workflow, from State) (Transition, error) {
	if !from.IsClaimed() {
		return Transition{}, fmt.Errorf("%w: cannot unclaim from %s", ErrInvalidTransition, from)
	}
	if err := m.Validate(wf, from); err != nil {
		return Transition{}, err
	}
	return Transition{From: from, To: Pool(from.Step), Disposition: DispositionPooled, Step: from.Step}, nil
}

// Advance 根据审批结果计算下一状态
//
// approve / approve_with_edit 进入下一步骤的任务池,最后一步则归档;
// reject 回到提交前状态(条目退回提交人工作区)。
func (m *StateMachine) Advance(wf *Workflow, from State, outcome Outcome) (Transition, error) {
	if !from.IsClaimed() {
		return Transition{}, fmt.Errorf("%w: cannot advance from %s", ErrInvalidTransition, from)
	}
	step, _, ok := wf.Step(from.Step)
	if !ok {
		return Transition{}, Configuration("state %s has no step in workflow %q", from, wf.Name)
	}
	if !step.Allows(outcome) {
		return Transition{}, fmt.Errorf("%w: %q on step %q", ErrActionNotAllowed, outcome, step.Name)
	}

	switch outcome {
	case OutcomeReject:
		return Transition{From: from, To: Submit(), Disposition: DispositionReturned, Step: step.Name}, nil
	case OutcomeApprove, OutcomeApproveWithEdit:
		next, ok := wf.Next(step.Name)
		if !ok {
			return Transition{From: from, To: Archive(), Disposition: DispositionArchived, Step: step.Name}, nil
		}
		return Transition{From: from, To: Pool(next.Name), Disposition: DispositionPooled, Step: step.Name}, nil
	}
	return Transition{}, fmt.Errorf("%w: unknown outcome %q", ErrActionNotAllowed, outcome)
}

// Validate 检查状态是否对应工作流中真实存在的步骤
func (m *StateMachine) Validate(wf *Workflow, s State) error {
	switch s.Kind {
	case StateSubmit, StateArchive:
		return fmt.Errorf("%w: %s is not an in-flight state", ErrInvalidState, s)
	case StatePool, StateClaimed:
		if _, _, ok := wf.Step(s.Step); !ok {
			return Configuration("state %s has no step in workflow %q", s, wf.Name)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidState, s.String())
}
