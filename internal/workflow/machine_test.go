package workflow_test

import (
	"errors"
	"testing"

	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeStepWorkflow 经典三步审批: 审核、编辑、终审
func threeStepWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		Name: "three-step",
		Steps: []workflow.Step{
			{Name: "reviewstep", Role: "reviewer"},
			{Name: "editstep", Role: "editor", Actions: []workflow.Outcome{workflow.OutcomeApprove, workflow.OutcomeReject, workflow.OutcomeApproveWithEdit}},
			{Name: "finaleditstep", Role: "finaleditor", Actions: []workflow.Outcome{workflow.OutcomeApprove, workflow.OutcomeApproveWithEdit}},
		},
	}
}

// TestStateMachine_Initial 测试初始状态
func TestStateMachine_Initial(t *testing.T) {
	m := workflow.NewStateMachine()

	tr := m.Initial(threeStepWorkflow())
	assert.Equal(t, workflow.Pool("reviewstep"), tr.To)
	assert.Equal(t, workflow.DispositionPooled, tr.Disposition)

	empty := m.Initial(&workflow.Workflow{Name: "none"})
	assert.Equal(t, workflow.Archive(), empty.To)
	assert.Equal(t, workflow.DispositionArchived, empty.Disposition)
}

// TestStateMachine_ApproveWalksAllSteps 测试逐步同意直至归档
func TestStateMachine_ApproveWalksAllSteps(t *testing.T) {
	m := workflow.NewStateMachine()
	wf := threeStepWorkflow()

	state := m.Initial(wf).To
	var visited []string
	for !state.IsTerminal() {
		claimed, err := m.Claim(wf, state)
		require.NoError(t, err)
		require.True(t, claimed.To.IsClaimed())
		visited = append(visited, claimed.To.Step)

		tr, err := m.Advance(wf, claimed.To, workflow.OutcomeApprove)
		require.NoError(t, err)
		state = tr.To
	}

	assert.Equal(t, []string{"reviewstep", "editstep", "finaleditstep"}, visited)
	assert.Equal(t, workflow.Archive(), state)
}

// TestStateMachine_Reject 测试拒绝退回工作区
func TestStateMachine_Reject(t *testing.T) {
	m := workflow.NewStateMachine()
	wf := threeStepWorkflow()

	tr, err := m.Advance(wf, workflow.Claimed("editstep"), workflow.OutcomeReject)
	require.NoError(t, err)
	assert.Equal(t, workflow.DispositionReturned, tr.Disposition)
	assert.Equal(t, workflow.Submit(), tr.To)
	assert.Equal(t, "editstep", tr.Step)
}

// TestStateMachine_ApproveWithEdit 测试带编辑的同意与普通同意去向一致
func TestStateMachine_ApproveWithEdit(t *testing.T) {
	m := workflow.NewStateMachine()
	wf := threeStepWorkflow()

	tr, err := m.Advance(wf, workflow.Claimed("editstep"), workflow.OutcomeApproveWithEdit)
	require.NoError(t, err)
	assert.Equal(t, workflow.Pool("finaleditstep"), tr.To)

	tr, err = m.Advance(wf, workflow.Claimed("finaleditstep"), workflow.OutcomeApproveWithEdit)
	require.NoError(t, err)
	assert.Equal(t, workflow.DispositionArchived, tr.Disposition)
}

// TestStateMachine_ActionNotAllowed 测试步骤不允许的动作
func TestStateMachine_ActionNotAllowed(t *testing.T) {
	m := workflow.NewStateMachine()
	wf := threeStepWorkflow()

	_, err := m.Advance(wf, workflow.Claimed("reviewstep"), workflow.OutcomeApproveWithEdit)
	assert.True(t, errors.Is(err, workflow.ErrActionNotAllowed))

	_, err = m.Advance(wf, workflow.Claimed("finaleditstep"), workflow.OutcomeReject)
	assert.True(t, errors.Is(err, workflow.ErrActionNotAllowed))
}

// TestStateMachine_InvalidFromState 测试非法的起始状态
func TestStateMachine_InvalidFromState(t *testing.T) {
	m := workflow.NewStateMachine()
	wf := threeStepWorkflow()

	_, err := m.Advance(wf, workflow.Pool("reviewstep"), workflow.OutcomeApprove)
	assert.True(t, errors.Is(err, workflow.ErrInvalidTransition))

	_, err = m.Claim(wf, workflow.Claimed("reviewstep"))
	assert.True(t, errors.Is(err, workflow.ErrAlreadyClaimed))
	assert.True(t, workflow.IsConcurrency(err))

	_, err = m.Unclaim(wf, workflow.Pool("reviewstep"))
	assert.True(t, errors.Is(err, workflow.ErrInvalidTransition))

	_, err = m.Claim(wf, workflow.Pool("nosuchstep"))
	assert.True(t, workflow.IsConfiguration(err))
}

// TestStateMachine_UnclaimKeepsStep 测试释放任务不回退步骤
func TestStateMachine_UnclaimKeepsStep(t *testing.T) {
	m := workflow.NewStateMachine()
	wf := threeStepWorkflow()

	tr, err := m.Unclaim(wf, workflow.Claimed("finaleditstep"))
	require.NoError(t, err)
	assert.Equal(t, workflow.Pool("finaleditstep"), tr.To)
}

// TestParseState 测试状态解析
func TestParseState(t *testing.T) {
	cases := []struct {
		in      string
		want    workflow.State
		wantErr bool
	}{
		{in: "submit", want: workflow.Submit()},
		{in: "archive", want: workflow.Archive()},
		{in: "pool:reviewstep", want: workflow.Pool("reviewstep")},
		{in: "claimed:editstep", want: workflow.Claimed("editstep")},
		{in: "pool:", wantErr: true},
		{in: "archive:x", wantErr: true},
		{in: "step1pool", wantErr: true},
	}
	for _, tc := range cases {
		got, err := workflow.ParseState(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.in, got.String())
	}
}
