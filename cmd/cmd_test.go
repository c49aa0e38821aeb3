package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootCommand_Subcommands 测试子命令注册
func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"server", "migrate", "workflow", "group"} {
		assert.True(t, names[want], want)
	}

	wfNames := map[string]bool{}
	for _, c := range workflowCmd.Commands() {
		wfNames[c.Name()] = true
	}
	for _, want := range []string{"submit", "pool", "owned", "claim", "unclaim", "advance", "abort", "verify", "history", "notifications"} {
		assert.True(t, wfNames[want], want)
	}
}

// TestParseEdits 测试元数据修改参数解析
func TestParseEdits(t *testing.T) {
	edits, err := parseEdits([]string{"dc.subject=physics", "!dc.title=New = Title"})
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, "dc.subject", edits[0].Field)
	assert.False(t, edits[0].Replace)
	assert.Equal(t, "dc.title", edits[1].Field)
	assert.Equal(t, "New = Title", edits[1].Value)
	assert.True(t, edits[1].Replace)

	_, err = parseEdits([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseEdits([]string{"!=x"})
	assert.Error(t, err)
}

// TestWorkflowCommands 测试通过命令行完成提交、认领与审批
func TestWorkflowCommands(t *testing.T) {
	dir := t.TempDir()
	defsPath := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(defsPath, []byte(`
roles:
  reviewer: {scope: collection, group: "COLLECTION_${collection}_REVIEWER"}
workflows:
  none:
    steps: []
collections:
  "D": none
`), 0o644))
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
database:
  driver: sqlite
  path: `+filepath.Join(dir, "workflow.db")+`
workflow:
  definitions: `+defsPath+`
log:
  level: error
notify:
  log: false
`), 0o644))

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := GetRootCmd()
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append(args, "--config", configPath))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run("workflow", "submit", "--collection", "D", "--submitter", "carol", "--title", "Notes")
	require.NoError(t, err)
	assert.Contains(t, out, "archived as 123456789/")

	out, err = run("workflow", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "COLLECTION")

	_, err = run("group", "add-member", "COLLECTION_D_REVIEWER", "alice")
	require.NoError(t, err)
	out, err = run("group", "members", "COLLECTION_D_REVIEWER")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")

	out, err = run("workflow", "notifications", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "TEMPLATE")

	out, err = run("group", "model")
	require.NoError(t, err)
	assert.Contains(t, out, "define member")

	_, err = run("workflow", "claim", "missing", "alice")
	assert.Error(t, err)
}
