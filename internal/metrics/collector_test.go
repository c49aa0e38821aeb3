package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/database"
	"github.com/mautops/submission-workflow/internal/metrics"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStates struct {
	counts map[string]int64
	err    error
}

func (f *fixedStates) ItemsByState(context.Context) (map[string]int64, error) {
	return f.counts, f.err
}

func scrape(t *testing.T) string {
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

// TestCollector_CollectOnce 测试状态分布写入指标,旧状态被清除
func TestCollector_CollectOnce(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	logger, hook := test.NewNullLogger()
	states := &fixedStates{counts: map[string]int64{"pool:reviewstep": 4, "claimed:editstep": 1}}
	collector := metrics.NewCollector(db, states, time.Minute, logger)

	collector.CollectOnce(context.Background())
	body := scrape(t)
	assert.Contains(t, body, `workflow_items_by_state{state="pool:reviewstep"} 4`)
	assert.Contains(t, body, `workflow_items_by_state{state="claimed:editstep"} 1`)
	assert.Contains(t, body, "database_connections_max 1")

	states.counts = map[string]int64{"pool:editstep": 2}
	collector.CollectOnce(context.Background())
	body = scrape(t)
	assert.False(t, strings.Contains(body, `state="pool:reviewstep"`))
	assert.Contains(t, body, `workflow_items_by_state{state="pool:editstep"} 2`)

	states.err = errors.New("db down")
	collector.CollectOnce(context.Background())
	assert.Equal(t, "failed to collect workflow state metrics", hook.LastEntry().Message)
}

// TestCollector_StartStop 测试后台收集可以正常停止
func TestCollector_StartStop(t *testing.T) {
	collector := metrics.NewCollector(nil, nil, 10*time.Millisecond, nil)
	collector.Start()
	time.Sleep(30 * time.Millisecond)
	collector.Stop()
}

// TestRecordFunctions 测试计数器记录
func TestRecordFunctions(t *testing.T) {
	metrics.RecordSubmissionStarted("archived")
	metrics.RecordAdvance("approve", "pooled")
	metrics.RecordOperation("claim")
	metrics.RecordClaimConflict()
	metrics.RecordNotificationFailure("task_pool_ready")

	body := scrape(t)
	assert.Contains(t, body, `workflow_submissions_started_total{disposition="archived"}`)
	assert.Contains(t, body, `workflow_advances_total{disposition="pooled",outcome="approve"}`)
	assert.Contains(t, body, "workflow_claim_conflicts_total")
	assert.Contains(t, body, `workflow_notification_failures_total{template="task_pool_ready"}`)
}
