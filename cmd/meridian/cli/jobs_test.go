package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/jobs"
)

func TestBuildTaskSupportedJobs(t *testing.T) {
	for _, name := range []string{jobs.TaskLedgerIntegrity, jobs.TaskStockReconcile, jobs.TaskAuditPrune} {
		task, err := BuildTask(name)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
	}
}

func TestBuildTaskUnknownJob(t *testing.T) {
	_, err := BuildTask("mail:send")
	require.Error(t, err)
}

func TestBuildTaskAuditPrunePayload(t *testing.T) {
	task, err := BuildTask(jobs.TaskAuditPrune)
	require.NoError(t, err)

	var payload jobs.AuditPrunePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Zero(t, payload.RetentionDays)
}
