package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sailboat/config"
	"sailboat/internal/model"
	"sailboat/internal/repository"
	"sailboat/internal/strategy"
	"sailboat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Run(t *testing.T) {
	h := newHarness(t)
	h.artifact(t, "p", "v1", "echo hello\necho 'ERROR boom' >&2\nexit 3\n")
	tc := model.TriggerContext{ScheduleID: "s-1", Project: "p", Version: "v1", TriggerMode: model.TriggerModeInterval, OwnerID: "u-1", OwnerName: "alice"}

	record, err := h.executor.Run(context.Background(), "p", "v1", tc)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, model.ResultStderr, record.Result)
	assert.Equal(t, 3, record.ExitCode)
	require.NotNil(t, record.ScheduleID)
	assert.Equal(t, "s-1", *record.ScheduleID)
	assert.False(t, record.EndTime.Before(record.StartTime))
	assert.Len(t, h.executions.snapshot(), 1)

	content, err := os.ReadFile(h.logPath("p", record.ID))
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello")
	assert.Contains(t, string(content), "ERROR boom")

	select {
	case raw := <-h.alerter.calls:
		assert.Equal(t, "ERROR boom\n", raw)
	case <-time.After(3 * time.Second):
		t.Fatal("alert was not raised for stderr output")
	}

	staged, err := os.ReadDir(filepath.Join(h.root, "staging"))
	require.NoError(t, err)
	assert.Empty(t, staged, "staging dir should be cleaned")
}

func TestExecutor_RunCleanOutputDoesNotAlert(t *testing.T) {
	h := newHarness(t)
	h.artifact(t, "p", "v1", "echo fine\n")

	record, err := h.executor.Run(context.Background(), "p", "v1", model.TriggerContext{Project: "p", Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, model.ResultSuccess, record.Result)
	assert.Equal(t, 0, record.ExitCode)
	assert.Nil(t, record.ScheduleID)

	select {
	case raw := <-h.alerter.calls:
		t.Fatalf("unexpected alert %q", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestExecutor_RunMissingArtifactWritesNoRecord(t *testing.T) {
	h := newHarness(t)

	record, err := h.executor.Run(context.Background(), "p", "v404", model.TriggerContext{})
	assert.ErrorIs(t, err, repository.ErrArtifactNotFound)
	assert.True(t, IsRunSkipped(err))
	assert.Nil(t, record)
	assert.Empty(t, h.executions.snapshot())

	_, err = h.executor.Run(context.Background(), "../etc", "v1", model.TriggerContext{})
	assert.ErrorIs(t, err, repository.ErrInvalidPath)
	assert.Empty(t, h.executions.snapshot())
}

func TestExecutor_RunLaunchError(t *testing.T) {
	h := newHarness(t)
	h.artifact(t, "p", "v1", "echo never\n")
	launcher := strategy.NewInterpreterStrategy("/nonexistent/interpreter", []string{"{artifact}"}, "")
	executor := NewExecutor(config.Executor{}, logger.Nop(), h.artifacts, h.executions, h.logRepo, launcher, h.alerter)

	record, err := executor.Run(context.Background(), "p", "v1", model.TriggerContext{Project: "p", Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, model.ResultLaunchError, record.Result)
	assert.Equal(t, strategy.ExitCodeLaunchFailed, record.ExitCode)
	assert.Len(t, h.executions.snapshot(), 1)
}

func TestExecutor_RunWorkerTimeout(t *testing.T) {
	h := newHarness(t)
	h.artifact(t, "p", "v1", "exec sleep 5\n")
	launcher := strategy.NewInterpreterStrategy("sh", []string{"{artifact}"}, "")
	executor := NewExecutor(config.Executor{WorkerTimeout: 300 * time.Millisecond}, logger.Nop(), h.artifacts, h.executions, h.logRepo, launcher, h.alerter)

	start := time.Now()
	record, err := executor.Run(context.Background(), "p", "v1", model.TriggerContext{Project: "p", Version: "v1"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, model.ResultStderr, record.Result)
	assert.NotEqual(t, 0, record.ExitCode)

	select {
	case raw := <-h.alerter.calls:
		assert.True(t, strings.Contains(raw, "ERROR"), raw)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout should raise an alert")
	}
}
