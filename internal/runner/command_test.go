package runner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lithium-ci/lithium/internal/schedule"
	"github.com/stretchr/testify/assert"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunSubstitutesFilePlaceholder(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{Argv: []string{"sh", "-c", "test {file} = src/app.test.js"}}
	result := cmd.Run(context.Background(), schedule.Job{ID: uuid.New(), File: "src/app.test.js"})

	assert.Equal(t, schedule.StatusPassed, result.Status)
	assert.Equal(t, "src/app.test.js", result.File)
	assert.Equal(t, 1, result.TestCount)
	assert.Zero(t, result.FailureCount)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRunReportsFailureWithOutputTail(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{Argv: []string{"sh", "-c", "echo assertion failed; exit 3"}}
	result := cmd.Run(context.Background(), schedule.Job{ID: uuid.New(), File: "src/broken.test.js"})

	assert.Equal(t, schedule.StatusFailed, result.Status)
	assert.Equal(t, 1, result.FailureCount)
	assert.Contains(t, result.Error, "assertion failed")
}

func TestRunHonorsTimeout(t *testing.T) {
	skipWithoutShell(t)

	cmd := &Command{
		Argv:    []string{"sh", "-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	}
	result := cmd.Run(context.Background(), schedule.Job{ID: uuid.New(), File: "src/slow.test.js"})

	assert.Equal(t, schedule.StatusFailed, result.Status)
}
