// Package runner executes test files through an external command.
package runner

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/lithium-ci/lithium/internal/schedule"
	"github.com/lithium-ci/lithium/pkg/log"
)

// filePlaceholder is replaced in command arguments with the job's file.
const filePlaceholder = "{file}"

// Command runs each test file as a subprocess. Any argument containing
// {file} has it substituted with the job's file path; when no argument
// does, the path is appended.
type Command struct {
	Argv    []string
	Dir     string
	Timeout time.Duration
}

// Run implements schedule.Runner.
func (c *Command) Run(ctx context.Context, job schedule.Job) schedule.Result {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	argv := make([]string, 0, len(c.Argv)+1)
	substituted := false
	for _, arg := range c.Argv {
		if strings.Contains(arg, filePlaceholder) {
			arg = strings.ReplaceAll(arg, filePlaceholder, job.File)
			substituted = true
		}
		argv = append(argv, arg)
	}
	if !substituted {
		argv = append(argv, job.File)
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(started)

	result := schedule.Result{
		JobID:     job.ID,
		File:      job.File,
		Status:    schedule.StatusPassed,
		Duration:  elapsed,
		TestCount: 1,
	}

	if err != nil {
		result.Status = schedule.StatusFailed
		result.FailureCount = 1
		result.Error = failureMessage(err, output)
		log.Debug("test command failed",
			"file", job.File,
			"duration", elapsed,
			"error", result.Error,
		)
	}

	return result
}

// failureMessage keeps the error plus the last few lines of output so
// run records stay readable.
func failureMessage(err error, output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	tail := strings.TrimSpace(strings.Join(lines, "\n"))
	if tail == "" {
		return err.Error()
	}
	return err.Error() + ": " + tail
}
