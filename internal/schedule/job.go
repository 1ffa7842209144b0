// Package schedule distributes cache-miss test units across a bounded
// pool of isolated workers using longest-processing-time-first
// assignment.
package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority tiers jobs for scheduling order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Job is one schedulable test unit. A job is consumed once by exactly
// one worker.
type Job struct {
	ID           uuid.UUID
	File         string
	Estimate     time.Duration
	Priority     Priority
	Dependencies []string
}

// estimateFor scales the base unit cost by path hints. Integration and
// end-to-end suites dominate wall time and are weighted accordingly.
func estimateFor(file string, base time.Duration) time.Duration {
	lower := strings.ToLower(file)

	switch {
	case strings.Contains(lower, "integration"):
		return time.Duration(float64(base) * 3.0)
	case strings.Contains(lower, "e2e"):
		return time.Duration(float64(base) * 2.5)
	case strings.Contains(lower, "security"), strings.Contains(lower, "critical"):
		return time.Duration(float64(base) * 2.0)
	default:
		return base
	}
}

// priorityFor tiers a job by path hints.
func priorityFor(file string) Priority {
	lower := strings.ToLower(file)

	switch {
	case strings.Contains(lower, "security"), strings.Contains(lower, "critical"):
		return PriorityHigh
	case strings.Contains(lower, "integration"), strings.Contains(lower, "e2e"):
		return PriorityMedium
	default:
		return PriorityLow
	}
}
