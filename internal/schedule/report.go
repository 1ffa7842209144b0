package schedule

import (
	"fmt"
	"time"
)

// WorkerStats summarizes one worker's share of a parallel run.
type WorkerStats struct {
	WorkerID       int           `json:"workerId"`
	Jobs           int           `json:"jobs"`
	AssignedTime   time.Duration `json:"assignedTime"`
	BusyTime       time.Duration `json:"busyTime"`
	MaxJobTime     time.Duration `json:"maxJobTime"`
	AverageJobTime time.Duration `json:"averageJobTime"`
	Utilization    float64       `json:"utilization"`
}

// Report is the efficiency summary of a parallel run.
type Report struct {
	TotalTests        int           `json:"totalTests"`
	TotalTime         time.Duration `json:"totalTime"`
	AverageTestTime   time.Duration `json:"averageTestTime"`
	Workers           []WorkerStats `json:"workers"`
	WorkerUtilization []float64     `json:"workerUtilization"`
	Efficiency        float64       `json:"efficiency"`
	Bottlenecks       []string      `json:"bottlenecks"`
	Results           []Result      `json:"results"`

	target     time.Duration
	sharedDeps int
	totalBusy  time.Duration
	slowJobs   []string
}

// newReport seeds a report with queue-level facts: the count of
// dependency keys shared by more than one queued job approximates
// forced serialization.
func newReport(jobs []Job, targetTestTime time.Duration) *Report {
	depCounts := map[string]int{}
	for _, job := range jobs {
		for _, dep := range job.Dependencies {
			depCounts[dep]++
		}
	}

	shared := 0
	for _, count := range depCounts {
		if count > 1 {
			shared++
		}
	}

	return &Report{
		Bottlenecks: []string{},
		Results:     []Result{},
		target:      targetTestTime,
		sharedDeps:  shared,
	}
}

// record accumulates one completed job.
func (r *Report) record(result Result, wall time.Duration) {
	r.Results = append(r.Results, result)
	r.TotalTests++
	r.totalBusy += wall

	if r.target > 0 && wall > 2*r.target {
		r.slowJobs = append(r.slowJobs, fmt.Sprintf(
			"slow job: %s took %v, more than twice the %v target",
			result.File, wall.Round(time.Millisecond), r.target,
		))
	}
}

// finalize computes utilization, efficiency, and bottlenecks once the
// queue has drained.
func (r *Report) finalize(ledgers []*ledger, totalTime time.Duration) {
	r.TotalTime = totalTime
	if r.TotalTests > 0 {
		r.AverageTestTime = r.totalBusy / time.Duration(r.TotalTests)
	}

	ideal := time.Duration(0)
	if len(ledgers) > 0 {
		ideal = r.totalBusy / time.Duration(len(ledgers))
	}

	var minBusy, maxBusy time.Duration
	for i, l := range ledgers {
		if i == 0 || l.busy < minBusy {
			minBusy = l.busy
		}
		if l.busy > maxBusy {
			maxBusy = l.busy
		}

		utilization := 0.0
		if l.busy > 0 {
			utilization = float64(ideal) / float64(l.busy)
			if utilization > 1.0 {
				utilization = 1.0
			}
		}

		average := time.Duration(0)
		if l.jobs > 0 {
			average = l.busy / time.Duration(l.jobs)
		}

		r.Workers = append(r.Workers, WorkerStats{
			WorkerID:       l.workerID,
			Jobs:           l.jobs,
			AssignedTime:   l.assigned,
			BusyTime:       l.busy,
			MaxJobTime:     l.maxJobTime,
			AverageJobTime: average,
			Utilization:    utilization,
		})
		r.WorkerUtilization = append(r.WorkerUtilization, utilization)
		r.Efficiency += utilization
	}

	if len(ledgers) > 0 {
		r.Efficiency /= float64(len(ledgers))
	}

	r.Bottlenecks = append(r.Bottlenecks, r.slowJobs...)

	if minBusy > 0 && maxBusy > minBusy*3/2 {
		r.Bottlenecks = append(r.Bottlenecks, fmt.Sprintf(
			"worker imbalance: busiest worker at %v, least busy at %v",
			maxBusy.Round(time.Millisecond), minBusy.Round(time.Millisecond),
		))
	}

	if r.sharedDeps > 0 {
		r.Bottlenecks = append(r.Bottlenecks, fmt.Sprintf(
			"%d dependencies shared across multiple queued jobs", r.sharedDeps,
		))
	}
}
