package schedule

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithium-ci/lithium/internal/metrics"
	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/pkg/errors"
)

const (
	defaultMaxWorkers   = 8
	defaultCIMaxWorkers = 4
	defaultBaseCost     = 2 * time.Second
)

// Runner executes a single test job. The execution mechanics of the
// underlying test runner are not the scheduler's concern.
type Runner interface {
	Run(ctx context.Context, job Job) Result
}

// Initializer is implemented by runners that need per-worker setup.
// An initialization failure aborts the whole parallel run.
type Initializer interface {
	Init(workerID int) error
}

// Job result statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Result is the outcome a worker reports for one job.
type Result struct {
	JobID        uuid.UUID
	File         string
	Status       string
	Duration     time.Duration
	TestCount    int
	FailureCount int
	Error        string

	// Optional performance measurements forwarded to regression
	// detection when present.
	Component   string
	MemoryUsage float64
}

// Config parameterizes a Scheduler.
type Config struct {
	MaxWorkers      int
	CIMaxWorkers    int
	CI              bool
	TargetSuiteTime time.Duration
	TargetTestTime  time.Duration
	BaseCost        time.Duration

	// DependenciesFor supplies each job's dependency set, used only
	// for bottleneck reporting.
	DependenciesFor func(file string) []string
}

// Scheduler queues test jobs and executes them across a worker pool.
type Scheduler struct {
	cfg    Config
	runner Runner
	queue  []Job
}

// New returns a Scheduler with defaults applied.
func New(cfg Config, runner Runner) *Scheduler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.CIMaxWorkers <= 0 {
		cfg.CIMaxWorkers = defaultCIMaxWorkers
	}
	if cfg.BaseCost <= 0 {
		cfg.BaseCost = defaultBaseCost
	}

	return &Scheduler{cfg: cfg, runner: runner}
}

// AddTestJobs estimates, prioritizes, and queues a job per file, then
// re-sorts the queue by priority and estimated duration descending
// (longest-processing-time-first).
func (s *Scheduler) AddTestJobs(files ...string) {
	for _, file := range files {
		job := Job{
			ID:       uuid.New(),
			File:     file,
			Estimate: estimateFor(file, s.cfg.BaseCost),
			Priority: priorityFor(file),
		}
		if s.cfg.DependenciesFor != nil {
			job.Dependencies = s.cfg.DependenciesFor(file)
		}

		s.queue = append(s.queue, job)
		metrics.JobsScheduledTotal.WithLabelValues(string(job.Priority)).Inc()
	}

	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].Priority.rank() != s.queue[j].Priority.rank() {
			return s.queue[i].Priority.rank() > s.queue[j].Priority.rank()
		}
		return s.queue[i].Estimate > s.queue[j].Estimate
	})
}

// Queue returns a copy of the pending jobs in scheduling order.
func (s *Scheduler) Queue() []Job {
	queue := make([]Job, len(s.queue))
	copy(queue, s.queue)
	return queue
}

// optimalWorkerCount bounds the pool by the configured maximum (lower
// under CI), the ratio of total estimated time to the target suite
// time, and half the job count when only a few jobs exist.
func (s *Scheduler) optimalWorkerCount(jobs []Job) int {
	n := s.cfg.MaxWorkers
	if s.cfg.CI && s.cfg.CIMaxWorkers < n {
		n = s.cfg.CIMaxWorkers
	}

	if s.cfg.TargetSuiteTime > 0 {
		var total time.Duration
		for _, job := range jobs {
			total += job.Estimate
		}
		byTime := int(math.Ceil(float64(total) / float64(s.cfg.TargetSuiteTime)))
		if byTime < n {
			n = byTime
		}
	}

	if len(jobs) < 2*n {
		if half := (len(jobs) + 1) / 2; half < n {
			n = half
		}
	}

	if n < 1 {
		n = 1
	}

	return n
}

// completion is the message a worker sends back to the coordinator.
type completion struct {
	workerID int
	result   Result
	wall     time.Duration
}

// ledger tracks per-worker assignment state. Only the coordinator
// mutates it; workers never share memory.
type ledger struct {
	workerID   int
	jobs       int
	assigned   time.Duration
	busy       time.Duration
	maxJobTime time.Duration
}

// ExecuteParallel drains the queue across an optimally sized worker
// pool. Workers are isolated goroutines fed over per-worker channels;
// the first wave is assigned round-robin, afterwards each completing
// worker (the least-loaded idle worker at that point) receives the next
// queued job. Returns the efficiency report once completed, active, and
// queued counts reconcile.
func (s *Scheduler) ExecuteParallel(ctx context.Context) (*Report, error) {
	jobs := s.queue
	s.queue = nil

	report := newReport(jobs, s.cfg.TargetTestTime)
	if len(jobs) == 0 {
		return report, nil
	}

	n := s.optimalWorkerCount(jobs)
	log.Info("executing test jobs in parallel", "jobs", len(jobs), "workers", n)

	inputs := make([]chan Job, n)
	results := make(chan completion)
	ledgers := make([]*ledger, n)

	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if init, ok := s.runner.(Initializer); ok {
			if err := init.Init(i); err != nil {
				for j := 0; j < i; j++ {
					close(inputs[j])
				}
				wg.Wait()
				return nil, errors.Wrapf(err, "worker %d failed to initialize", i)
			}
		}

		inputs[i] = make(chan Job)
		ledgers[i] = &ledger{workerID: i}

		wg.Add(1)
		go func(id int, in <-chan Job) {
			defer wg.Done()
			for job := range in {
				start := time.Now()
				result := s.runner.Run(ctx, job)
				results <- completion{workerID: id, result: result, wall: time.Since(start)}
			}
		}(i, inputs[i])
	}

	started := time.Now()
	next := 0

	assign := func(workerID int) {
		job := jobs[next]
		next++
		ledgers[workerID].jobs++
		ledgers[workerID].assigned += job.Estimate
		inputs[workerID] <- job
	}

	// first wave, round-robin
	for i := 0; i < n && next < len(jobs); i++ {
		assign(i)
	}

	completed := 0
	for completed < len(jobs) {
		c := <-results
		completed++

		l := ledgers[c.workerID]
		l.busy += c.wall
		if c.wall > l.maxJobTime {
			l.maxJobTime = c.wall
		}

		report.record(c.result, c.wall)
		metrics.JobsCompletedTotal.WithLabelValues(c.result.Status).Inc()
		metrics.JobDurationSeconds.WithLabelValues(c.result.Status).Observe(c.wall.Seconds())

		if next < len(jobs) {
			assign(c.workerID)
		}
	}

	for _, in := range inputs {
		close(in)
	}
	wg.Wait()

	report.finalize(ledgers, time.Since(started))
	metrics.SchedulerEfficiency.Set(report.Efficiency)

	return report, nil
}
