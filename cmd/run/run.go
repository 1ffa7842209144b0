package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lithium-ci/lithium/internal/cache"
	"github.com/lithium-ci/lithium/internal/pipeline"
	"github.com/lithium-ci/lithium/internal/regression"
	"github.com/lithium-ci/lithium/internal/reliability"
	"github.com/lithium-ci/lithium/internal/runner"
	"github.com/lithium-ci/lithium/internal/schedule"
	"github.com/lithium-ci/lithium/pkg/env"
	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/lithium-ci/lithium/pkg/pipelinedef"
	"github.com/lithium-ci/lithium/pkg/version"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	usage   = "run"
	short   = "Execute one pipeline run from a definition file"
	long    = "This command executes a single optimized test run described by a pipeline definition file and prints the run summary as JSON"
	example = "lithium run -f lithium.yaml"
)

var (
	// Cmd is the run command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		SuggestFor: []string{"exec", "test", "once"},
		Example:    example,
		RunE:       run,
	}

	file string
)

func init() {
	Cmd.Flags().StringVarP(&file, "file", "f", "lithium.yaml", "pipeline definition file")
}

func run(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", file)
	}

	def, err := pipelinedef.Parse(data)
	if err != nil {
		return errors.Wrapf(err, "invalid pipeline definition %s", file)
	}

	vars := env.Variables()

	cacheDir := def.Cache.Dir
	if cacheDir == "" {
		cacheDir = vars.CacheDir
	}

	resultCache := cache.New(cache.Config{
		Dir:         cacheDir,
		MaxEntries:  def.Cache.MaxEntries,
		MaxAge:      pipelinedef.Duration(def.Cache.MaxAge, vars.CacheMaxAge),
		Environment: cache.CurrentEnvironment(version.Version),
	})

	detector := regression.NewDetector(version.Version).
		WithStore(regression.NewStore(filepath.Join(cacheDir, "baselines.json")))

	maxWorkers := def.Workers.Max
	if maxWorkers == 0 {
		maxWorkers = vars.MaxWorkers
	}
	ciMaxWorkers := def.Workers.CIMax
	if ciMaxWorkers == 0 {
		ciMaxWorkers = vars.CIMaxWorkers
	}

	pipe, err := pipeline.New(pipeline.Config{
		Suite: def.Metadata.Alias,
		Root:  def.Discovery.Root,
		Globs: def.Discovery.Globs,
		Scheduler: schedule.Config{
			MaxWorkers:      maxWorkers,
			CIMaxWorkers:    ciMaxWorkers,
			CI:              vars.CI,
			TargetSuiteTime: pipelinedef.Duration(def.Workers.TargetSuiteTime, vars.TargetSuiteTime),
			TargetTestTime:  pipelinedef.Duration(def.Workers.TargetTestTime, vars.TargetTestTime),
			BaseCost:        pipelinedef.Duration(def.Workers.BaseCost, vars.BaseTestCost),
		},
		CacheDisabled:    def.Cache.Disabled,
		FailOnRegression: def.Regression.FailBuild,
		MinCacheHitRate:  def.Regression.MinCacheHitRate,
	}, pipeline.Deps{
		Runner: &runner.Command{
			Argv:    def.Runner.Command,
			Dir:     def.Discovery.Root,
			Timeout: pipelinedef.Duration(def.Runner.Timeout, 0),
		},
		Cache:    resultCache,
		Tracker:  reliability.NewTracker(),
		Detector: detector,
	})
	if err != nil {
		return err
	}

	summary, err := pipe.Run(context.Background())
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return errors.Wrap(err, "failed to encode run summary")
	}

	if summary.FailBuild {
		log.Error("pipeline run failed",
			"suite", summary.Suite,
			"failed", summary.Failed,
			"critical_regressions", summary.Regressions.Summary.Critical,
		)
		return errors.Errorf("pipeline run failed: %d test failures", summary.Failed)
	}

	return nil
}
