package start

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/lithium-ci/lithium/api"
	"github.com/lithium-ci/lithium/api/rest/bind"
	"github.com/lithium-ci/lithium/internal/cache"
	"github.com/lithium-ci/lithium/internal/event"
	"github.com/lithium-ci/lithium/internal/metrics"
	"github.com/lithium-ci/lithium/internal/pipeline"
	"github.com/lithium-ci/lithium/internal/regression"
	"github.com/lithium-ci/lithium/internal/reliability"
	"github.com/lithium-ci/lithium/internal/runner"
	"github.com/lithium-ci/lithium/internal/schedule"
	"github.com/lithium-ci/lithium/internal/trigger/cron"
	"github.com/lithium-ci/lithium/pkg/db"
	"github.com/lithium-ci/lithium/pkg/env"
	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/lithium-ci/lithium/pkg/version"
	"github.com/spf13/cobra"
)

const (
	usage   = "start"
	short   = "Start a lithium pipeline instance"
	long    = "This command starts a lithium pipeline instance"
	example = "lithium start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "serve", "begin"},
		Example:    example,
		RunE:       start,
	}
)

var cancel context.CancelFunc

func start(cmd *cobra.Command, args []string) error {
	signalChan := make(chan os.Signal, 1)

	go func() {
		for s := range signalChan {
			switch s {
			case syscall.SIGUSR1:
				log.Info("dumping stack traces due to SIGUSR1 signal")
				if profile := pprof.Lookup("goroutine"); profile != nil {
					if err := profile.WriteTo(os.Stdout, 1); err != nil {
						log.Error("write goroutine profile", "error", err)
					}
				}
			case syscall.SIGINT:
				log.Info("gracefully shutting down due to SIGINT signal")
				shutdown()
				os.Exit(0)
			}
		}
	}()

	signal.Notify(signalChan, syscall.SIGUSR1, syscall.SIGINT)

	var errs = make(chan error)
	ctx, cancelFunc := context.WithCancel(context.Background())
	cancel = cancelFunc

	metrics.Register()

	log.Info("migrating database")
	if err := db.Migrate(); err != nil {
		log.Fatal("database migration failure", "error", err)
	}

	vars := env.Variables()

	tracker := reliability.NewTracker()
	history := reliability.NewStore(db.Connection())
	if err := history.Load(tracker); err != nil {
		log.Warn("reliability history load failure", "error", err)
	}

	detector := regression.NewDetector(version.Version).
		WithStore(regression.NewStore(filepath.Join(vars.CacheDir, "baselines.json")))

	resultCache := cache.New(cache.Config{
		Dir:         vars.CacheDir,
		MaxEntries:  vars.CacheMaxEntries,
		MaxAge:      vars.CacheMaxAge,
		Environment: cache.CurrentEnvironment(version.Version),
	})

	bus := event.New()

	pipe, err := pipeline.New(pipeline.Config{
		Suite: vars.SuiteName,
		Root:  vars.TestRoot,
		Globs: strings.Fields(vars.TestGlobs),
		Scheduler: schedule.Config{
			MaxWorkers:      vars.MaxWorkers,
			CIMaxWorkers:    vars.CIMaxWorkers,
			CI:              vars.CI,
			TargetSuiteTime: vars.TargetSuiteTime,
			TargetTestTime:  vars.TargetTestTime,
			BaseCost:        vars.BaseTestCost,
		},
	}, pipeline.Deps{
		Runner:   &runner.Command{Argv: strings.Fields(vars.RunnerCommand), Dir: vars.TestRoot},
		Cache:    resultCache,
		Tracker:  tracker,
		Detector: detector,
		History:  history,
		Bus:      bus,
	})
	if err != nil {
		log.Fatal("pipeline configuration failure", "error", err)
	}

	if vars.Schedule != "" {
		trig, err := cron.New(vars.Schedule, vars.Timezone)
		if err != nil {
			log.Fatal("schedule configuration failure", "error", err)
		}

		go trig.Listen(ctx, func(ctx context.Context) {
			if _, err := pipe.Run(ctx); err != nil {
				log.Error("scheduled pipeline run failure", "error", err)
			}
		})
	}

	go func() {
		log.Info("spinning up api")
		errs <- api.Start(bind.Deps{
			Tracker:  tracker,
			Detector: detector,
			Cache:    resultCache,
			Pipeline: pipe,
			Bus:      bus,
			DB:       db.Connection(),
		})
	}()

	defer shutdown()

	return <-errs
}

func shutdown() {
	if cancel != nil {
		cancel()
	}
	if err := api.Shutdown(); err != nil {
		log.Error("api shutdown failure", "error", err)
	}
}
