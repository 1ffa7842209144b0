package env

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/pkg/errors"
)

var variables = new(Environment)

// Process the environment variables set for lithium.
func Process() error {
	if err := envconfig.Process("lithium", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// honour the conventional CI variable as well
	if os.Getenv("CI") != "" {
		variables.CI = true
	}

	// set the log level
	if err := log.SetLevelFromString(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used
// by lithium.
type Environment struct {
	LogLevel        string        `default:"info"`
	Port            int           `default:"8080"`
	CI              bool          `default:"false"`
	DatabaseType    string        `default:"sqlite"`
	DatabaseDSN     string        `default:"lithium.db"`
	CacheDir        string        `default:".lithium"`
	CacheMaxEntries int           `default:"1000"`
	CacheMaxAge     time.Duration `default:"168h"`
	MaxWorkers      int           `default:"8"`
	CIMaxWorkers    int           `default:"4"`
	TargetSuiteTime time.Duration `default:"2m"`
	TargetTestTime  time.Duration `default:"5s"`
	BaseTestCost    time.Duration `default:"2s"`
	TestGlobs       string        `default:"**/*.test.{js,jsx,ts,tsx}"`
	TestRoot        string        `default:"."`
	SuiteName       string        `default:"default"`
	RunnerCommand   string        `default:"npx jest --runTestsByPath {file}"`
	Schedule        string        `default:""`
	Timezone        string        `default:""`
}
