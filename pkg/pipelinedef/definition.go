package pipelinedef

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	APIVersionV1 = "v1"
	KindPipeline = "Pipeline"
)

// Definition models the root pipeline document.
type Definition struct {
	Schema     string     `yaml:"$schema,omitempty" json:"$schema,omitempty"`
	APIVersion string     `yaml:"apiVersion" json:"apiVersion"`
	Kind       string     `yaml:"kind" json:"kind"`
	Metadata   Metadata   `yaml:"metadata" json:"metadata"`
	Discovery  Discovery  `yaml:"discovery" json:"discovery"`
	Runner     Runner     `yaml:"runner" json:"runner"`
	Workers    Workers    `yaml:"workers,omitempty" json:"workers,omitempty"`
	Cache      CachePlan  `yaml:"cache,omitempty" json:"cache,omitempty"`
	Regression Regression `yaml:"regression,omitempty" json:"regression,omitempty"`
}

// Metadata contains descriptive data for the pipeline.
type Metadata struct {
	Alias  string            `yaml:"alias" json:"alias"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Discovery defines where test files are found.
type Discovery struct {
	Root  string   `yaml:"root,omitempty" json:"root,omitempty"`
	Globs []string `yaml:"globs" json:"globs"`
}

// UnmarshalYAML sets defaults while deserialising discovery settings.
func (d *Discovery) UnmarshalYAML(value *yaml.Node) error {
	type rawDiscovery Discovery
	rd := rawDiscovery{Root: "."}
	if err := value.Decode(&rd); err != nil {
		return err
	}
	*d = Discovery(rd)
	if d.Root == "" {
		d.Root = "."
	}
	return nil
}

// Runner defines the command used to execute one test file. The token
// {file} in any argument is replaced with the file path.
type Runner struct {
	Command []string `yaml:"command" json:"command"`
	Timeout string   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Workers bounds the parallel execution pool. Zero values fall back to
// the environment configuration.
type Workers struct {
	Max             int    `yaml:"max,omitempty" json:"max,omitempty"`
	CIMax           int    `yaml:"ciMax,omitempty" json:"ciMax,omitempty"`
	TargetSuiteTime string `yaml:"targetSuiteTime,omitempty" json:"targetSuiteTime,omitempty"`
	TargetTestTime  string `yaml:"targetTestTime,omitempty" json:"targetTestTime,omitempty"`
	BaseCost        string `yaml:"baseCost,omitempty" json:"baseCost,omitempty"`
}

// CachePlan tunes the result cache.
type CachePlan struct {
	Disabled   bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
	MaxEntries int    `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`
	MaxAge     string `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
}

// Regression tunes regression handling for the pipeline.
type Regression struct {
	MinCacheHitRate float64 `yaml:"minCacheHitRate,omitempty" json:"minCacheHitRate,omitempty"`
	FailBuild       bool    `yaml:"failBuild,omitempty" json:"failBuild,omitempty"`
}

// Parse parses YAML bytes into a Definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate performs semantic validation on the definition.
func (d *Definition) Validate() error {
	if d.APIVersion != APIVersionV1 {
		return fmt.Errorf("unsupported apiVersion: %s", d.APIVersion)
	}
	if d.Kind != KindPipeline {
		return fmt.Errorf("unsupported kind: %s", d.Kind)
	}
	if strings.TrimSpace(d.Metadata.Alias) == "" {
		return fmt.Errorf("metadata.alias is required")
	}

	if len(d.Discovery.Globs) == 0 {
		return fmt.Errorf("discovery.globs must contain at least one pattern")
	}
	for i, pattern := range d.Discovery.Globs {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("discovery.globs[%d] is empty", i)
		}
	}

	if len(d.Runner.Command) == 0 {
		return fmt.Errorf("runner.command is required")
	}
	if err := validateDuration("runner.timeout", d.Runner.Timeout); err != nil {
		return err
	}

	for field, value := range map[string]string{
		"workers.targetSuiteTime": d.Workers.TargetSuiteTime,
		"workers.targetTestTime":  d.Workers.TargetTestTime,
		"workers.baseCost":        d.Workers.BaseCost,
		"cache.maxAge":            d.Cache.MaxAge,
	} {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}

	if d.Workers.Max < 0 || d.Workers.CIMax < 0 {
		return fmt.Errorf("workers bounds must not be negative")
	}
	if d.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.maxEntries must not be negative")
	}
	if d.Regression.MinCacheHitRate < 0 || d.Regression.MinCacheHitRate > 100 {
		return fmt.Errorf("regression.minCacheHitRate must be between 0 and 100")
	}

	return nil
}

// Duration parses one of the definition's duration strings, returning
// fallback when the field is unset.
func Duration(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func validateDuration(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s is not a valid duration: %s", field, value)
	}
	return nil
}
