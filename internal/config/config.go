// Package config provides unified configuration loading for sisweep.
// It supports loading from YAML files and environment variables; CLI flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory when no
// path is given.
const DefaultFile = "sisweep.yaml"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains all sisweep configuration settings.
type Config struct {
	// Topology selects the contact network.
	Topology TopologyConfig `json:"topology" yaml:"topology"`

	// Sweep holds the simulation and grid parameters.
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`

	// Output controls where results, plots and the database go.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and diagnostic logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configures the Prometheus textfile export.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// TopologyConfig selects a generator and its arguments.
type TopologyConfig struct {
	// Kind is one of barabasi_albert, erdos_renyi, watts_strogatz.
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=barabasi_albert erdos_renyi watts_strogatz"`

	// Params are the generator arguments (n, m, p, k). Missing keys take
	// the generator defaults; unknown keys are rejected.
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`

	// Seed fixes the generated graph.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// BetaGrid describes the infection probability grid, either as explicit
// values or as Count evenly spaced points from Start to Stop.
type BetaGrid struct {
	Start  float64   `json:"start" yaml:"start" validate:"gte=0,lte=1"`
	Stop   float64   `json:"stop" yaml:"stop" validate:"gte=0,lte=1,gtefield=Start"`
	Count  int       `json:"count" yaml:"count" validate:"gte=0"`
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty" validate:"omitempty,dive,gte=0,lte=1"`
}

// Grid expands the grid to its beta values.
func (g BetaGrid) Grid() []float64 {
	if len(g.Values) > 0 {
		return slices.Clone(g.Values)
	}
	return sweep.Linspace(g.Start, g.Stop, g.Count)
}

// SweepConfig holds the simulation parameters.
type SweepConfig struct {
	Betas           BetaGrid  `json:"betas" yaml:"betas"`
	Mus             []float64 `json:"mus" yaml:"mus" validate:"required,min=1,dive,gte=0,lte=1"`
	InitialFraction float64   `json:"initial_fraction" yaml:"initial_fraction" validate:"gt=0,lte=1"`
	Steps           int       `json:"steps" yaml:"steps" validate:"min=1"`
	Transient       int       `json:"transient" yaml:"transient" validate:"min=0,ltfield=Steps"`
	Repeats         int       `json:"repeats" yaml:"repeats" validate:"min=0"`
	Seed            uint64    `json:"seed" yaml:"seed"`

	// Workers bounds parallelism; 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers" validate:"min=0"`

	// KeepTrajectories stores each cell's averaged trajectory with the result.
	KeepTrajectories bool `json:"keep_trajectories" yaml:"keep_trajectories"`
}

// OutputConfig controls result locations.
type OutputConfig struct {
	// Dir receives plots, the default database and diagnostics.jsonl.
	Dir string `json:"dir" yaml:"dir" validate:"required"`

	// Database overrides the SQLite path; defaults to <dir>/sisweep.db.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// Plot writes <kind>_<params>.svg after each sweep.
	Plot bool `json:"plot" yaml:"plot"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" and "trace" also append degenerate results to diagnostics.jsonl.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=warn info debug trace"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// File is a Prometheus textfile written after each command; empty disables it.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Default returns a Config reproducing the standard experiment: an
// Erdős–Rényi graph with n=500 and p=0.3, 51 betas on [0, 1], mus 0.1, 0.5
// and 0.9, 1000 steps of which 900 are transient, 50 repeats.
func Default() *Config {
	return &Config{
		Topology: TopologyConfig{
			Kind:   string(topology.KindErdosRenyi),
			Params: map[string]float64{"n": 500, "p": 0.3},
		},
		Sweep: SweepConfig{
			Betas:           BetaGrid{Start: 0, Stop: 1, Count: 51},
			Mus:             []float64{0.1, 0.5, 0.9},
			InitialFraction: 0.2,
			Steps:           1000,
			Transient:       900,
			Repeats:         50,
		},
		Output: OutputConfig{
			Dir:  "results",
			Plot: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from ./sisweep.yaml when path is
// empty and that file exists, then applies environment variable overrides.
// Order: defaults -> file -> environment variables.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults. Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	config := Default()
	// Params from the file replace the defaults instead of merging with them.
	defaultKind, defaultParams := config.Topology.Kind, config.Topology.Params
	config.Topology.Params = nil

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if config.Topology.Params == nil && config.Topology.Kind == defaultKind {
		config.Topology.Params = maps.Clone(defaultParams)
	}

	config.Output.Dir = expandEnvVars(config.Output.Dir)
	config.Output.Database = expandEnvVars(config.Output.Database)
	config.Metrics.File = expandEnvVars(config.Metrics.File)

	return config, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration is valid, reporting every problem.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, formatValidationErrors(err)...)
	}

	grid := c.Sweep.Betas
	if len(grid.Values) == 0 && grid.Count < 1 {
		errs = append(errs, errors.New("sweep.betas: count must be at least 1 when no values are given"))
	}
	for i := 1; i < len(grid.Values); i++ {
		if grid.Values[i] < grid.Values[i-1] {
			errs = append(errs, fmt.Errorf("sweep.betas.values: must be non-decreasing, %v follows %v",
				grid.Values[i], grid.Values[i-1]))
			break
		}
	}
	seen := make(map[float64]bool, len(c.Sweep.Mus))
	for _, mu := range c.Sweep.Mus {
		if seen[mu] {
			errs = append(errs, fmt.Errorf("sweep.mus: duplicate value %v", mu))
		}
		seen[mu] = true
	}

	if len(errs) == 0 {
		if _, err := c.TopologySpec(); err != nil {
			errs = append(errs, fmt.Errorf("topology: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func formatValidationErrors(err error) []error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Errorf("%s: field is required", field))
		case "oneof":
			out = append(out, fmt.Errorf("%s: %v is not one of [%s]", field, fe.Value(), fe.Param()))
		case "min", "gte":
			out = append(out, fmt.Errorf("%s: %v must be at least %s", field, fe.Value(), fe.Param()))
		case "max", "lte":
			out = append(out, fmt.Errorf("%s: %v must not exceed %s", field, fe.Value(), fe.Param()))
		case "gt":
			out = append(out, fmt.Errorf("%s: %v must be greater than %s", field, fe.Value(), fe.Param()))
		case "ltfield":
			out = append(out, fmt.Errorf("%s: %v must be less than %s", field, fe.Value(), strings.ToLower(fe.Param())))
		case "gtefield":
			out = append(out, fmt.Errorf("%s: %v must not be below %s", field, fe.Value(), strings.ToLower(fe.Param())))
		default:
			out = append(out, fmt.Errorf("%s: validation failed (%s)", field, fe.Tag()))
		}
	}
	return out
}

// TopologySpec builds the generator spec from the topology section.
func (c *Config) TopologySpec() (topology.Spec, error) {
	kind, err := topology.ParseKind(c.Topology.Kind)
	if err != nil {
		return nil, err
	}
	return topology.NewSpec(kind, c.Topology.Params)
}

// SetKind switches the topology kind. Params of a different kind are
// dropped so the new generator starts from its defaults.
func (c *Config) SetKind(kind string) {
	if kind != c.Topology.Kind {
		c.Topology.Params = nil
	}
	c.Topology.Kind = kind
}

// SweepConfig converts the sweep section to the orchestrator's parameters.
func (c *Config) SweepConfig() sweep.Config {
	return sweep.Config{
		Betas:           c.Sweep.Betas.Grid(),
		Mus:             slices.Clone(c.Sweep.Mus),
		InitialFraction: c.Sweep.InitialFraction,
		Steps:           c.Sweep.Steps,
		Transient:       c.Sweep.Transient,
		Repeats:         c.Sweep.Repeats,
		Seed:            c.Sweep.Seed,
	}
}

// DatabasePath returns the SQLite path.
func (c *Config) DatabasePath() string {
	if c.Output.Database != "" {
		return c.Output.Database
	}
	return store.DatabasePath(c.Output.Dir)
}

// DiagnosticsDir returns the directory for diagnostics.jsonl, or "" when
// the log level does not enable it.
func (c *Config) DiagnosticsDir() string {
	switch c.Logging.Level {
	case "debug", "trace":
		return c.Output.Dir
	default:
		return ""
	}
}

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(c *Config, v string) error
}

var envOverrides = []envOverride{
	{"SISWEEP_TOPOLOGY_KIND", func(c *Config, v string) error { c.SetKind(v); return nil }},
	{"SISWEEP_TOPOLOGY_SEED", func(c *Config, v string) error { return parseUint(v, &c.Topology.Seed) }},
	{"SISWEEP_SEED", func(c *Config, v string) error { return parseUint(v, &c.Sweep.Seed) }},
	{"SISWEEP_STEPS", func(c *Config, v string) error { return parseInt(v, &c.Sweep.Steps) }},
	{"SISWEEP_TRANSIENT", func(c *Config, v string) error { return parseInt(v, &c.Sweep.Transient) }},
	{"SISWEEP_REPEATS", func(c *Config, v string) error { return parseInt(v, &c.Sweep.Repeats) }},
	{"SISWEEP_WORKERS", func(c *Config, v string) error { return parseInt(v, &c.Sweep.Workers) }},
	{"SISWEEP_INITIAL_FRACTION", func(c *Config, v string) error { return parseFloat(v, &c.Sweep.InitialFraction) }},
	{"SISWEEP_MUS", func(c *Config, v string) error { return parseFloats(v, &c.Sweep.Mus) }},
	{"SISWEEP_OUTPUT_DIR", func(c *Config, v string) error { c.Output.Dir = v; return nil }},
	{"SISWEEP_DATABASE", func(c *Config, v string) error { c.Output.Database = v; return nil }},
	{"SISWEEP_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"SISWEEP_METRICS_FILE", func(c *Config, v string) error { c.Metrics.File = v; return nil }},
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) error {
	for _, o := range envOverrides {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		if err := o.apply(config, v); err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
	}
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseUint(v string, dst *uint64) error {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

// ParseFloatList parses a comma-separated list such as "0.1,0.5,0.9".
func ParseFloatList(v string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", v)
	}
	return out, nil
}

func parseFloats(v string, dst *[]float64) error {
	fs, err := ParseFloatList(v)
	if err != nil {
		return err
	}
	*dst = fs
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
