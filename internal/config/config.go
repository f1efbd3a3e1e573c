// Package config provides the layered run configuration for the ember CLI:
// defaults, optional config file, EMBER_* environment variables, and flags,
// in increasing priority.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ember-ml/ember/internal/tensor"
)

type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Tolerance ToleranceConfig `mapstructure:"tolerance"`
}

// RunConfig shapes one differential or benchmark run.
type RunConfig struct {
	Seed    int64  `mapstructure:"seed"`
	Iters   int    `mapstructure:"iters"`
	DType   string `mapstructure:"dtype"`
	Shapes  string `mapstructure:"shapes"` // e.g. "4096x1024,4096,1"
	Workers int    `mapstructure:"workers"`
}

type OptimizerConfig struct {
	LR          float64 `mapstructure:"lr"`
	Eps         float64 `mapstructure:"eps"`
	WeightDecay float64 `mapstructure:"weight_decay"`
}

type ToleranceConfig struct {
	MaxAbsDiff float64 `mapstructure:"max_abs_diff"`
	MaxRelDiff float64 `mapstructure:"max_rel_diff"`
	RelFloor   float64 `mapstructure:"rel_floor"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Run: RunConfig{
			Seed:    9876,
			Iters:   7,
			DType:   "float32",
			Shapes:  "278011",
			Workers: 0, // 0 = one per CPU
		},
		Optimizer: OptimizerConfig{
			LR:          5e-4,
			Eps:         1e-8,
			WeightDecay: 0,
		},
		Tolerance: ToleranceConfig{
			MaxAbsDiff: 1e-6,
			MaxRelDiff: 1,
			RelFloor:   1e-6,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Int64("run-seed", defaults.Run.Seed, "Random seed for gradient generation")
	fs.Int("run-iters", defaults.Run.Iters, "Number of optimizer iterations")
	fs.String("run-dtype", defaults.Run.DType, "Candidate storage dtype: float32|float64|float16|bfloat16")
	fs.String("run-shapes", defaults.Run.Shapes, "Comma-separated tensor shapes, dims joined by 'x' (e.g. 4096x1024,4096,1)")
	fs.Int("run-workers", defaults.Run.Workers, "Worker goroutines for the fused kernel (0 = NumCPU)")
	fs.Float64("optimizer-lr", defaults.Optimizer.LR, "Learning rate")
	fs.Float64("optimizer-eps", defaults.Optimizer.Eps, "Epsilon added to sqrt(accumulator)")
	fs.Float64("optimizer-weight-decay", defaults.Optimizer.WeightDecay, "L2 weight decay")
	fs.Float64("tolerance-max-abs-diff", defaults.Tolerance.MaxAbsDiff, "Max allowed elementwise absolute difference")
	fs.Float64("tolerance-max-rel-diff", defaults.Tolerance.MaxRelDiff, "Max allowed relative difference (<= 0 disables)")
	fs.Float64("tolerance-rel-floor", defaults.Tolerance.RelFloor, "Reference magnitude below which elements are abs-only")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("EMBER")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ember")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate catches configuration the run layer cannot use.
func (c Config) Validate() error {
	if _, ok := tensor.ParseDataType(c.Run.DType); !ok {
		return fmt.Errorf("unknown dtype %q", c.Run.DType)
	}
	if c.Run.Iters < 1 {
		return fmt.Errorf("iters must be at least 1, got %d", c.Run.Iters)
	}
	if _, err := ParseShapes(c.Run.Shapes); err != nil {
		return err
	}
	return nil
}

// ParseShapes parses a "4096x1024,4096,1" style list into tensor shapes.
func ParseShapes(s string) ([]tensor.Shape, error) {
	var shapes []tensor.Shape
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var shape tensor.Shape
		for _, dim := range strings.Split(part, "x") {
			var d int
			if _, err := fmt.Sscanf(strings.TrimSpace(dim), "%d", &d); err != nil {
				return nil, fmt.Errorf("invalid shape %q: %w", part, err)
			}
			shape = append(shape, d)
		}
		if err := shape.Validate(); err != nil {
			return nil, fmt.Errorf("invalid shape %q: %w", part, err)
		}
		shapes = append(shapes, shape)
	}
	if len(shapes) == 0 {
		return nil, fmt.Errorf("no shapes in %q", s)
	}
	return shapes, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("run.seed", c.Run.Seed)
	v.SetDefault("run.iters", c.Run.Iters)
	v.SetDefault("run.dtype", c.Run.DType)
	v.SetDefault("run.shapes", c.Run.Shapes)
	v.SetDefault("run.workers", c.Run.Workers)
	v.SetDefault("optimizer.lr", c.Optimizer.LR)
	v.SetDefault("optimizer.eps", c.Optimizer.Eps)
	v.SetDefault("optimizer.weight_decay", c.Optimizer.WeightDecay)
	v.SetDefault("tolerance.max_abs_diff", c.Tolerance.MaxAbsDiff)
	v.SetDefault("tolerance.max_rel_diff", c.Tolerance.MaxRelDiff)
	v.SetDefault("tolerance.rel_floor", c.Tolerance.RelFloor)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("run.seed", "run-seed")
	v.RegisterAlias("run.iters", "run-iters")
	v.RegisterAlias("run.dtype", "run-dtype")
	v.RegisterAlias("run.shapes", "run-shapes")
	v.RegisterAlias("run.workers", "run-workers")
	v.RegisterAlias("optimizer.lr", "optimizer-lr")
	v.RegisterAlias("optimizer.eps", "optimizer-eps")
	v.RegisterAlias("optimizer.weight_decay", "optimizer-weight-decay")
	v.RegisterAlias("tolerance.max_abs_diff", "tolerance-max-abs-diff")
	v.RegisterAlias("tolerance.max_rel_diff", "tolerance-max-rel-diff")
	v.RegisterAlias("tolerance.rel_floor", "tolerance-rel-floor")
}
