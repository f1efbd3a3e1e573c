package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Run.Seed != 9876 {
		t.Errorf("Run.Seed = %d; want 9876", cfg.Run.Seed)
	}

	if cfg.Run.Iters != 7 {
		t.Errorf("Run.Iters = %d; want 7", cfg.Run.Iters)
	}

	if cfg.Run.DType != "float32" {
		t.Errorf("Run.DType = %q; want %q", cfg.Run.DType, "float32")
	}

	if cfg.Run.Shapes != "278011" {
		t.Errorf("Run.Shapes = %q; want %q", cfg.Run.Shapes, "278011")
	}

	if cfg.Optimizer.LR != 5e-4 {
		t.Errorf("Optimizer.LR = %g; want 5e-4", cfg.Optimizer.LR)
	}

	if cfg.Optimizer.Eps != 1e-8 {
		t.Errorf("Optimizer.Eps = %g; want 1e-8", cfg.Optimizer.Eps)
	}

	if cfg.Tolerance.MaxAbsDiff != 1e-6 {
		t.Errorf("Tolerance.MaxAbsDiff = %g; want 1e-6", cfg.Tolerance.MaxAbsDiff)
	}

	if cfg.Tolerance.MaxRelDiff != 1 {
		t.Errorf("Tolerance.MaxRelDiff = %g; want 1", cfg.Tolerance.MaxRelDiff)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// --- ParseShapes ---

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [][]int
		wantErr bool
	}{
		{"single scalar", "1", [][]int{{1}}, false},
		{"single vector", "4096", [][]int{{4096}}, false},
		{"matrix", "4096x1024", [][]int{{4096, 1024}}, false},
		{"mixed list", "4096x1024,4096,1", [][]int{{4096, 1024}, {4096}, {1}}, false},
		{"spaces tolerated", " 32320 x 1024 , 4096 ", [][]int{{32320, 1024}, {4096}}, false},
		{"trailing comma", "4096,", [][]int{{4096}}, false},
		{"empty", "", nil, true},
		{"garbage dim", "4096xfoo", nil, true},
		{"zero dim", "4096x0", nil, true},
		{"negative dim", "-3", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShapes(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseShapes(%q) = %v, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseShapes(%q) unexpected error: %v", tt.input, err)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("ParseShapes(%q) = %d shapes; want %d", tt.input, len(got), len(tt.want))
			}

			for i, shape := range got {
				if len(shape) != len(tt.want[i]) {
					t.Fatalf("shape %d = %v; want %v", i, shape, tt.want[i])
				}

				for j, d := range shape {
					if d != tt.want[i][j] {
						t.Errorf("shape %d = %v; want %v", i, shape, tt.want[i])
						break
					}
				}
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	// Spot-check a few flags are registered with correct defaults.
	checks := []struct {
		flag string
		want string
	}{
		{"run-seed", "9876"},
		{"run-iters", "7"},
		{"run-dtype", "float32"},
		{"optimizer-lr", "0.0005"},
		{"tolerance-max-abs-diff", "1e-06"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Run.Seed != defaults.Run.Seed {
		t.Errorf("Run.Seed = %d; want %d", cfg.Run.Seed, defaults.Run.Seed)
	}

	if cfg.Optimizer.LR != defaults.Optimizer.LR {
		t.Errorf("Optimizer.LR = %g; want %g", cfg.Optimizer.LR, defaults.Optimizer.LR)
	}

	if cfg.Tolerance.RelFloor != defaults.Tolerance.RelFloor {
		t.Errorf("Tolerance.RelFloor = %g; want %g", cfg.Tolerance.RelFloor, defaults.Tolerance.RelFloor)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--run-dtype=bfloat16",
		"--run-iters=3",
		"--optimizer-weight-decay=1e-5",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Run.DType != "bfloat16" {
		t.Errorf("Run.DType = %q; want %q", cfg.Run.DType, "bfloat16")
	}

	if cfg.Run.Iters != 3 {
		t.Errorf("Run.Iters = %d; want 3", cfg.Run.Iters)
	}

	if cfg.Optimizer.WeightDecay != 1e-5 {
		t.Errorf("Optimizer.WeightDecay = %g; want 1e-5", cfg.Optimizer.WeightDecay)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EMBER_RUN_SEED", "1234")
	t.Setenv("EMBER_RUN_DTYPE", "float64")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Run.Seed != 1234 {
		t.Errorf("Run.Seed = %d; want 1234", cfg.Run.Seed)
	}

	if cfg.Run.DType != "float64" {
		t.Errorf("Run.DType = %q; want %q", cfg.Run.DType, "float64")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "ember.yaml")

	// Flat flag-style keys: Viper aliases registered before ReadInConfig
	// redirect nested keys, so the file uses the flag spellings.
	content := `
run-iters: 11
run-dtype: float16
optimizer-lr: 0.01
`

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err = fs.Parse([]string{
		"--run-iters=11",
		"--run-dtype=float16",
		"--optimizer-lr=0.01",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:        &fakeBinder{fs: fs},
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Run.Iters != 11 {
		t.Errorf("Run.Iters = %d; want 11", cfg.Run.Iters)
	}

	if cfg.Run.DType != "float16" {
		t.Errorf("Run.DType = %q; want %q", cfg.Run.DType, "float16")
	}

	if cfg.Optimizer.LR != 0.01 {
		t.Errorf("Optimizer.LR = %g; want 0.01", cfg.Optimizer.LR)
	}
}

func TestLoad_InvalidDType(t *testing.T) {
	t.Setenv("EMBER_RUN_DTYPE", "int8")

	_, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err == nil {
		t.Fatal("Load() = nil; want error for unknown dtype")
	}
}
