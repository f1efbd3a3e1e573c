package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ember-ml/ember/internal/config"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

func newBenchCmd() *cobra.Command {
	var (
		runs   int
		format string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark fused against reference step latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			results, err := runBench(cfg, runs)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				writeBenchJSON(cmd.OutOrStdout(), results)
			default:
				writeBenchTable(cmd.OutOrStdout(), results)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of timed steps per optimizer")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")

	return cmd
}

// benchResult holds the timing for one optimizer variant.
type benchResult struct {
	Name     string
	Elems    int
	Min      time.Duration
	Mean     time.Duration
	Max      time.Duration
	ElemsPer float64 // elements per second at the mean
}

func runBench(cfg config.Config, runs int) ([]benchResult, error) {
	dtype, ok := tensor.ParseDataType(cfg.Run.DType)
	if !ok {
		return nil, fmt.Errorf("unknown dtype %q", cfg.Run.DType)
	}

	shapes, err := config.ParseShapes(cfg.Run.Shapes)
	if err != nil {
		return nil, err
	}

	hyper := optim.Config{
		LR:          cfg.Optimizer.LR,
		Eps:         cfg.Optimizer.Eps,
		WeightDecay: cfg.Optimizer.WeightDecay,
	}

	var results []benchResult

	// Reference only handles full-precision storage.
	if !dtype.IsNarrow() {
		params, nelem := benchParams(shapes, dtype, cfg.Run.Seed)
		opt, err := optim.NewAdagrad(params, hyper)
		if err != nil {
			return nil, err
		}
		r, err := timeSteps("reference", opt, nelem, runs)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	params, nelem := benchParams(shapes, dtype, cfg.Run.Seed)
	fused, err := optim.NewFusedAdagrad(params, hyper)
	if err != nil {
		return nil, err
	}
	if cfg.Run.Workers > 0 {
		fused.SetParallelism(parallel.WithWorkers(cfg.Run.Workers))
	}
	r, err := timeSteps("fused", fused, nelem, runs)
	if err != nil {
		return nil, err
	}
	results = append(results, r)

	slog.Debug("bench complete", "variants", len(results), "elems", nelem, "runs", runs)

	return results, nil
}

func benchParams(shapes []tensor.Shape, dtype tensor.DataType, seed int64) ([]*nn.Parameter, int) {
	rng := rand.New(rand.NewSource(seed))

	params := make([]*nn.Parameter, 0, len(shapes))
	nelem := 0
	for i, shape := range shapes {
		t := tensor.Rand(shape, dtype, rng)
		g := tensor.Rand(shape, dtype, rng)
		p := nn.NewParameter(fmt.Sprintf("p%d", i), t)
		p.SetGrad(g)
		params = append(params, p)
		nelem += shape.NumElements()
	}
	return params, nelem
}

func timeSteps(name string, opt optim.Optimizer, nelem, runs int) (benchResult, error) {
	durations := make([]time.Duration, 0, runs)
	for i := 0; i < runs; i++ {
		start := time.Now()
		if err := opt.Step(); err != nil {
			return benchResult{}, fmt.Errorf("%s step: %w", name, err)
		}
		durations = append(durations, time.Since(start))
	}

	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	mean := sum / time.Duration(len(durations))

	r := benchResult{Name: name, Elems: nelem, Min: mn, Mean: mean, Max: mx}
	if mean > 0 {
		r.ElemsPer = float64(nelem) / mean.Seconds()
	}
	return r, nil
}

func writeBenchTable(w io.Writer, results []benchResult) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-10s  %10s  %10s  %10s  %10s  %14s\n",
		"Variant", "Elems", "Min(us)", "Mean(us)", "Max(us)", "Elems/s")
	fmt.Fprintln(sb, strings.Repeat("-", 72))

	for _, r := range results {
		fmt.Fprintf(sb, "%-10s  %10d  %10.1f  %10.1f  %10.1f  %14.3e\n",
			r.Name, r.Elems,
			float64(r.Min.Microseconds()),
			float64(r.Mean.Microseconds()),
			float64(r.Max.Microseconds()),
			r.ElemsPer,
		)
	}

	fmt.Fprint(w, sb.String())
}

type jsonBench struct {
	Name     string  `json:"name"`
	Elems    int     `json:"elems"`
	MinUS    float64 `json:"min_us"`
	MeanUS   float64 `json:"mean_us"`
	MaxUS    float64 `json:"max_us"`
	ElemsPer float64 `json:"elems_per_sec"`
}

func writeBenchJSON(w io.Writer, results []benchResult) {
	out := make([]jsonBench, len(results))
	for i, r := range results {
		out[i] = jsonBench{
			Name:     r.Name,
			Elems:    r.Elems,
			MinUS:    float64(r.Min.Microseconds()),
			MeanUS:   float64(r.Mean.Microseconds()),
			MaxUS:    float64(r.Max.Microseconds()),
			ElemsPer: r.ElemsPer,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
