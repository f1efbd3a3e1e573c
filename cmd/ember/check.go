package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ember-ml/ember/internal/config"
	"github.com/ember-ml/ember/internal/difftest"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

func newCheckCmd() *cobra.Command {
	var (
		format        string
		fusedBaseline bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the fused kernel against the reference and compare",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			opts, shapes, err := checkOptions(cfg, fusedBaseline)
			if err != nil {
				return err
			}

			slog.Info("starting check",
				"dtype", opts.DType.String(),
				"seed", opts.Seed,
				"iters", opts.Tol.Iters,
				"shapes", cfg.Run.Shapes,
				"fused_baseline", opts.FusedBaseline,
			)

			h, err := difftest.New(shapes, opts)
			if err != nil {
				return err
			}

			reports, runErr := h.Run()

			switch format {
			case "json":
				writeCheckJSON(cmd.OutOrStdout(), reports, runErr)
			default:
				writeCheckTable(cmd.OutOrStdout(), reports, runErr)
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().BoolVar(&fusedBaseline, "fused-baseline", false,
		"Compare against a float32 fused baseline instead of the reference (implied for 16-bit dtypes)")

	return cmd
}

// checkOptions translates the run configuration into harness options.
// Narrow dtypes always get the fused float32 baseline: a 16-bit reference
// is numerically meaningless.
func checkOptions(cfg config.Config, fusedBaseline bool) (difftest.Options, []tensor.Shape, error) {
	dtype, ok := tensor.ParseDataType(cfg.Run.DType)
	if !ok {
		return difftest.Options{}, nil, fmt.Errorf("unknown dtype %q", cfg.Run.DType)
	}

	shapes, err := config.ParseShapes(cfg.Run.Shapes)
	if err != nil {
		return difftest.Options{}, nil, err
	}

	opts := difftest.Options{
		Seed:  cfg.Run.Seed,
		DType: dtype,
		Config: optim.Config{
			LR:          cfg.Optimizer.LR,
			Eps:         cfg.Optimizer.Eps,
			WeightDecay: cfg.Optimizer.WeightDecay,
		},
		Tol: difftest.ToleranceSpec{
			MaxAbsDiff: cfg.Tolerance.MaxAbsDiff,
			MaxRelDiff: cfg.Tolerance.MaxRelDiff,
			Iters:      cfg.Run.Iters,
			RelFloor:   cfg.Tolerance.RelFloor,
		},
		FusedBaseline: fusedBaseline || dtype.IsNarrow(),
	}

	if cfg.Run.Workers > 0 {
		pc := parallel.WithWorkers(cfg.Run.Workers)
		opts.Parallel = &pc
	}

	return opts, shapes, nil
}

func writeCheckTable(w io.Writer, reports []difftest.Report, runErr error) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %14s  %14s  %s\n", "Iter", "MaxAbs", "MaxRel", "Status")
	fmt.Fprintln(sb, strings.Repeat("-", 48))

	var tolErr *difftest.ToleranceError
	failIter := -1
	if errors.As(runErr, &tolErr) {
		failIter = tolErr.Iter
	}

	for _, r := range reports {
		status := "ok"
		if r.Iter == failIter {
			status = "FAIL"
		}
		fmt.Fprintf(sb, "%-5d  %14.6e  %14.6e  %s\n", r.Iter, r.MaxAbsDiff, r.MaxRelDiff, status)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 48))
	if runErr == nil {
		fmt.Fprintln(sb, "PASS")
	} else {
		fmt.Fprintf(sb, "FAIL: %v\n", runErr)
	}

	fmt.Fprint(w, sb.String())
}

// checkReport is the top-level JSON structure emitted by writeCheckJSON.
type checkReport struct {
	Pass       int             `json:"pass"`
	Fail       int             `json:"fail"`
	Iterations []jsonIteration `json:"iterations"`
	Error      string          `json:"error,omitempty"`
}

type jsonIteration struct {
	Iter   int     `json:"iter"`
	MaxAbs float64 `json:"max_abs_diff"`
	MaxRel float64 `json:"max_rel_diff"`
}

func writeCheckJSON(w io.Writer, reports []difftest.Report, runErr error) {
	cr := checkReport{
		Iterations: make([]jsonIteration, len(reports)),
	}
	for i, r := range reports {
		cr.Iterations[i] = jsonIteration{Iter: r.Iter, MaxAbs: r.MaxAbsDiff, MaxRel: r.MaxRelDiff}
	}
	cr.Pass = len(reports)
	if runErr != nil {
		cr.Pass = len(reports) - 1
		if cr.Pass < 0 {
			cr.Pass = 0
		}
		cr.Fail = 1
		cr.Error = runErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(cr)
}
