package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// Stress failures.
var (
	ErrOracleMismatch = errors.New("tree disagrees with oracle")
	ErrHeightBound    = errors.New("tree height exceeds 2*log2(n+1)")

	ErrWorkloadRunning = errors.New("stress workload still running")
)

const meterName = "github.com/Sumatoshi-tech/rbmap"

// StressCommand holds the flags of the stress command.
type StressCommand struct {
	plotPath    string
	metricsAddr string

	seed        int64
	operations  int
	keySpace    int
	deleteRatio float64
	checkEvery  int
	sampleEvery int
}

// stressSample is one point of the height-over-time chart.
type stressSample struct {
	Operation   int
	Len         int
	Height      int
	BlackHeight int
	Bound       float64
}

// stressResult summarizes one workload run.
type stressResult struct {
	Samples     []stressSample
	Stats       rbtree.Stats
	Duration    time.Duration
	Operations  int
	Sets        int
	Deletes     int
	Checks      int
	Len         int
	Height      int
	BlackHeight int
}

// NewStressCommand creates the stress command.
func NewStressCommand() *cobra.Command {
	sc := &StressCommand{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized workload against a map oracle",
		Long: `Apply a seeded random mix of Set and Delete to the tree and to a Go map,
run the invariant checker periodically, and compare every key at the end.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().Int64Var(&sc.seed, "seed", config.DefaultStressSeed, "Random seed")
	cmd.Flags().IntVarP(&sc.operations, "operations", "n", config.DefaultStressOperations, "Number of operations")
	cmd.Flags().IntVar(&sc.keySpace, "key-space", config.DefaultStressKeySpace, "Keys are drawn from [0, key-space)")
	cmd.Flags().Float64Var(&sc.deleteRatio, "delete-ratio", config.DefaultStressDeleteRatio, "Fraction of operations that delete")
	cmd.Flags().IntVar(&sc.checkEvery, "check-every", config.DefaultStressCheckEvery,
		"Run the invariant checker every N operations (0 = only at the end)")
	cmd.Flags().IntVar(&sc.sampleEvery, "sample-every", config.DefaultStressSampleEvery, "Plot sampling interval")
	cmd.Flags().StringVar(&sc.plotPath, "plot", "", "Write an HTML height chart to this file")
	cmd.Flags().StringVar(&sc.metricsAddr, "metrics-addr", "", "Serve /healthz, /readyz and /metrics on this address until interrupted")

	return cmd
}

func (sc *StressCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sc.applyFlags(cmd, cfg)

	err = cfg.Stress.Validate()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := initTelemetry(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.WithoutCancel(ctx))
		if shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	meter := providers.Meter

	var (
		diagnostics *observability.DiagnosticsServer
		finished    atomic.Bool
	)

	if cfg.Telemetry.MetricsAddr != "" {
		diagnostics, err = observability.NewDiagnosticsServer(
			cfg.Telemetry.MetricsAddr, providers.Tracer, providers.Logger, workloadDone(&finished),
		)
		if err != nil {
			return err
		}

		defer func() {
			_ = diagnostics.Close(context.WithoutCancel(ctx))
		}()

		meter = diagnostics.MeterProvider().Meter(meterName)
	}

	result, runErr := runStressTraced(ctx, cfg.Stress, providers, meter)
	finished.Store(true)

	if result != nil {
		renderErr := sc.report(cmd, result, cfg.Stress, runErr)
		if renderErr != nil {
			return renderErr
		}
	}

	if runErr != nil {
		return runErr
	}

	if diagnostics != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "serving diagnostics on %s, interrupt to exit\n", diagnostics.Addr())
		<-ctx.Done()
	}

	return nil
}

// applyFlags lets explicitly set flags override file and environment values.
func (sc *StressCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("seed") {
		cfg.Stress.Seed = sc.seed
	}

	if flags.Changed("operations") {
		cfg.Stress.Operations = sc.operations
	}

	if flags.Changed("key-space") {
		cfg.Stress.KeySpace = sc.keySpace
	}

	if flags.Changed("delete-ratio") {
		cfg.Stress.DeleteRatio = sc.deleteRatio
	}

	if flags.Changed("check-every") {
		cfg.Stress.CheckEvery = sc.checkEvery
	}

	if flags.Changed("sample-every") {
		cfg.Stress.SampleEvery = sc.sampleEvery
	}

	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = sc.metricsAddr
	}
}

// workloadDone reports ready once the stress workload has stopped.
func workloadDone(finished *atomic.Bool) observability.ReadyCheck {
	return func(context.Context) error {
		if !finished.Load() {
			return ErrWorkloadRunning
		}

		return nil
	}
}

func runStressTraced(
	ctx context.Context, params config.StressConfig, providers observability.Providers, meter metric.Meter,
) (*stressResult, error) {
	ctx, span := providers.Tracer.Start(ctx, "rbmap.stress",
		trace.WithAttributes(
			attribute.Int64("rbmap.seed", params.Seed),
			attribute.Int("rbmap.operations", params.Operations),
			attribute.Int("rbmap.key_space", params.KeySpace),
			attribute.Float64("rbmap.delete_ratio", params.DeleteRatio),
		),
	)
	defer span.End()

	treeMetrics, err := observability.NewTreeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create tree metrics: %w", err)
	}

	result, err := runStress(ctx, params, providers.Logger, treeMetrics)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stress failed")

		return result, err
	}

	span.SetAttributes(
		attribute.Int("rbmap.len", result.Len),
		attribute.Int("rbmap.height", result.Height),
		attribute.Int64("rbmap.rotations", result.Stats.Rotations),
	)

	return result, nil
}

// runStress applies the workload to a tree and a Go map oracle. The result is
// non-nil whenever at least the workload ran, so partial runs can be reported.
func runStress(
	ctx context.Context, params config.StressConfig, logger *slog.Logger, observer rbtree.Observer,
) (*stressResult, error) {
	rng := rand.New(rand.NewPCG(uint64(params.Seed), uint64(params.KeySpace))) //nolint:gosec // reproducible workload, not crypto.
	tree := rbtree.New[int, int](rbtree.WithLogger(logger), rbtree.WithObserver(observer))
	oracle := make(map[int]int, params.KeySpace)
	result := &stressResult{}
	start := time.Now()

	err := recoverInvariant(func() {
		for op := 1; op <= params.Operations; op++ {
			if ctx.Err() != nil {
				return
			}

			key := rng.IntN(params.KeySpace)

			if rng.Float64() < params.DeleteRatio {
				tree.Delete(key)
				delete(oracle, key)

				result.Deletes++
			} else {
				tree.Set(key, op)
				oracle[key] = op

				result.Sets++
			}

			result.Operations = op

			if params.CheckEvery > 0 && op%params.CheckEvery == 0 {
				tree.Check()

				result.Checks++
			}

			if op%params.SampleEvery == 0 {
				result.Samples = append(result.Samples, sampleTree(tree, op))
			}
		}

		result.BlackHeight = tree.Check()
		result.Checks++
	})

	result.Duration = time.Since(start)
	result.Stats = tree.Stats()
	result.Len = tree.Len()
	result.Height = tree.Height()

	if err != nil {
		return result, err
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("stress interrupted after %d operations: %w", result.Operations, ctx.Err())
	}

	err = compareOracle(tree, oracle)
	if err != nil {
		return result, err
	}

	if float64(result.Height) > heightBound(result.Len) {
		return result, fmt.Errorf("%w: height %d with %d keys", ErrHeightBound, result.Height, result.Len)
	}

	logger.Debug("stress finished",
		"operations", result.Operations, "len", result.Len, "height", result.Height,
		"rotations", result.Stats.Rotations, "duration", result.Duration)

	return result, nil
}

func sampleTree(tree *rbtree.Map[int, int], op int) stressSample {
	return stressSample{
		Operation:   op,
		Len:         tree.Len(),
		Height:      tree.Height(),
		BlackHeight: tree.Check(),
		Bound:       heightBound(tree.Len()),
	}
}

func compareOracle(tree *rbtree.Map[int, int], oracle map[int]int) error {
	if tree.Len() != len(oracle) {
		return fmt.Errorf("%w: tree holds %d keys, oracle %d", ErrOracleMismatch, tree.Len(), len(oracle))
	}

	for key, want := range oracle {
		got, ok := tree.Get(key)
		if !ok || got != want {
			return fmt.Errorf("%w: key %d = %d (found %t), want %d", ErrOracleMismatch, key, got, ok, want)
		}
	}

	return nil
}

// heightBound is the maximum height of a red-black tree holding n keys.
func heightBound(n int) float64 {
	return 2 * math.Log2(float64(n+1))
}
