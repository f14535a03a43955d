package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/jobs"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker pool",
		Long: `Run a fixed pool of workers that claim queued jobs and run the pipeline,
plus the sweeper that fails jobs stuck in processing.

Press Ctrl+C to stop; in-flight jobs get the configured grace period.`,
		RunE: runWorker,
	}

	cmd.Flags().Int("workers", 0, "Number of workers (default: jobs.workers)")

	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	workers, _ := cmd.Flags().GetInt("workers")

	handler := cli.NewInterruptHandler(cmd.OutOrStdout(),
		"Stopping workers...",
		"Jobs still running after the grace period are failed by the next sweep.")
	ctx := handler.HandleInterrupts(cmd.Context())

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	rt, err := startRuntime(ctx, a, workers)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d workers waiting for jobs", rt.pool.Size()))+" "+cli.ClockIcon)
	<-ctx.Done()

	return rt.stop()
}

// workerRuntime is a started worker pool and its stale-job sweeper.
type workerRuntime struct {
	pool    *jobs.Pool
	sweeper *jobs.Sweeper
	jobs    config.JobSettings
}

// startRuntime starts the pool and the sweeper. workers overrides the
// configured pool size when positive.
func startRuntime(ctx context.Context, a *app, workers int) (*workerRuntime, error) {
	snap, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = snap.Jobs.Workers
	}

	pool := jobs.NewPool(a.store, a.engine, jobs.PoolOptions{
		Logger:  common.ComponentLogger("pool"),
		Workers: workers,
		Worker: jobs.WorkerOptions{
			Logger: common.ComponentLogger("worker"),
			Backoff: jobs.Backoff{
				Base:       snap.Jobs.BackoffBase,
				Max:        snap.Jobs.BackoffMax,
				Multiplier: snap.Jobs.BackoffMultiplier,
			},
		},
		ShutdownGrace: snap.Jobs.ShutdownGrace,
	})

	sweeper := jobs.NewSweeper(a.store, snap.Jobs.Timeout, snap.Jobs.SweepSchedule, jobs.RealClock{}, slog.Default())
	if err := sweeper.Start(ctx); err != nil {
		return nil, err
	}

	if err := pool.Start(ctx); err != nil {
		sweeper.Stop()
		return nil, err
	}
	common.LogInfo("Job runtime started", common.Fields{
		"workers":        workers,
		"job_timeout":    snap.Jobs.Timeout,
		"sweep_schedule": snap.Jobs.SweepSchedule,
	})

	return &workerRuntime{pool: pool, sweeper: sweeper, jobs: snap.Jobs}, nil
}

// stop drains the pool, then halts the sweeper. The sweeper outlives the pool
// so it can still fail jobs the grace period abandoned on its next run.
func (r *workerRuntime) stop() error {
	err := r.pool.Shutdown(context.Background())
	r.sweeper.Stop()
	if errors.Is(err, jobs.ErrShutdownTimeout) {
		slog.Warn("Some jobs were still running at shutdown", "grace", r.jobs.ShutdownGrace)
		return nil
	}
	return err
}
