package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/jobs"
	"github.com/Veraticus/cardwise/internal/model"
)

func enqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <session>",
		Short: "Queue a job for an existing session",
		Long: `Queue a job for a session that has already been imported.

Job kinds:
  process_session  resolve merchants, then score offers (default)
  recategorize     re-resolve every transaction, including resolved ones
  recommend        re-score offers from the current transaction state`,
		Args: cobra.ExactArgs(1),
		RunE: runEnqueue,
	}

	cmd.Flags().String("kind", string(model.KindProcessSession), "Job kind")
	cmd.Flags().Int("priority", 10, "Job priority; lower values run first")
	cmd.Flags().Float64("income", 0, "Monthly income used for eligibility checks")
	cmd.Flags().Int("credit-score", 0, "Credit score used for eligibility checks")
	cmd.Flags().Bool("watch", false, "Follow the job until it finishes")

	return cmd
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	priority, _ := cmd.Flags().GetInt("priority")
	income, _ := cmd.Flags().GetFloat64("income")
	creditScore, _ := cmd.Flags().GetInt("credit-score")
	watch, _ := cmd.Flags().GetBool("watch")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	jobKind := model.JobKind(kind)
	if !jobKind.Valid() {
		return fmt.Errorf("unknown job kind %q", kind)
	}

	var input *model.JobInput
	if income > 0 || creditScore > 0 {
		input = &model.JobInput{Profile: &model.UserProfile{MonthlyIncome: income, CreditScore: creditScore}}
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scheduler := jobs.NewScheduler(store)
	id, err := scheduler.Enqueue(ctx, args[0], jobKind, priority, input)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess("Queued job "+id))

	if !watch {
		return nil
	}
	view, err := cli.WatchJob(ctx, out, scheduler.Status, id, 500*time.Millisecond)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.RenderJobStatus(view))
	return nil
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job>",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	cmd.Flags().BoolP("watch", "w", false, "Follow the job until it finishes")
	cmd.Flags().Duration("interval", 500*time.Millisecond, "Poll interval while watching")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scheduler := jobs.NewScheduler(store)

	var view jobs.JobStatusView
	if watch {
		view, err = cli.WatchJob(ctx, out, scheduler.Status, args[0], interval)
	} else {
		view, err = scheduler.Status(ctx, args[0])
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.RenderJobStatus(view))
	return nil
}
