package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/cardwise/internal/jobs"
)

// StatusFunc fetches the current view of a job.
type StatusFunc func(ctx context.Context, jobID string) (jobs.JobStatusView, error)

// WatchJob polls a job every interval and mirrors its progress on a bar until
// the job reaches a terminal state or ctx is done.
func WatchJob(ctx context.Context, w io.Writer, status StatusFunc, jobID string, interval time.Duration) (jobs.JobStatusView, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(stepDescription("queued")),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := status(ctx, jobID)
		if err != nil {
			return view, err
		}

		if view.CurrentStep != "" {
			bar.Describe(stepDescription(view.CurrentStep))
		}
		if err := bar.Set(view.Progress); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}

		if view.Status.IsTerminal() {
			if !bar.IsFinished() {
				_ = bar.Exit()
				_, _ = fmt.Fprintln(w)
			}
			return view, nil
		}

		select {
		case <-ctx.Done():
			_ = bar.Exit()
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

// stepDescription turns "resolving_merchants" into a colored "Resolving merchants".
func stepDescription(step string) string {
	text := strings.ReplaceAll(step, "_", " ")
	if text != "" {
		text = strings.ToUpper(text[:1]) + text[1:]
	}
	return "[cyan][bold]" + text + "...[reset]"
}
