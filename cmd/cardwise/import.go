package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/importer"
	"github.com/Veraticus/cardwise/internal/jobs"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import statements into a session and queue it for processing",
		Long: `Import card or bank statements into a session. OFX and QFX files are read
directly; JSON files hold records produced by a statement extractor, either as
an array or as {"transactions": [...]}.

All files given in one run land in the same session.

Examples:
  # Import a single statement
  cardwise import ~/Downloads/card_jan_2025.qfx

  # Import a year of statements at once
  cardwise import ~/Downloads/card_*.qfx

  # Add extracted records to an existing session
  cardwise import --session 3f0c... extracted.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("session", "", "Append to this session instead of creating one")
	cmd.Flags().Int("priority", importer.DefaultPriority, "Job priority; lower values run first")
	cmd.Flags().Bool("no-enqueue", false, "Store the session without queuing a job")
	cmd.Flags().BoolP("dry-run", "d", false, "Parse and summarize without saving")
	cmd.Flags().Float64("income", 0, "Monthly income used for eligibility checks")
	cmd.Flags().Int("credit-score", 0, "Credit score used for eligibility checks")

	return cmd
}

// statementFile is one parsed input file.
type statementFile struct {
	path         string
	transactions []model.Transaction
}

func runImport(cmd *cobra.Command, args []string) error {
	sessionID, _ := cmd.Flags().GetString("session")
	priority, _ := cmd.Flags().GetInt("priority")
	noEnqueue, _ := cmd.Flags().GetBool("no-enqueue")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	income, _ := cmd.Flags().GetFloat64("income")
	creditScore, _ := cmd.Flags().GetInt("credit-score")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	files, err := expandPatterns(args)
	if err != nil {
		return err
	}

	slog.Info("Importing statements", "file_count", len(files), "dry_run", dryRun)

	parsed, err := parseStatements(ctx, files, runtime.NumCPU())
	if err != nil {
		return err
	}

	var all []model.Transaction
	for _, f := range parsed {
		fmt.Fprintf(out, "  %s %s: %d transactions\n", cli.InfoIcon, filepath.Base(f.path), len(f.transactions))
		all = append(all, f.transactions...)
	}

	if dryRun {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions parsed, nothing saved", len(all))))
		return nil
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	imp := importer.New(store, jobs.NewScheduler(store), common.ComponentLogger("importer"))

	opts := importer.Options{
		SessionID:   sessionID,
		Priority:    priority,
		SkipEnqueue: noEnqueue,
	}
	if income > 0 || creditScore > 0 {
		opts.Profile = &model.UserProfile{MonthlyIncome: income, CreditScore: creditScore}
	}

	result, err := imp.Import(ctx, importSource(files), all, opts)
	if err != nil {
		if result.SessionID != "" {
			fmt.Fprintln(out, cli.RenderImportResult(result))
		}
		return err
	}

	fmt.Fprintln(out, cli.RenderImportResult(result))
	return nil
}

// expandPatterns expands shell globs, keeping literal paths that exist even
// when they contain glob metacharacters.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				add(pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}

	if len(files) == 0 {
		return nil, common.NewUserError("No statement files found to import", common.ErrNotFound)
	}
	return files, nil
}

// parseStatements parses files concurrently, at most limit at a time. Results
// keep the order of files.
func parseStatements(ctx context.Context, files []string, limit int) ([]statementFile, error) {
	results := make([]statementFile, len(files))
	reader := ofx.NewReader(common.ComponentLogger("ofx"))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, path := range files {
		g.Go(func() error {
			txns, err := parseStatement(gctx, reader, path)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			common.LogDebug("Parsed statement", common.Fields{
				"file":         filepath.Base(path),
				"transactions": len(txns),
			})
			results[i] = statementFile{path: path, transactions: txns}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseStatement(ctx context.Context, reader *ofx.Reader, path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return reader.ReadTransactions(ctx, f, "")
	case ".json":
		return importer.DecodeRecords(f, "")
	default:
		return nil, fmt.Errorf("unsupported statement format %q", filepath.Ext(path))
	}
}

// importSource names the session's source after its input files.
func importSource(files []string) string {
	if len(files) == 1 {
		return filepath.Base(files[0])
	}
	return fmt.Sprintf("%s (+%d more)", filepath.Base(files[0]), len(files)-1)
}
