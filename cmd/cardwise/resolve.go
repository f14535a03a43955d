package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/cardwise/internal/cli"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <merchant>",
		Short: "Show how a merchant descriptor would be categorized",
		Long: `Resolve a single merchant descriptor to a merchant category code and place
it in the category taxonomy, without saving anything. The LLM oracle is
consulted when one is configured, unless --offline is set.

Example:
  cardwise resolve "SWIGGY BANGALORE"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offline, _ := cmd.Flags().GetBool("offline")
			ctx := cmd.Context()
			descriptor := strings.Join(args, " ")

			a, err := newApp(ctx, !offline)
			if err != nil {
				return err
			}
			defer a.Close()

			lookup, err := a.engine.Lookup(ctx, descriptor)
			if err != nil {
				return err
			}

			category := lookup.Category
			if lookup.SubCategory != "" {
				category += " / " + lookup.SubCategory
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderResolution(descriptor, lookup.Resolution, category))
			if lookup.NeedsReview {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Placed in %s with confidence %.2f; would be flagged for review", category, lookup.Confidence)))
			}
			return nil
		},
	}

	cmd.Flags().Bool("offline", false, "Do not consult the LLM oracle")

	return cmd
}
