package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/cardwise/internal/cli"
)

func recommendationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recommendations <session>",
		Aliases: []string{"recs"},
		Short:   "Show the ranked card recommendations for a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, _ := cmd.Flags().GetBool("detail")
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			session, err := store.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			recs, err := store.GetRecommendations(ctx, session.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s Session %s (%s, %s)\n", cli.CardIcon, session.ID, session.Source, session.Status)
			fmt.Fprintln(out, cli.RenderRecommendations(recs))
			if detail {
				for _, rec := range recs {
					fmt.Fprintln(out, cli.RenderRecommendationDetail(rec))
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("detail", false, "Show pros, cons and the per-category breakdown")

	return cmd
}
