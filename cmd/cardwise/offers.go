package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/model"
)

func offersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offers",
		Short: "Manage the card offer catalog",
	}

	cmd.AddCommand(offersListCmd())
	cmd.AddCommand(offersLoadCmd())

	return cmd
}

func offersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			activeOnly, _ := cmd.Flags().GetBool("active")
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			offers, err := store.ListOffers(ctx, activeOnly)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderOffers(offers))
			return nil
		},
	}

	cmd.Flags().Bool("active", false, "Only show active offers")

	return cmd
}

func offersLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <catalog.yaml>",
		Short: "Load offers from a YAML catalog",
		Long: `Load offers from a YAML catalog, replacing stored offers with the same id.
Offers default to active unless the catalog sets active: false.

Example catalog:

  offers:
    - id: foodie-rewards
      name: Foodie Rewards
      issuer: Axis Bank
      network: MASTERCARD
      currency: cashback
      base_rate: 1
      rewards:
        - category: Dining & Food Delivery
          rate: 10
          cap: {limit: 500, period: monthly}
      fees: {joining: 0, annual: 999}
      eligibility: {min_income: 30000, min_credit_score: 720}
      satisfaction: 4.5`,
		Args: cobra.ExactArgs(1),
		RunE: runOffersLoad,
	}

	cmd.Flags().Bool("deactivate-missing", false, "Deactivate stored offers that are not in the catalog")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func runOffersLoad(cmd *cobra.Command, args []string) error {
	deactivateMissing, _ := cmd.Flags().GetBool("deactivate-missing")
	yes, _ := cmd.Flags().GetBool("yes")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	offers, err := parseCatalog(f)
	if err != nil {
		return err
	}

	if deactivateMissing && !yes {
		question := fmt.Sprintf("Deactivate every stored offer not among these %d?", len(offers))
		ok, confirmErr := cli.Confirm(ctx, cli.NewInputReader(cmd.InOrStdin()), out, question)
		if confirmErr != nil {
			return confirmErr
		}
		if !ok {
			fmt.Fprintln(out, cli.FormatInfo("Nothing changed"))
			return nil
		}
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	deactivated, err := store.ImportOffers(ctx, offers, deactivateMissing)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Loaded %d offers", len(offers))))
	if deactivated > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Deactivated %d offers missing from the catalog", deactivated)))
	}
	return nil
}

// catalogFile is the on-disk catalog layout. A bare list of offers is also accepted.
type catalogFile struct {
	Offers []yaml.Node `yaml:"offers"`
}

// parseCatalog decodes a YAML catalog. Offers are active unless they say otherwise.
func parseCatalog(r io.Reader) ([]model.Offer, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog is empty")
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	var nodes []yaml.Node
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&nodes); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
	case yaml.MappingNode:
		var file catalogFile
		if err := root.Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		nodes = file.Offers
	default:
		return nil, fmt.Errorf("catalog must be a list of offers or a map with an offers key")
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("catalog has no offers")
	}

	offers := make([]model.Offer, 0, len(nodes))
	for i := range nodes {
		offer := model.Offer{IsActive: true}
		if err := nodes[i].Decode(&offer); err != nil {
			return nil, fmt.Errorf("offer %d (line %d): %w", i, nodes[i].Line, err)
		}
		if err := offer.Validate(); err != nil {
			return nil, fmt.Errorf("offer %d (line %d): %w", i, nodes[i].Line, err)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}
