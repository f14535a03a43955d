package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and override runtime settings",
		Long: `Runtime settings layer database overrides over the config file, CARDWISE_*
environment variables and built-in defaults. Overrides take effect for the
next job without restarting workers.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			key := args[0]
			value, overridden, err := store.GetSetting(ctx, key)
			if err != nil {
				return err
			}
			origin := "override"
			if !overridden {
				if !viper.IsSet(key) {
					return fmt.Errorf("unknown setting %q", key)
				}
				value = newProvider(store).String(key, "")
				origin = "config"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", key, value, origin)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Override a setting in the database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			key, value := args[0], args[1]
			if err := validateOverride(a, key, value); err != nil {
				return err
			}
			if err := a.settings.Set(ctx, key, value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s = %s", key, value)))
			return nil
		},
	})

	return cmd
}

// validateOverride loads a snapshot with the override applied on top of the
// current settings, so an invalid value is rejected before it is stored.
func validateOverride(a *app, key, value string) error {
	source := config.LayeredSource{
		config.MapSource{key: value},
		config.NewSettingsSource(a.store),
		config.NewViperSource(viper.GetViper()),
	}
	if _, err := config.LoadSnapshot(config.NewCachedProvider(source, 0)); err != nil {
		return common.NewUserError(fmt.Sprintf("%s cannot be set to %q", key, value), err)
	}
	return nil
}
