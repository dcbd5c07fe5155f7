package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/franz/travel-sos/internal/settings"
	"github.com/franz/travel-sos/internal/util"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change preferences",
	Long: `Read and change user preferences. Keys:

  onboarding_complete   bool    (default false)
  is_first_launch       bool    (default true)
  app_theme             light | dark | system (default system)
  direct_call           bool    (default false)
  confirm_before_call   bool    (default true)
  default_country_id    integer, empty to clear (default unset)`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one preference, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every preference to its default",
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsResetCmd)
}

func withSettings(fn func(ctx context.Context, s *settings.Store) error) error {
	events := openEventLog()
	defer events.Close()

	s, err := openSettings(events)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(context.Background(), s)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	return withSettings(func(ctx context.Context, s *settings.Store) error {
		prefs := s.Load(ctx)
		if len(args) == 1 {
			v, err := prefs.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, key := range settings.Keys {
			v, _ := prefs.Get(key)
			if v == "" {
				v = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\n", key, v)
		}
		return tw.Flush()
	})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	return withSettings(func(ctx context.Context, s *settings.Store) error {
		if err := s.Set(ctx, args[0], args[1]); err != nil {
			return err
		}
		util.SuccessLog("%s updated", args[0])
		return nil
	})
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	return withSettings(func(ctx context.Context, s *settings.Store) error {
		if err := s.Reset(ctx); err != nil {
			return err
		}
		util.SuccessLog("Preferences restored to defaults")
		return nil
	})
}
