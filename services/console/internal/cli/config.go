package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change the webhook endpoints",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print every endpoint and where the values came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := rt.app().Snapshot()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source = %s\n", snap.SettingsSource)
			for _, f := range snap.Endpoints.Fields() {
				fmt.Fprintf(out, "%s = %s\n", f.Key, *f.Value)
			}
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Print one endpoint, e.g. listStoresUrl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := rt.app().Endpoints().Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Persist one endpoint; an empty value disables its operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoints := rt.app().Endpoints()
			if err := endpoints.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := rt.app().SaveSettings(cmd.Context(), endpoints); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved endpoints and fall back to the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.app().ResetSettings(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings reset (now %s)\n", rt.app().Snapshot().SettingsSource)
			return nil
		},
	}

	cmd.AddCommand(show, get, set, reset)
	return cmd
}
