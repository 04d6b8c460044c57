package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"storedesk/pkg/domain"
	"storedesk/pkg/settings"
)

func newAskCommand(rt *runtime) *cobra.Command {
	var storeID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question scoped to a store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := rt.app()
			if err := a.RefreshStores(cmd.Context()); err != nil {
				return err
			}
			if err := a.SetChatStore(storeID); err != nil {
				return err
			}
			reply, err := a.SendChat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "store id to chat with")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func newThemeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Print or persist the color theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(domain.ThemeLight), string(domain.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), rt.app().Theme(cmd.Context(), rt.detectTheme()))
				return nil
			}
			theme, ok := domain.ParseTheme(strings.ToLower(args[0]))
			if !ok {
				return fmt.Errorf("%w: %q", settings.ErrInvalidTheme, args[0])
			}
			if err := rt.app().SetTheme(cmd.Context(), theme); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme)
			return nil
		},
	}
}
