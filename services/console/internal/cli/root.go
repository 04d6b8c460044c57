// Package cli is the storedesk command line: the root command opens the
// terminal UI and the subcommands run single controller operations.
package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"storedesk/internal/util"
	"storedesk/pkg/domain"
	"storedesk/services/console/internal/app"
	"storedesk/services/console/internal/bootstrap"
	"storedesk/services/console/internal/config"
	"storedesk/services/console/internal/tui"
)

const logFileName = "storedesk.log"

// runtime is the per-invocation state shared by the subcommands.
type runtime struct {
	configPath string
	cfg        config.FileConfig
	session    *bootstrap.Session
	logFile    *os.File

	// detectTheme reports the terminal preference when no theme is stored.
	detectTheme func() domain.Theme
}

func (rt *runtime) app() *app.App {
	return rt.session.App
}

func (rt *runtime) open(cmd *cobra.Command) error {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.SettingsDir, logFileName)
	}
	f, err := util.OpenLogFile(logPath)
	if err != nil {
		return err
	}
	rt.logFile = f
	util.InitLogger(cfg.LogLevel, f)

	session, err := bootstrap.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	rt.session = session
	return nil
}

func (rt *runtime) close() error {
	var errs []error
	if rt.session != nil {
		errs = append(errs, rt.session.Close())
		rt.session = nil
	}
	if rt.logFile != nil {
		errs = append(errs, rt.logFile.Close())
		rt.logFile = nil
	}
	return errors.Join(errs...)
}

func terminalTheme() domain.Theme {
	if lipgloss.HasDarkBackground() {
		return domain.ThemeDark
	}
	return domain.ThemeLight
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "storedesk",
		Short: "Manage webhook-backed document stores and chat with them",
		Long: `storedesk is a terminal front end for document stores exposed through
webhooks. Without arguments it opens the interactive UI; the subcommands run
one operation and print the result.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.open(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			theme := rt.app().Theme(ctx, rt.detectTheme())
			return tui.Run(ctx, rt.app(), theme)
		},
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "path to config.yaml (default $STOREDESK_CONFIG or ./config.yaml)")

	root.AddCommand(
		newConfigCommand(rt),
		newStoresCommand(rt),
		newDocsCommand(rt),
		newAskCommand(rt),
		newThemeCommand(rt),
	)
	return root
}

// Execute runs the command tree with args and releases the session and log
// file afterwards.
func Execute(ctx context.Context, args []string) error {
	rt := &runtime{detectTheme: terminalTheme}
	defer rt.close()
	root := newRootCommand(rt)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
