// Command finctl runs the scheduled jobs on demand and inspects the
// configuration.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Deepanshu2050/subcription-manager/internal/app"
	"github.com/Deepanshu2050/subcription-manager/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	load := func() (config.Config, error) {
		if err := config.LoadDotEnv(); err != nil {
			return config.Config{}, err
		}
		return config.Load(config.Path(configPath))
	}
	withApp := func(fn func(ctx context.Context, a *app.App, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd.Context(), a, cmd.OutOrStdout())
		}
	}

	root := &cobra.Command{
		Use:          "finctl",
		Short:        "Finance tracker operator tool",
		Long:         "Run budget alert, renewal reminder and reconciliation jobs on demand, and inspect the effective configuration.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file (default $FINTRACK_CONFIG)")

	var at string
	parseAt := func() (time.Time, error) {
		if at == "" {
			return time.Now(), nil
		}
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("--at must be an RFC 3339 timestamp: %w", err)
		}
		return t, nil
	}

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Run a notification sweep across all users",
	}
	sweep.PersistentFlags().StringVar(&at, "at", "", "Evaluate as of this RFC 3339 time instead of now")

	sweep.AddCommand(&cobra.Command{
		Use:   "alerts",
		Short: "Send due budget alerts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
			now, err := parseAt()
			if err != nil {
				return err
			}
			res, err := a.Budgets.SweepAlerts(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Checked %s budgets: %s alerts sent, %s failed\n",
				humanize.Comma(int64(res.Budgets)), humanize.Comma(int64(res.AlertsSent)), humanize.Comma(int64(res.Failed)))
			return nil
		}),
	})

	sweep.AddCommand(&cobra.Command{
		Use:   "reminders",
		Short: "Send renewal reminders for upcoming subscriptions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
			now, err := parseAt()
			if err != nil {
				return err
			}
			res, err := a.Subscriptions.SweepReminders(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Checked %s subscriptions: %s reminders sent, %s failed\n",
				humanize.Comma(int64(res.Subscriptions)), humanize.Comma(int64(res.RemindersSent)), humanize.Comma(int64(res.Failed)))
			return nil
		}),
	})

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute the running spend of every active budget",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
			res, err := a.Budgets.Reconcile(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Checked %s budgets: %s adjusted, %s failed\n",
				humanize.Comma(int64(res.Budgets)), humanize.Comma(int64(res.Adjusted)), humanize.Comma(int64(res.Failed)))
			return nil
		}),
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg.Redacted())
		},
	})

	root.AddCommand(sweep, reconcile, configCmd)
	return root
}
