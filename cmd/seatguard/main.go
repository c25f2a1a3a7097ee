package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbvlabs/seatguard/internal/app"
	"github.com/mbvlabs/seatguard/internal/config"
	"github.com/mbvlabs/seatguard/internal/console"
	"github.com/mbvlabs/seatguard/internal/incident"
	"github.com/mbvlabs/seatguard/internal/logging"
)

var Version = "dev"

func main() {
	if err := mainE(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return NewRootCmd().ExecuteContext(ctx)
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "seatguard SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		Short: "Seat status tracker guarded by a software watchdog",

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		NewRunCmd(),
		NewVersionCmd(),
		NewIncidentsCmd(),
	)

	return rootCmd
}

func NewRunCmd() *cobra.Command {
	var (
		configPath  string
		interactive bool
	)

	cmd := &cobra.Command{
		Use: "run",

		Short: "Run the watchdog, feeders and status server",

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, interactive, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "start the operator shell")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, interactive bool, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var shell *console.Shell
	if interactive {
		var err error
		shell, err = console.New()
		if err != nil {
			return err
		}
		defer shell.Close()
		stdout = shell.Stdout()
	}

	logger, logCloser, err := logging.New(cfg.Logging, stdout)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("seatguard_starting",
		"version", Version,
		"config", cfg.Path,
		"watchdog", cfg.Watchdog.Name,
		"timeout_ms", cfg.Watchdog.TimeoutMillis,
		"reset_threshold", cfg.Watchdog.ResetThreshold,
		"server", cfg.Server.Addr,
	)

	a, err := app.New(ctx, cfg, logger, app.Options{Version: Version})
	if err != nil {
		return err
	}

	if shell != nil {
		go shell.Run(ctx, cancel, a.Commands())
	}

	err = a.Run(ctx)
	logger.Info("seatguard_stopped")
	return err
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use: "version",

		Short: "Print the seatguard version",

		Args: cobra.NoArgs,

		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seatguard version %s\n", Version)
		},
	}
}

func NewIncidentsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use: "incidents",

		Short: "List recorded watchdog escalations, newest last",

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			records, err := incident.Recent(cfg.Incidents.Path, limit)
			if err != nil {
				return err
			}
			return printIncidents(cmd.OutOrStdout(), records, asJSON)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many incidents (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func printIncidents(w io.Writer, records []incident.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []incident.Record{}
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No incidents recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tWATCHDOG\tSTRIKES\tSTALLED\tRECOVERY\tID")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			r.At.Local().Format(time.RFC3339),
			r.Watchdog,
			r.Strikes, r.Threshold,
			r.Stalled,
			r.Recovery,
			r.ID,
		)
	}
	return tw.Flush()
}
