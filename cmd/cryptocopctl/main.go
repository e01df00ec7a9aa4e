// Command cryptocopctl runs operational tasks against a cryptocop
// deployment. It reads the same configuration as the services.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appkg "github.com/xenking/cryptocop/internal/app"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "cryptocopctl",
		Short:         "Cryptocop operations tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(revokeCmd())
	rootCmd.AddCommand(replayCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appkg.LoadEnvConfig()
			if err != nil {
				return err
			}
			if err := appkg.Migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <credential-id>",
		Short: "Revoke a credential so tokens carrying it are rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := appkg.LoadEnvConfig()
			if err != nil {
				return err
			}
			if err := appkg.Revoke(cmd.Context(), cfg, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credential %d revoked\n", id)
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "replay <order-id>",
		Short: "Publish the order-completed event of an order again",
		Long: `Publish the order-completed event of a committed order again.

Use it for orders whose event was lost because the broker was unavailable
at checkout. Consumers may see the event twice.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := appkg.LoadEnvConfig()
			if err != nil {
				return err
			}
			lg := zap.NewNop()
			if verbose {
				if lg, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			defer func() { _ = lg.Sync() }()
			if err := appkg.Replay(cmd.Context(), lg, cfg, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %d replayed\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
	return cmd
}
