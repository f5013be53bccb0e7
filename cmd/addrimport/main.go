// Command addrimport imports address spreadsheets from the command line and
// writes the merged, deduplicated collection as CSV or XLSX.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/AddressImport/internal/logging"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "addrimport",
		Short:         "Import, deduplicate and export address spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so exports on stdout stay clean.
			logging.SetupWriter(stderr, opts.logLevel, opts.logFormat)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newDedupKeyCmd())
	return cmd
}

func main() {
	// A missing .env is fine; the environment only supplies flag defaults.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
