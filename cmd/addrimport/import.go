package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/AddressImport/internal/core"
	"github.com/JonMunkholm/AddressImport/internal/seed"
)

type importOptions struct {
	existing     []string
	out          string
	format       string
	contractRule string
	summaryOnly  bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import [flags] FILE...",
		Short: "Import spreadsheets against an existing collection",
		Long: "Import reads FILE... (CSV, XLSX or directories of them), drops rows whose\n" +
			"address already exists in --existing or earlier in the batch, and writes\n" +
			"the merged collection to --out or stdout.",
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			opts.format = strings.ToLower(opts.format)
			if opts.format != core.FormatCSV && opts.format != core.FormatXLSX {
				return fmt.Errorf("invalid --format %q: must be csv or xlsx", opts.format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.existing, "existing", nil, "Files holding the records already known (repeatable)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", core.FormatCSV, "Output format: csv, xlsx")
	cmd.Flags().StringVar(&opts.contractRule, "contract-rule", envOr("CONTRACT_RULE", "combined"), "Contract status rule: combined, max")
	cmd.Flags().BoolVar(&opts.summaryOnly, "summary-only", false, "Print counters without writing the collection")

	return cmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func runImport(cmd *cobra.Command, opts importOptions, args []string) error {
	ctx := cmd.Context()

	rule, err := core.ParseContractRule(opts.contractRule, core.DefaultAliases)
	if err != nil {
		return err
	}
	im, err := core.NewImporter(core.ImporterOptions{ContractRule: rule, Logger: slog.Default()})
	if err != nil {
		return err
	}
	records, err := core.NewCollection(nil)
	if err != nil {
		return err
	}

	if len(opts.existing) > 0 {
		n, err := seed.Load(ctx, im, records, opts.existing)
		if err != nil {
			return fmt.Errorf("load existing: %w", err)
		}
		slog.Info("existing records loaded", "records", n)
	}

	files, err := seed.ReadFiles(args)
	if err != nil {
		return err
	}
	result, err := im.Import(ctx, files, records.Records())
	if err != nil {
		return err
	}
	added, err := records.Merge(result.Records)
	if err != nil {
		return err
	}

	printSummary(cmd.ErrOrStderr(), result, added, records.Len())
	if opts.summaryOnly {
		return nil
	}
	return writeCollection(cmd, opts, records.Records())
}

func printSummary(w io.Writer, result *core.ImportResult, added, total int) {
	for _, f := range result.Files {
		fmt.Fprintf(w, "%-30s %-5s rows=%d accepted=%d duplicates=%d blank=%d\n",
			f.Name, f.Codec, f.Rows, f.Accepted, f.Duplicates, f.Blank)
	}
	fmt.Fprintf(w, "batch %s: %d rows, %d new, %d duplicates, %d blank; collection now %d records (%d added)\n",
		result.BatchID, result.TotalRows, result.Accepted(), result.Duplicates, result.Blank, total, added)
}

func writeCollection(cmd *cobra.Command, opts importOptions, records []core.Record) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if opts.out != "" {
		f, cerr := os.Create(opts.out)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	if err := core.Export(cmd.Context(), bw, opts.format, records, core.ExportOptions{}); err != nil {
		return err
	}
	return bw.Flush()
}
