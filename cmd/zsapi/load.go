package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zipscene/zipscene-api-client/internal/bulkload"
	"github.com/zipscene/zipscene-api-client/internal/printer"
)

var (
	loadType      string
	loadFormat    string
	loadBatchSize int
	loadRPS       float64
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Bulk-upload documents from a CSV or NDJSON file",
	Long: `Load reads a document file and uploads it in batches. CSV files use the
header row for field names; any other extension is treated as
newline-delimited JSON:

  zsapi load customers.csv --type customers
  zsapi load orders.ndjson --type orders --batch-size 500 --rps 2`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadType, "type", "", "document type")
	loadCmd.Flags().StringVar(&loadFormat, "format", "", "input format: csv or ndjson (default by extension)")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 1000, "documents per upload batch")
	loadCmd.Flags().Float64Var(&loadRPS, "rps", 0, "maximum upload batches per second (0 = unlimited)")
	_ = loadCmd.MarkFlagRequired("type")
}

func runLoad(cmd *cobra.Command, args []string) error {
	path := args[0]
	format := loadFormat
	if format == "" {
		format = bulkload.FormatForPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	docs, err := bulkload.ReadDocuments(f, format)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%s contains no documents", path)
	}

	c, err := buildDataClient()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
	}

	loader := bulkload.NewLoader(c, loadBatchSize, loadRPS, logger)
	total, err := loader.Load(context.Background(), loadType, docs)
	if err != nil {
		printer.Failf(os.Stderr, "upload aborted after %d document(s)", total)
		return err
	}

	printer.Successf(os.Stderr, "loaded %d document(s) into %s", total, loadType)
	return nil
}
