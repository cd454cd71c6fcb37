package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zipscene/zipscene-api-client/internal/printer"
	"github.com/zipscene/zipscene-api-client/pkg/api"
	"github.com/zipscene/zipscene-api-client/pkg/data"
)

func newExportCmd() *cobra.Command {
	var flags queryFlags
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Stream all matching documents as newline-delimited JSON",
		Long: `Export streams every matching document, one JSON object per line.
Documents are written as they arrive, so arbitrarily large result sets run
in constant memory:

  zsapi export --type orders --query '{"placedAt":{"$gt":"2026-01-01"}}'
  zsapi export --type customers --output customers.ndjson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.parseQuery()
			if err != nil {
				return err
			}
			c, err := buildDataClient()
			if err != nil {
				return err
			}

			var out io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close() //nolint:errcheck
				buffered := bufio.NewWriter(f)
				defer buffered.Flush() //nolint:errcheck
				out = buffered
			}

			stream, err := c.Export(context.Background(), data.QueryParams{
				Type:   flags.docType,
				Query:  q,
				Fields: flags.fields,
				Sort:   flags.sort,
			})
			if err != nil {
				return err
			}
			defer stream.Close() //nolint:errcheck

			var count int64
			for {
				doc, err := stream.Next()
				if err == io.EOF {
					break
				}
				if errors.Is(err, api.ErrUnexpectedEnd) {
					printer.Failf(os.Stderr, "stream ended early after %d document(s); the export is incomplete", count)
					return err
				}
				if err != nil {
					return err
				}
				if err := printer.Line(out, doc); err != nil {
					return err
				}
				count++
			}

			printer.Successf(os.Stderr, "exported %d document(s)", count)
			return nil
		},
	}
	flags.register(cmd)
	flags.registerSelection(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
