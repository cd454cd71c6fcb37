package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zipscene/zipscene-api-client/internal/printer"
	"github.com/zipscene/zipscene-api-client/pkg/data"
)

// queryFlags holds the document-selection flags. Each command owns its own
// copy so values never leak between commands.
type queryFlags struct {
	docType string
	query   string
	format  string
	fields  []string
	sort    []string
	skip    int
	limit   int
}

// register adds the flags every doc-matching command takes.
func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.docType, "type", "", "document type")
	cmd.Flags().StringVar(&f.query, "query", "", "query expression (JSON)")
	cmd.Flags().StringVar(&f.format, "format", "pretty", "output format: pretty or plain")
	_ = cmd.MarkFlagRequired("type")
}

// registerSelection adds the projection and ordering flags.
func (f *queryFlags) registerSelection(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.fields, "fields", nil, "fields to return")
	cmd.Flags().StringSliceVar(&f.sort, "sort", nil, "sort fields (prefix with - for descending)")
}

// parseQuery decodes the --query flag, defaulting to match-all.
func (f *queryFlags) parseQuery() (map[string]any, error) {
	if f.query == "" {
		return nil, nil
	}
	var q map[string]any
	if err := json.Unmarshal([]byte(f.query), &q); err != nil {
		return nil, fmt.Errorf("parse --query: %w", err)
	}
	return q, nil
}

func newQueryCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query documents",
		Long: `Query fetches the documents matching a query expression:

  zsapi query --type customers --query '{"city":"Cincinnati"}' --limit 10
  zsapi query --type orders --fields total,placedAt --sort -placedAt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.parseQuery()
			if err != nil {
				return err
			}
			c, err := buildDataClient()
			if err != nil {
				return err
			}

			docs, err := c.Query(context.Background(), data.QueryParams{
				Type:   flags.docType,
				Query:  q,
				Fields: flags.fields,
				Sort:   flags.sort,
				Skip:   flags.skip,
				Limit:  flags.limit,
			})
			if err != nil {
				return err
			}

			for _, doc := range docs {
				if flags.format == "pretty" {
					if err := printer.Raw(os.Stdout, doc, true); err != nil {
						return err
					}
				} else if err := printer.Line(os.Stdout, doc); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	flags.registerSelection(cmd)
	cmd.Flags().IntVar(&flags.skip, "skip", 0, "documents to skip")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "maximum documents to return")
	return cmd
}

// ── count ────────────────────────────────────────────────────────────────────

func newCountCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count documents matching a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.parseQuery()
			if err != nil {
				return err
			}
			c, err := buildDataClient()
			if err != nil {
				return err
			}
			n, err := c.Count(context.Background(), data.QueryParams{Type: flags.docType, Query: q})
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// ── aggregate ────────────────────────────────────────────────────────────────

func newAggregateCmd() *cobra.Command {
	var flags queryFlags
	var aggregateSpec string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run server-side aggregates",
		Long: `Aggregate runs one or more named aggregates over the matching documents:

  zsapi aggregate --type orders --aggregates '{"byCity":{"groupBy":"city","stats":"total"}}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.parseQuery()
			if err != nil {
				return err
			}
			var aggregates map[string]any
			if err := json.Unmarshal([]byte(aggregateSpec), &aggregates); err != nil {
				return fmt.Errorf("parse --aggregates: %w", err)
			}
			c, err := buildDataClient()
			if err != nil {
				return err
			}
			result, err := c.Aggregate(context.Background(), data.AggregateParams{
				Type:       flags.docType,
				Query:      q,
				Aggregates: aggregates,
			})
			if err != nil {
				return err
			}
			return printer.Raw(os.Stdout, result, flags.format == "pretty")
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&aggregateSpec, "aggregates", "", "aggregate spec (JSON)")
	_ = cmd.MarkFlagRequired("aggregates")
	return cmd
}

// ── distinct ─────────────────────────────────────────────────────────────────

func newDistinctCmd() *cobra.Command {
	var flags queryFlags
	var field string
	cmd := &cobra.Command{
		Use:   "distinct",
		Short: "List distinct values of a field",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.parseQuery()
			if err != nil {
				return err
			}
			c, err := buildDataClient()
			if err != nil {
				return err
			}
			values, err := c.Distinct(context.Background(), flags.docType, field, q)
			if err != nil {
				return err
			}
			for _, v := range values {
				if err := printer.Line(os.Stdout, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&field, "field", "", "field to collect distinct values of")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
