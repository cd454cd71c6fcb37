// Package data maps the document-API verbs (query, count, aggregate,
// distinct, export, import) onto their JSON-RPC methods. It is a thin layer
// over api.Client; all authentication and retry behavior lives there.
package data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zipscene/zipscene-api-client/pkg/api"
)

// Client wraps an api.Client with the document-API surface.
type Client struct {
	rpc *api.Client
}

// New creates a document-API client on top of rpc.
func New(rpc *api.Client) *Client {
	return &Client{rpc: rpc}
}

// QueryParams selects documents of one type. Query uses the server's
// mongo-style match syntax and is passed through opaquely.
type QueryParams struct {
	Type   string         `json:"type"`
	Query  map[string]any `json:"query,omitempty"`
	Fields []string       `json:"fields,omitempty"`
	Sort   []string       `json:"sort,omitempty"`
	Skip   int            `json:"skip,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

// Query returns the matching documents.
func (c *Client) Query(ctx context.Context, params QueryParams) ([]json.RawMessage, error) {
	result, err := c.rpc.Request(ctx, "query", params, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return wrapper.Results, nil
}

// Count returns the number of documents matching params. Fields, sort, and
// paging are ignored by the server for counts.
func (c *Client) Count(ctx context.Context, params QueryParams) (int64, error) {
	result, err := c.rpc.Request(ctx, "count", params, nil)
	if err != nil {
		return 0, err
	}
	var wrapper struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return 0, fmt.Errorf("decode count result: %w", err)
	}
	return wrapper.Count, nil
}

// AggregateParams runs server-side aggregates over the matching documents.
// Aggregates is the server's aggregate-spec syntax, passed through opaquely.
type AggregateParams struct {
	Type       string         `json:"type"`
	Query      map[string]any `json:"query,omitempty"`
	Aggregates map[string]any `json:"aggregates"`
}

// Aggregate returns the raw aggregate results keyed by aggregate name.
func (c *Client) Aggregate(ctx context.Context, params AggregateParams) (json.RawMessage, error) {
	result, err := c.rpc.Request(ctx, "aggregate", params, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("decode aggregate result: %w", err)
	}
	return wrapper.Results, nil
}

// Distinct returns the distinct values of field among matching documents.
func (c *Client) Distinct(ctx context.Context, typ, field string, query map[string]any) ([]json.RawMessage, error) {
	params := map[string]any{"type": typ, "field": field}
	if query != nil {
		params["query"] = query
	}
	result, err := c.rpc.Request(ctx, "distinct", params, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Values []json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("decode distinct result: %w", err)
	}
	return wrapper.Values, nil
}

// Export streams every document matching params. The result set is not
// bounded by Limit on the server side unless set; callers should drain or
// Close the returned stream.
func (c *Client) Export(ctx context.Context, params QueryParams) (*api.Stream, error) {
	return c.rpc.RequestStream(ctx, "export", params, nil)
}

// Put uploads one batch of documents of the given type and returns the
// server's accepted count.
func (c *Client) Put(ctx context.Context, typ string, docs []json.RawMessage) (int64, error) {
	params := map[string]any{"type": typ, "documents": docs}
	result, err := c.rpc.Request(ctx, "import", params, &api.RequestOptions{MaxRetries: 2})
	if err != nil {
		return 0, err
	}
	var wrapper struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return 0, fmt.Errorf("decode import result: %w", err)
	}
	return wrapper.Count, nil
}
