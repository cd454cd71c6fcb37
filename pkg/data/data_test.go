package data_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipscene/zipscene-api-client/pkg/api"
	"github.com/zipscene/zipscene-api-client/pkg/data"
)

// stub answers each JSON-RPC method with a canned result and records the
// params it saw. The export method streams NDJSON instead.
type stub struct {
	*httptest.Server

	mu     sync.Mutex
	params map[string]json.RawMessage
	result map[string]string
}

func newStub(t *testing.T) *stub {
	t.Helper()
	s := &stub{
		params: make(map[string]json.RawMessage),
		result: make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			ID     int64           `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))

		s.mu.Lock()
		s.params[env.Method] = env.Params
		result := s.result[env.Method]
		s.mu.Unlock()

		if env.Method == "export" {
			fmt.Fprintln(w, `{"name":"a"}`)
			fmt.Fprintln(w, `{"name":"b"}`)
			fmt.Fprintln(w, `{"success":true}`)
			return
		}
		fmt.Fprintf(w, `{"result":%s,"id":%d}`, result, env.ID)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stub) seen(t *testing.T, method string) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.params[method]
	require.True(t, ok, "no %s call recorded", method)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func newClient(t *testing.T, url string) *data.Client {
	t.Helper()
	rpc, err := api.New(url, api.WithAccessToken("TOK"))
	require.NoError(t, err)
	return data.New(rpc)
}

func TestQuery(t *testing.T) {
	srv := newStub(t)
	srv.result["query"] = `{"results":[{"name":"a"},{"name":"b"}]}`
	c := newClient(t, srv.URL)

	docs, err := c.Query(context.Background(), data.QueryParams{
		Type:  "customers",
		Query: map[string]any{"city": "Cincinnati"},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{"name":"a"}`, string(docs[0]))

	params := srv.seen(t, "query")
	assert.Equal(t, "customers", params["type"])
	assert.Equal(t, float64(10), params["limit"])
}

func TestCount(t *testing.T) {
	srv := newStub(t)
	srv.result["count"] = `{"count":412}`
	c := newClient(t, srv.URL)

	n, err := c.Count(context.Background(), data.QueryParams{Type: "customers"})
	require.NoError(t, err)
	assert.Equal(t, int64(412), n)
}

func TestAggregate(t *testing.T) {
	srv := newStub(t)
	srv.result["aggregate"] = `{"results":{"byCity":[{"key":"Cincinnati","count":3}]}}`
	c := newClient(t, srv.URL)

	result, err := c.Aggregate(context.Background(), data.AggregateParams{
		Type:       "customers",
		Aggregates: map[string]any{"byCity": map[string]any{"groupBy": "city"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"byCity":[{"key":"Cincinnati","count":3}]}`, string(result))

	params := srv.seen(t, "aggregate")
	assert.Contains(t, params["aggregates"], "byCity")
}

func TestDistinct(t *testing.T) {
	srv := newStub(t)
	srv.result["distinct"] = `{"values":["Cincinnati","Dayton"]}`
	c := newClient(t, srv.URL)

	values, err := c.Distinct(context.Background(), "customers", "city", nil)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, `"Cincinnati"`, string(values[0]))

	params := srv.seen(t, "distinct")
	assert.Equal(t, "city", params["field"])
}

func TestExport(t *testing.T) {
	srv := newStub(t)
	c := newClient(t, srv.URL)

	stream, err := c.Export(context.Background(), data.QueryParams{Type: "customers"})
	require.NoError(t, err)
	defer stream.Close()

	docs, err := stream.Collect()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{"name":"b"}`, string(docs[1]))
}

func TestPut(t *testing.T) {
	srv := newStub(t)
	srv.result["import"] = `{"count":2}`
	c := newClient(t, srv.URL)

	n, err := c.Put(context.Background(), "customers", []json.RawMessage{
		json.RawMessage(`{"name":"a"}`),
		json.RawMessage(`{"name":"b"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	params := srv.seen(t, "import")
	assert.Equal(t, "customers", params["type"])
	assert.Len(t, params["documents"], 2)
}
