package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each document command owns its flag storage; setting a flag on one must
// never bleed into another.
func TestDocCommandsHaveIndependentFlags(t *testing.T) {
	query := newQueryCmd()
	export := newExportCmd()

	require.NoError(t, query.Flags().Set("type", "customers"))
	require.NoError(t, query.Flags().Set("fields", "name,city"))
	require.NoError(t, export.Flags().Set("type", "orders"))
	require.NoError(t, export.Flags().Set("fields", "total"))

	queryType, err := query.Flags().GetString("type")
	require.NoError(t, err)
	exportType, err := export.Flags().GetString("type")
	require.NoError(t, err)
	assert.Equal(t, "customers", queryType)
	assert.Equal(t, "orders", exportType)

	queryFields, err := query.Flags().GetStringSlice("fields")
	require.NoError(t, err)
	exportFields, err := export.Flags().GetStringSlice("fields")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, queryFields)
	assert.Equal(t, []string{"total"}, exportFields)
}

func TestParseQuery(t *testing.T) {
	f := queryFlags{query: `{"city":"Cincinnati"}`}
	q, err := f.parseQuery()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Cincinnati"}, q)

	f = queryFlags{}
	q, err = f.parseQuery()
	require.NoError(t, err)
	assert.Nil(t, q)

	f = queryFlags{query: `{`}
	_, err = f.parseQuery()
	assert.ErrorContains(t, err, "parse --query")
}
