package qdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(strings.TrimPrefix(srv.URL, "http://"))
}

func TestQuery_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exec", r.URL.Path)
		assert.Equal(t, "select * from 'trades'", r.URL.Query().Get("query"))
		w.Write([]byte(`{
			"query": "select * from 'trades'",
			"columns": [
				{"name": "a", "type": "SYMBOL"},
				{"name": "timestamp", "type": "TIMESTAMP"}
			],
			"dataset": [["A", "2022-03-15T15:21:28.714369Z"]],
			"count": 1
		}`))
	})

	resp, err := client.Query(context.Background(), "select * from 'trades'")
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "a", Type: "SYMBOL"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}, resp.Columns)
	require.Len(t, resp.Dataset, 1)
	assert.Equal(t, "A", resp.Dataset[0][0])
}

func TestQuery_ParsedResponseGolden(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"columns": [
				{"name": "name_a", "type": "SYMBOL"},
				{"name": "timestamp", "type": "TIMESTAMP"}
			],
			"dataset": [["A", "2022-03-15T15:21:28.714369Z"]]
		}`))
	})

	resp, err := client.Query(context.Background(), "select * from 'trades'")
	require.NoError(t, err)

	parsed, err := json.MarshalIndent(resp, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "parsed_response", parsed)
}

func TestQuery_ServerReportedError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query": "select * from 'missing'", "error": "table does not exist [name=missing]", "position": 14}`))
	})

	_, err := client.Query(context.Background(), "select * from 'missing'")
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
	assert.Contains(t, err.Error(), "table does not exist")
}

func TestQuery_NonOKStatusIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Query(context.Background(), "select 1")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "500")
}

func TestQuery_ConnectionRefusedIsTransportError(t *testing.T) {
	// Grab an address with no listener behind it.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	client := NewClient(addr)
	_, err := client.Query(context.Background(), "select 1")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestQuery_MalformedPayloadIncludesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.Query(context.Background(), "select 1")
	require.Error(t, err)
	assert.True(t, IsMalformedResponse(err))
	// Raw payload must be quoted in the message for diagnosability.
	assert.Contains(t, err.Error(), "not json")
}

func TestQuery_RowArityMismatchIsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"columns": [{"name": "a", "type": "SYMBOL"}],
			"dataset": [["A", "extra"]]
		}`))
	})

	_, err := client.Query(context.Background(), "select 1")
	require.Error(t, err)
	assert.True(t, IsMalformedResponse(err))
}

func TestScrubTimestamp(t *testing.T) {
	resp := &Response{
		Columns: []Column{
			{Name: "a", Type: "SYMBOL"},
			{Name: "timestamp", Type: "TIMESTAMP"},
		},
		Dataset: [][]any{
			{"A", "2022-03-15T15:21:28.714369Z"},
			{"B", "2022-03-15T15:21:29.714369Z"},
		},
	}

	assert.Equal(t, [][]any{{"A"}, {"B"}}, resp.ScrubTimestamp())
}
