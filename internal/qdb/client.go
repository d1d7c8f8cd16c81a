// Package qdb talks to a running QuestDB instance's HTTP query
// endpoint and waits for ingested rows to become visible.
//
// The client issues single queries with no caching and no retry;
// retrying is the responsibility of WaitForTable, which wraps queries
// in a poll loop to absorb the consistency window between an ILP write
// returning and the row being queryable.
package qdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/roach88/qdbcompat/internal/poll"
)

// DefaultRequestTimeout bounds a single query round trip. Kept short:
// the endpoint is local and slow answers are handled by the poll loop.
const DefaultRequestTimeout = 200 * time.Millisecond

// Client issues SQL queries against one instance's /exec endpoint.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpc.Timeout = d
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a query client for the instance listening at addr
// (host:port of the HTTP server).
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: "http://" + addr,
		httpc:   &http.Client{Timeout: DefaultRequestTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// execPayload is the wire shape of /exec responses. A successful query
// carries columns and dataset; a failed one carries an error string.
type execPayload struct {
	Columns []Column `json:"columns"`
	Dataset [][]any  `json:"dataset"`
	Error   string   `json:"error"`
}

// Query runs one SQL statement and parses the response.
//
// Error taxonomy:
//   - *TransportError: connection failure or non-200 status
//   - *MalformedResponseError: 200 but undecodable payload
//   - *QueryError: 200 with a server-reported error field
func (c *Client) Query(ctx context.Context, sql string) (*Response, error) {
	u := c.baseURL + "/exec?" + url.Values{"query": {sql}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("query rejected", "sql", sql, "status", resp.StatusCode)
		return nil, &TransportError{Status: resp.StatusCode}
	}

	var payload execPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedResponseError{Payload: body, Err: err}
	}
	if payload.Error != "" {
		return nil, &QueryError{Message: payload.Error}
	}

	for i, row := range payload.Dataset {
		if len(row) != len(payload.Columns) {
			return nil, &MalformedResponseError{
				Payload: body,
				Err:     fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(payload.Columns)),
			}
		}
	}

	return &Response{Columns: payload.Columns, Dataset: payload.Dataset}, nil
}

// WaitForTable polls until table is visible with at least minRows rows,
// or timeout elapses.
//
// Ingestion is asynchronous relative to the ILP write returning, and
// the table may not exist at all immediately after a write. Both are
// transient: server query errors, transport errors and short datasets
// all map to "not yet". Only a malformed payload stops the wait early;
// otherwise the sole failure mode is *poll.TimeoutError.
func WaitForTable(ctx context.Context, c *Client, table string, minRows int, timeout time.Duration) (*Response, error) {
	probe := func() poll.Outcome[*Response] {
		resp, err := c.Query(ctx, fmt.Sprintf("select * from '%s'", table))
		switch {
		case IsMalformedResponse(err):
			return poll.Permanent[*Response](err)
		case err != nil:
			// Table not visible yet, or instance still starting.
			return poll.NotYet[*Response]()
		case len(resp.Dataset) < minRows:
			return poll.NotYet[*Response]()
		}
		return poll.Success(resp)
	}
	return poll.WaitFor(probe, timeout)
}
