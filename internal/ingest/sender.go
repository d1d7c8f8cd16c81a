// Package ingest exposes the protocol client's builder interface.
//
// Scenarios assemble rows through Sender and never see the concrete
// wire client; the ILP encoding itself lives entirely in the
// questdb/go-questdb-client dependency.
package ingest

import (
	"context"
	"fmt"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
)

// Sender builds and submits rows over the ingestion endpoint.
//
// Builder methods return the receiver for chaining. A row is opened
// with Table, populated with symbols first and columns second, and
// closed with At or AtNow. Flush forces buffered rows onto the wire;
// Close releases the connection.
type Sender interface {
	Table(name string) Sender
	Symbol(name, value string) Sender
	StringColumn(name, value string) Sender
	BoolColumn(name string, value bool) Sender
	Int64Column(name string, value int64) Sender
	Float64Column(name string, value float64) Sender
	At(ctx context.Context, ts time.Time) error
	AtNow(ctx context.Context) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// ilpSender adapts the wire client to the Sender interface.
type ilpSender struct {
	inner qdb.LineSender
}

// Connect dials the ingestion endpoint at addr (host:port) over TCP.
func Connect(ctx context.Context, addr string) (Sender, error) {
	inner, err := qdb.NewLineSender(ctx, qdb.WithTcp(), qdb.WithAddress(addr))
	if err != nil {
		return nil, fmt.Errorf("connect to ingestion endpoint %s: %w", addr, err)
	}
	return &ilpSender{inner: inner}, nil
}

func (s *ilpSender) Table(name string) Sender {
	s.inner = s.inner.Table(name)
	return s
}

func (s *ilpSender) Symbol(name, value string) Sender {
	s.inner = s.inner.Symbol(name, value)
	return s
}

func (s *ilpSender) StringColumn(name, value string) Sender {
	s.inner = s.inner.StringColumn(name, value)
	return s
}

func (s *ilpSender) BoolColumn(name string, value bool) Sender {
	s.inner = s.inner.BoolColumn(name, value)
	return s
}

func (s *ilpSender) Int64Column(name string, value int64) Sender {
	s.inner = s.inner.Int64Column(name, value)
	return s
}

func (s *ilpSender) Float64Column(name string, value float64) Sender {
	s.inner = s.inner.Float64Column(name, value)
	return s
}

func (s *ilpSender) At(ctx context.Context, ts time.Time) error {
	return s.inner.At(ctx, ts)
}

func (s *ilpSender) AtNow(ctx context.Context) error {
	return s.inner.AtNow(ctx)
}

func (s *ilpSender) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

func (s *ilpSender) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}
