package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/qdbcompat/internal/ingest"
	"github.com/roach88/qdbcompat/internal/poll"
	"github.com/roach88/qdbcompat/internal/qdb"
)

// withSender opens a protocol client session, runs fn, then flushes.
func withSender(ctx context.Context, env *Env, fn func(s ingest.Sender) error) error {
	sender, err := env.NewSender(ctx)
	if err != nil {
		return fmt.Errorf("open sender: %w", err)
	}
	defer sender.Close(ctx)

	if err := fn(sender); err != nil {
		return err
	}
	return sender.Flush(ctx)
}

// insertThreeRows writes three identical rows spanning every builder
// column type and expects them back in write order.
func insertThreeRows(ctx context.Context, env *Env) error {
	table := newTableName()
	err := withSender(ctx, env, func(s ingest.Sender) error {
		for i := 0; i < 3; i++ {
			err := s.Table(table).
				Symbol("name_a", "val_a").
				BoolColumn("name_b", true).
				Int64Column("name_c", 42).
				Float64Column("name_d", 2.5).
				StringColumn("name_e", "val_b").
				AtNow(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 3, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "name_a", Type: "SYMBOL"},
		{Name: "name_b", Type: "BOOLEAN"},
		{Name: "name_c", Type: "LONG"},
		{Name: "name_d", Type: "DOUBLE"},
		{Name: "name_e", Type: "STRING"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	row := []any{"val_a", true, float64(42), 2.5, "val_b"}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{row, row, row})
}

// repeatedSymbolAndColumnNames writes the same symbol and column name
// twice within one row; the first value of each wins.
func repeatedSymbolAndColumnNames(ctx context.Context, env *Env) error {
	table := newTableName()
	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).
			Symbol("a", "A").
			Symbol("a", "B").
			BoolColumn("b", false).
			StringColumn("b", "C").
			AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "a", Type: "SYMBOL"},
		{Name: "b", Type: "BOOLEAN"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{{"A", false}})
}

// sameSymbolAndColName writes a symbol and a string column under one
// name; only the symbol persists.
func sameSymbolAndColName(ctx context.Context, env *Env) error {
	table := newTableName()
	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).
			Symbol("a", "A").
			StringColumn("a", "B").
			AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "a", Type: "SYMBOL"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{{"A"}})
}

func singleSymbol(ctx context.Context, env *Env) error {
	table := newTableName()
	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).Symbol("a", "A").AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "a", Type: "SYMBOL"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{{"A"}})
}

func twoColumns(ctx context.Context, env *Env) error {
	table := newTableName()
	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).
			StringColumn("a", "A").
			StringColumn("b", "B").
			AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "a", Type: "STRING"},
		{Name: "b", Type: "STRING"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{{"A", "B"}})
}

// mismatchedTypesAcrossRows writes a SYMBOL, then in a second flush a
// STRING, for the same table and column. Only the first row's schema
// and data persist; the second write is silently dropped, so waiting
// for two rows must time out.
func mismatchedTypesAcrossRows(ctx context.Context, env *Env) error {
	table := newTableName()
	err := withSender(ctx, env, func(s ingest.Sender) error {
		if err := s.Table(table).Symbol("a", "A").AtNow(ctx); err != nil {
			return err
		}
		if err := s.Flush(ctx); err != nil {
			return err
		}
		return s.Table(table).StringColumn("a", "B").AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "a", Type: "SYMBOL"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	if err := ExpectRows(resp.ScrubTimestamp(), [][]any{{"A"}}); err != nil {
		return err
	}

	// The dropped row never becomes visible.
	_, err = env.AwaitTable(ctx, table, 2, time.Second)
	var te *poll.TimeoutError
	if !errors.As(err, &te) {
		return fmt.Errorf("dropped row became visible: expected timeout waiting for 2 rows, got %v", err)
	}
	return nil
}

// explicitTimestamp supplies a nanosecond designated timestamp and
// expects it back truncated to the server's microsecond resolution.
func explicitTimestamp(ctx context.Context, env *Env) error {
	table := newTableName()
	const atTsNs = int64(1647357688714369403)

	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).Symbol("a", "A").At(ctx, time.Unix(0, atTsNs))
	})
	if err != nil {
		return err
	}

	atStr := time.UnixMicro(atTsNs / 1000).UTC().Format("2006-01-02T15:04:05.000000Z")

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	return ExpectRows(resp.Dataset, [][]any{{"A", atStr}})
}

// underscores round-trips names made of underscores and alphanumerics.
func underscores(ctx context.Context, env *Env) error {
	table := "_" + newTableName() + "_"
	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).
			Symbol("_a_b_c_", "A").
			BoolColumn("_d_e_f_", true).
			AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: "_a_b_c_", Type: "SYMBOL"},
		{Name: "_d_e_f_", Type: "BOOLEAN"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{{"A", true}})
}

// funkyChars round-trips a multi-byte UTF-8 string as both column name
// and value.
func funkyChars(ctx context.Context, env *Env) error {
	table := newTableName()
	const smilie = "\U0001F601"

	err := withSender(ctx, env, func(s ingest.Sender) error {
		return s.Table(table).Symbol(smilie, smilie).AtNow(ctx)
	})
	if err != nil {
		return err
	}

	resp, err := env.AwaitTable(ctx, table, 1, 0)
	if err != nil {
		return err
	}
	if err := ExpectColumns(resp, []qdb.Column{
		{Name: smilie, Type: "SYMBOL"},
		{Name: "timestamp", Type: "TIMESTAMP"},
	}); err != nil {
		return err
	}
	return ExpectRows(resp.ScrubTimestamp(), [][]any{{smilie}})
}
