package config

import (
	"context"
	"fmt"
	"reflect"

	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianlabs/dealdesk/analytics"
)

// Physical store identifiers. These are the keys the source registry routes
// on; each maps to one connection pool.
const (
	StorePrimary = "primary"
	StoreEvents  = "events"
)

// Pools implements analytics.PoolProvider over the process-wide connections.
type Pools struct {
	queriers map[string]analytics.Querier
}

// NewPools builds the pool provider from the loaded global connections.
// Stores that were not loaded are simply absent, and the executor reports
// them as unavailable.
func NewPools() *Pools {
	p := &Pools{queriers: map[string]analytics.Querier{}}
	if PgPool != nil {
		p.queriers[StorePrimary] = &pgxQuerier{pool: PgPool}
	}
	if CHConn != nil {
		p.queriers[StoreEvents] = &clickhouseQuerier{conn: CHConn}
	}
	return p
}

func (p *Pools) Pool(store string) (analytics.Querier, bool) {
	q, ok := p.queriers[store]
	return q, ok
}

// pgxQuerier adapts a pgx pool to the executor's row-map contract.
type pgxQuerier struct {
	pool *pgxpool.Pool
}

func (q *pgxQuerier) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// clickhouseQuerier adapts a clickhouse-go connection to the executor's
// row-map contract. Destinations are allocated from the driver's reported
// scan types since report columns are only known at runtime.
type clickhouseQuerier struct {
	conn chdriver.Conn
}

func (q *clickhouseQuerier) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := rows.Columns()
	types := rows.ColumnTypes()
	out := []map[string]any{}
	for rows.Next() {
		dest := make([]any, len(cols))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = reflect.ValueOf(dest[i]).Elem().Interface()
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
