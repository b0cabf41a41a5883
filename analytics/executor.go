package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/meridianlabs/dealdesk/utils/pkg/dberror"
)

// DefaultTimeout is the wall-clock ceiling on statement execution.
const DefaultTimeout = 30 * time.Second

// Querier executes one parameterized statement against a physical store and
// returns the rows as column-keyed maps. Implementations must honor context
// cancellation so a timed-out statement is actually released, not orphaned.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
}

// PoolProvider resolves a store key to its connection pool. Selection is by
// static lookup on the source's store key, never by inspecting query text.
type PoolProvider interface {
	Pool(store string) (Querier, bool)
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Logger   *slog.Logger
	Registry *Registry
	Pools    PoolProvider
	MaxLimit int           // row-count ceiling, DefaultMaxLimit when zero
	Timeout  time.Duration // wall-clock ceiling, DefaultTimeout when zero
	Clock    clockwork.Clock
}

func (cfg *ExecutorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	if cfg.Pools == nil {
		return errors.New("pool provider is required")
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Executor compiles specs and runs them against the routed pool. It is
// stateless and reentrant: every call builds a fresh statement and parameter
// list, so concurrent use needs no locking here. Concurrency limits live in
// the pools themselves.
type Executor struct {
	log *slog.Logger
	cfg ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Executor{log: cfg.Logger, cfg: cfg}, nil
}

// Result is the caller-facing envelope. Every failure path returns a value;
// nothing escapes the executor as a raw store error.
type Result struct {
	Success         bool             `json:"success"`
	Data            []map[string]any `json:"data,omitempty"`
	RowCount        int              `json:"rowCount"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	Error           string           `json:"error,omitempty"`
	TimedOut        bool             `json:"timedOut,omitempty"`
	Query           QueryEcho        `json:"query"`
}

// QueryEcho is a redacted copy of the compiled statement for observability.
// Params describe each bound value's position; the echo is diagnostic only
// and must never be treated as re-executable input.
type QueryEcho struct {
	Source string   `json:"source"`
	SQL    string   `json:"sql,omitempty"`
	Params []string `json:"params,omitempty"`
}

// Execute compiles and runs a spec. All validation failures are returned
// before any pool is touched; store failures and timeouts are converted into
// the same envelope.
func (e *Executor) Execute(ctx context.Context, spec QuerySpec) Result {
	compiled, err := Compile(e.cfg.Registry, spec, e.cfg.MaxLimit)
	if err != nil {
		return Result{
			Error: err.Error(),
			Query: QueryEcho{Source: spec.Source},
		}
	}

	echo := QueryEcho{
		Source: compiled.Source,
		SQL:    redactSQL(compiled.SQL),
		Params: describeParams(compiled.Params),
	}

	pool, ok := e.cfg.Pools.Pool(compiled.Store)
	if !ok {
		e.log.Error("no pool for store", "store", compiled.Store, "source", compiled.Source)
		return Result{
			Error: fmt.Sprintf("store %q is not available", compiled.Store),
			Query: echo,
		}
	}

	// The timeout is enforced by cancelling the store call itself rather
	// than racing an independent timer, so the statement is released on
	// expiry instead of running orphaned.
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := e.cfg.Clock.Now()
	rows, err := pool.Query(ctx, compiled.SQL, compiled.Params...)
	elapsed := e.cfg.Clock.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || dberror.Classify(err) == dberror.ErrorTypeTimeout {
			e.log.Warn("report query timed out", "source", compiled.Source, "store", compiled.Store, "timeout", e.cfg.Timeout)
			return Result{
				Error:           fmt.Sprintf("query timed out after %s", e.cfg.Timeout),
				TimedOut:        true,
				ExecutionTimeMs: elapsed.Milliseconds(),
				Query:           echo,
			}
		}
		e.log.Error("report query failed", "source", compiled.Source, "store", compiled.Store, "error", err)
		return Result{
			Error:           err.Error(),
			ExecutionTimeMs: elapsed.Milliseconds(),
			Query:           echo,
		}
	}

	e.log.Debug("report query succeeded",
		"source", compiled.Source, "store", compiled.Store,
		"rows", len(rows), "elapsed", elapsed)

	return Result{
		Success:         true,
		Data:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: elapsed.Milliseconds(),
		Query:           echo,
	}
}

// redactSQL normalizes whitespace in the compiled statement for logging and
// echo purposes.
func redactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// describeParams renders each bound parameter as "$n: value".
func describeParams(params []any) []string {
	out := make([]string, len(params))
	for i, v := range params {
		out[i] = fmt.Sprintf("$%d: %v", i+1, v)
	}
	return out
}
