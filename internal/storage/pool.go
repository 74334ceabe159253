package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/pressly/goose/v3"

	"github.com/swapshelf/swapshelf/internal/diag"
	"github.com/swapshelf/swapshelf/internal/observability"
)

//go:embed migrations/*.sql
var migrations embed.FS

// AnonymousID is the caller id stamped onto connections bound for requests
// with no resolved identity. No users row ever has this id (serial keys
// start at 1), so row-level security treats the session as owning nothing.
const AnonymousID int32 = 0

// bindStatement records the caller id as ambient session state on a single
// connection. Row-level security policies reference it via
// current_setting('app.current_user_id', true).
const bindStatement = `SELECT set_config('app.current_user_id', $1::text, false)`

// Options configures [Open].
type Options struct {
	// URL is the PostgreSQL connection string.
	URL string
	// MaxConns and MinConns bound the pool size when > 0.
	MaxConns int32
	MinConns int32
	// MaxConnLifetime recycles connections older than this when > 0.
	MaxConnLifetime time.Duration
	// AcquireTimeout caps how long [Pool.Bind] waits for a free connection.
	AcquireTimeout time.Duration
	// Migrate runs pending schema migrations during Open.
	Migrate bool
}

// PoolConn is the slice of [pgxpool.Conn] used by a leased [Conn]. It exists
// so binding and query logic can be exercised without a live database.
type PoolConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
	Hijack() *pgx.Conn
}

// Pool owns the database connection pool. It satisfies [Users] for identity
// lookups that happen before a request connection has been leased.
type Pool struct {
	pool           *pgxpool.Pool
	acquire        func(ctx context.Context) (PoolConn, error)
	acquireTimeout time.Duration
}

// Open parses opts.URL, builds the pool, verifies connectivity, and applies
// pending migrations when requested.
func Open(ctx context.Context, logger *slog.Logger, opts Options) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build database pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.Migrate {
		if err = migrate(ctx, logger, opts.URL); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Pool{
		pool: pool,
		acquire: func(ctx context.Context) (PoolConn, error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		acquireTimeout: opts.AcquireTimeout,
	}, nil
}

// migrate applies pending goose migrations over a short-lived database/sql
// handle, since goose does not speak the native pgx interface.
func migrate(ctx context.Context, logger *slog.Logger, url string) error {
	handle, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer func() { _ = handle.Close() }()

	goose.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, handle, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the pool and all idle connections.
func (p *Pool) Close() {
	p.pool.Close()
}

// GetUserByName satisfies [Users] using a pool-level query.
func (p *Pool) GetUserByName(ctx context.Context, name string) (User, error) {
	return getUserByName(ctx, p.pool, name)
}

// Stat exposes pool statistics for tests and metrics.
func (p *Pool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}

// Bind leases a connection and stamps it with the caller id before returning
// it. The stamp must be in effect before any catalog query runs on the
// connection, so the Exec here is never reordered or skipped. A connection
// whose stamping fails is destroyed rather than released, so a half-bound
// session can never re-enter the pool.
func (p *Pool) Bind(ctx context.Context, callerID int32) (*Conn, error) {
	acquireCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	start := time.Now()
	lease, err := p.acquire(acquireCtx)
	observability.PoolAcquireDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, diag.Wrap(err, "timed out waiting for a database connection").
				WithStatus(http.StatusServiceUnavailable)
		}
		return nil, diag.Wrap(err, "failed to get connection to database").
			WithStatus(http.StatusInternalServerError)
	}

	conn := NewConn(lease)
	if _, err := lease.Exec(ctx, bindStatement, callerID); err != nil {
		conn.Discard(ctx)
		observability.SessionBindFailuresTotal.Inc()
		return nil, diag.Wrap(err, "failed to set caller id on connection",
			"caller_id", callerID,
		).WithStatus(http.StatusInternalServerError)
	}
	return conn, nil
}

// Conn is a single leased, identity-stamped connection scoped to one
// request. It must be returned with [Conn.Release] (or [Conn.Discard] on
// bind failure) before the request completes.
type Conn struct {
	lease PoolConn
}

// NewConn wraps an already-leased connection. Callers outside this package
// normally obtain a Conn via [Pool.Bind]; this constructor exists for
// composing fakes in tests.
func NewConn(lease PoolConn) *Conn {
	return &Conn{lease: lease}
}

// Release returns the connection to the pool.
func (c *Conn) Release() {
	c.lease.Release()
}

// Discard destroys the underlying connection instead of returning it to the
// pool. Used when the session state on the connection can no longer be
// trusted.
func (c *Conn) Discard(ctx context.Context) {
	if raw := c.lease.Hijack(); raw != nil {
		_ = raw.Close(ctx)
	}
}
