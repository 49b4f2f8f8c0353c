package utils

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresPoolConfig controls database/sql pool behavior.
// Keep it config-driven; defaults should be safe and conservative.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

func (c PostgresPoolConfig) withDefaults() PostgresPoolConfig {
	out := c
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 20
	}
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = 2
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	return out
}

// OpenPostgres opens a Postgres connection using database/sql.
// driverName should typically be "pgx" (pgx stdlib).
// dsn must not be logged; it contains secrets.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := HealthCheck(ctx, db, pool.PingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// HealthCheck pings the DB with a timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// TxConfig bounds a transaction: MaxWait caps how long we queue for a
// connection before giving up, Timeout caps how long the work inside the
// transaction may run before it is aborted.
type TxConfig struct {
	MaxWait   time.Duration
	Timeout   time.Duration
	Isolation sql.IsolationLevel
}

func (c TxConfig) withDefaults() TxConfig {
	out := c
	if out.MaxWait <= 0 {
		out.MaxWait = 5 * time.Second
	}
	if out.Timeout <= 0 {
		// The webhook sender calls synchronously under its own deadline,
		// so the transaction window must stay generous but bounded.
		out.Timeout = 10 * time.Second
	}
	if out.Isolation == sql.LevelDefault {
		out.Isolation = sql.LevelReadCommitted
	}
	return out
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx runs fn inside a transaction bounded by cfg.
// - If fn returns error: tx is rolled back and the error is returned.
// - If fn panics: tx is rolled back and the panic is re-thrown.
// - If commit fails: commit error is returned.
func WithTx(ctx context.Context, db *sql.DB, cfg TxConfig, fn TxFunc) (err error) {
	cfg = cfg.withDefaults()

	// database/sql holds the BeginTx context until commit or rollback, so
	// the MaxWait bound must apply only to connection acquisition; the
	// transaction itself runs under the Timeout-bounded context.
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, cfg.MaxWait)
	defer cancelAcquire()

	conn, err := db.Conn(acquireCtx)
	if err != nil {
		return err
	}
	defer conn.Close()

	txCtx, cancelTx := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelTx()

	tx, err := conn.BeginTx(txCtx, &sql.TxOptions{Isolation: cfg.Isolation})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(txCtx, tx)
	return err
}
