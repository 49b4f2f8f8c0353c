package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// Minimal transactional driver so WithTx behavior can be exercised without a
// running Postgres.
type stubTxCounters struct {
	commits   atomic.Int32
	rollbacks atomic.Int32
}

var txCounters stubTxCounters

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return &stubConn{}, nil }

type stubConn struct{}

func (*stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (*stubConn) Close() error                        { return nil }
func (*stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

func (*stubConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { txCounters.commits.Add(1); return nil }
func (stubTx) Rollback() error { txCounters.rollbacks.Add(1); return nil }

func init() { sql.Register("stubtx", stubDriver{}) }

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	txCounters.commits.Store(0)
	txCounters.rollbacks.Store(0)
	db, err := sql.Open("stubtx", "")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTxConfigDefaults(t *testing.T) {
	cfg := TxConfig{}.withDefaults()
	if cfg.MaxWait != 5*time.Second {
		t.Fatalf("expected 5s max wait, got %v", cfg.MaxWait)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", cfg.Timeout)
	}
	if cfg.Isolation != sql.LevelReadCommitted {
		t.Fatalf("expected read committed, got %v", cfg.Isolation)
	}
}

func TestTxConfigExplicitValuesKept(t *testing.T) {
	cfg := TxConfig{MaxWait: time.Second, Timeout: 2 * time.Second, Isolation: sql.LevelSerializable}.withDefaults()
	if cfg.MaxWait != time.Second || cfg.Timeout != 2*time.Second || cfg.Isolation != sql.LevelSerializable {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestWithTx_CommitsWorkLongerThanMaxWait(t *testing.T) {
	db := openStubDB(t)

	cfg := TxConfig{MaxWait: 50 * time.Millisecond, Timeout: 2 * time.Second}
	err := WithTx(context.Background(), db, cfg, func(ctx context.Context, tx *sql.Tx) error {
		time.Sleep(150 * time.Millisecond)
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("work inside the timeout must commit even past the acquire window, got %v", err)
	}
	if c, r := txCounters.commits.Load(), txCounters.rollbacks.Load(); c != 1 || r != 0 {
		t.Fatalf("commits=%d rollbacks=%d, want 1/0", c, r)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openStubDB(t)

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, TxConfig{}, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if c, r := txCounters.commits.Load(), txCounters.rollbacks.Load(); c != 0 || r != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 0/1", c, r)
	}
}

func TestWithTx_TimeoutBoundsWork(t *testing.T) {
	db := openStubDB(t)

	cfg := TxConfig{MaxWait: time.Second, Timeout: 50 * time.Millisecond}
	err := WithTx(context.Background(), db, cfg, func(ctx context.Context, tx *sql.Tx) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if c := txCounters.commits.Load(); c != 0 {
		t.Fatalf("timed-out work must not commit, commits=%d", c)
	}
}
