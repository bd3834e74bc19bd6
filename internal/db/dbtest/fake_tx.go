// Package dbtest provides an in-memory transaction manager for service tests
// whose repositories are fakes and never touch the executor.
package dbtest

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

var errNoSQL = errors.New("dbtest: fake transaction does not run SQL")

type TxManager struct {
	mu         sync.Mutex
	BeginErr   error
	CommitErr  error
	Isolation  []pgx.TxIsoLevel
	Begun      int
	Committed  int
	RolledBack int
}

func (m *TxManager) Begin(ctx context.Context, iso pgx.TxIsoLevel) (db.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	m.Begun++
	m.Isolation = append(m.Isolation, iso)
	return &Tx{mgr: m}, nil
}

type Tx struct {
	mgr      *TxManager
	closed   bool
	onCommit []func()
}

// AfterCommit registers fn to run when the transaction commits. Fakes use it
// to stage writes so a rollback leaves their state untouched.
func (t *Tx) AfterCommit(fn func()) {
	t.onCommit = append(t.onCommit, fn)
}

// Apply runs fn after q commits when q is a fake transaction, and right away
// otherwise.
func Apply(q db.Executor, fn func()) {
	if tx, ok := q.(*Tx); ok {
		tx.AfterCommit(fn)
		return
	}
	fn()
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Commit(ctx context.Context) error {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	if t.mgr.CommitErr != nil {
		t.closed = true
		t.mgr.RolledBack++
		return t.mgr.CommitErr
	}
	t.closed = true
	t.mgr.Committed++
	for _, fn := range t.onCommit {
		fn()
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.mgr.RolledBack++
	return nil
}

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }
