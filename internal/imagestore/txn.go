package imagestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lewtec/imagesprite/internal/domain"
)

// WriteTxn batches puts so that they become visible together on Commit, or
// not at all on Abort.
type WriteTxn struct {
	store *Store
	tx    *sql.Tx
	put   *sql.Stmt
	done  bool
}

var _ domain.ImageWriter = (*WriteTxn)(nil)

// Put stores value under key, replacing any previous value.
func (t *WriteTxn) Put(ctx context.Context, key string, value []byte) error {
	if t.done {
		return domain.ErrTxDone
	}
	if _, err := t.put.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("while writing key %s: %w", key, translateError(err))
	}
	return nil
}

// Commit makes every put of the transaction visible.
func (t *WriteTxn) Commit() error {
	if t.done {
		return domain.ErrTxDone
	}
	defer t.finish()
	t.put.Close()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("while committing write transaction: %w", translateError(err))
	}
	return nil
}

// Abort discards every put of the transaction.
func (t *WriteTxn) Abort() error {
	if t.done {
		return domain.ErrTxDone
	}
	defer t.finish()
	t.put.Close()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("while aborting write transaction: %w", err)
	}
	return nil
}

func (t *WriteTxn) finish() {
	t.done = true
	t.store.writeMu.Unlock()
}
