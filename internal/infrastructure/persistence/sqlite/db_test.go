package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/internal/testutil"
)

func newTxManager(t *testing.T) *DB {
	t.Helper()
	return NewDB(testutil.NewDB(t).DB, zap.NewNop())
}

func countProjects(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&n))
	return n
}

const insertProject = `INSERT INTO projects (code, name, workflow_type, wip_cap, created_at, updated_at)
	VALUES (?, ?, 'FP_3_LAYER', 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := newTxManager(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NotNil(t, ExtractTx(txCtx))
		_, err := Executor(txCtx, db.DB).ExecContext(txCtx, insertProject, "A", "A")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countProjects(t, db))

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := Executor(txCtx, db.DB).ExecContext(txCtx, insertProject, "B", "B"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countProjects(t, db), "rolled back")
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := newTxManager(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, ExtractTx(outer), ExtractTx(inner))
			_, err := Executor(inner, db.DB).ExecContext(inner, insertProject, "N", "N")
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countProjects(t, db))
}

func TestWithTransaction_UniqueViolationIsConflict(t *testing.T) {
	db := newTxManager(t)
	ctx := context.Background()

	insert := func(txCtx context.Context) error {
		_, err := Executor(txCtx, db.DB).ExecContext(txCtx, insertProject, "DUP", "DUP")
		return err
	}
	require.NoError(t, db.WithTransaction(ctx, insert))

	err := db.WithTransaction(ctx, insert)
	assert.ErrorIs(t, err, workflow.ErrConcurrencyConflict)
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	db := newTxManager(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(txCtx context.Context) error {
			_, _ = Executor(txCtx, db.DB).ExecContext(txCtx, insertProject, "P", "P")
			panic("claim exploded")
		})
	})
	assert.Zero(t, countProjects(t, db))
}

func TestTranslate(t *testing.T) {
	busy := fmt.Errorf("claim: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
	assert.ErrorIs(t, translate(busy), workflow.ErrConcurrencyConflict)

	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	assert.ErrorIs(t, translate(locked), workflow.ErrConcurrencyConflict)

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	err := translate(unique)
	assert.ErrorIs(t, err, workflow.ErrConcurrencyConflict)
	var sqlErr sqlite3.Error
	assert.True(t, errors.As(err, &sqlErr), "driver error stays reachable")

	foreignKey := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	assert.NotErrorIs(t, translate(foreignKey), workflow.ErrConcurrencyConflict)

	plain := errors.New("disk full")
	assert.Equal(t, plain, translate(plain))
}
