package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "mizan/pkg/domain-errors"
	txcontext "mizan/pkg/platform/tx"
)

// Tx serializes state-mutating work per key. "Check status, transition,
// append audit event" must be atomic as a unit; the key is the record (or
// user) the transition operates on, so unrelated records never contend.
type Tx interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// numShards distributes locks so concurrent transitions on different records
// rarely share a mutex.
const numShards = 128

// ShardedTx is the in-memory Tx: a mutex shard per key hash. It pairs with
// the in-memory stores, whose individual operations are already safe; the
// shard lock adds the read-modify-write atomicity on top.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx constructs an in-memory Tx.
func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := hashKey(key) % numShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// PostgresTx is the database-backed Tx. It opens a transaction and carries it
// in the context, so the record and audit stores route their statements
// through it.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx constructs a database-backed Tx.
func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db, timeout: defaultTxTimeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
