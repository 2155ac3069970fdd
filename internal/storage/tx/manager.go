// Package tx implements the transaction manager: it orchestrates the
// buffer pool, lock table, and recovery log into typed get/set
// primitives on block offsets, plus commit/rollback/recover.
package tx

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/SimonWaldherr/simpledb/internal/storage/buffer"
	"github.com/SimonWaldherr/simpledb/internal/storage/file"
	"github.com/SimonWaldherr/simpledb/internal/storage/lock"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

// Manager owns the resources shared by every transaction opened against
// one database directory: the file manager, log manager, buffer pool,
// and lock table, plus the process-wide monotonic counter that hands out
// tx numbers (SPEC_FULL.md §6.8 — not persisted, scoped to this Manager
// rather than truly process-global).
type Manager struct {
	fm    *file.Manager
	lm    *wal.Manager
	pool  *buffer.Pool
	table *lock.Table
	log   *slog.Logger

	nextTxNum int64
	activeTxs int64
}

// Config controls how a Manager's resources are sized.
type Config struct {
	PageSize int
	PoolSize int
	RootDir  string
	Logger   *slog.Logger
}

// Open constructs a Manager over cfg.RootDir, creating the buffer pool,
// lock table, and log manager. It does not run recovery; callers that
// need crash recovery should open a Transaction and call Recover.
func Open(cfg Config) (*Manager, error) {
	fm, err := file.Open(cfg.RootDir, cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("tx: open: %w", err)
	}
	lm, err := wal.Open(fm)
	if err != nil {
		return nil, fmt.Errorf("tx: open: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		fm:    fm,
		lm:    lm,
		pool:  buffer.NewPool(cfg.PoolSize, fm, lm),
		table: lock.NewTable(),
		log:   logger,
	}, nil
}

// BlockSize reports the page size every block in this manager's files
// has.
func (m *Manager) BlockSize() int { return m.fm.PageSize() }

// AvailableBuffers reports the buffer pool's unpinned-frame count.
func (m *Manager) AvailableBuffers() int { return m.pool.Available() }

// ActiveTxCount reports how many transactions opened through this
// Manager have not yet committed or rolled back.
func (m *Manager) ActiveTxCount() int64 { return atomic.LoadInt64(&m.activeTxs) }

// Close releases the manager's backing files.
func (m *Manager) Close() error { return m.fm.Close() }

func (m *Manager) nextTx() int64 { return atomic.AddInt64(&m.nextTxNum, 1) }

// Checkpoint flushes every dirty buffer and appends a fresh Checkpoint
// record, but only if no transaction is currently active — this is the
// quiescence guarantee SPEC_FULL.md §5 item 2 requires that spec.md's
// own recover() does not: a checkpoint written while a transaction is
// mid-operation would give recovery an unsafe cut point. Callers
// (typically a periodic scheduler) should treat ErrCheckpointNotQuiescent
// as "try again later", not as a failure.
func (m *Manager) Checkpoint() error {
	if atomic.LoadInt64(&m.activeTxs) != 0 {
		m.log.Info("checkpoint skipped: transactions still active")
		return ErrCheckpointNotQuiescent
	}
	if err := m.pool.FlushAllDirty(); err != nil {
		return fmt.Errorf("tx: checkpoint: %w", err)
	}
	lsn, err := m.lm.Append(wal.Encode(wal.Checkpoint()))
	if err != nil {
		return fmt.Errorf("tx: checkpoint: %w", err)
	}
	if err := m.lm.Flush(lsn); err != nil {
		return fmt.Errorf("tx: checkpoint: %w", err)
	}
	m.log.Info("checkpoint written")
	return nil
}

// InspectLog decodes every record currently in the log, most-recent
// first (the log snapshot's natural order), for operator diagnostics.
// A trailing corrupt record (from a crash mid-append) truncates the
// result rather than erroring.
func (m *Manager) InspectLog() ([]wal.Record, error) {
	it, err := m.lm.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("tx: inspect log: %w", err)
	}
	var records []wal.Record
	for {
		raw, ok, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("tx: inspect log: %w", err)
		}
		if !ok {
			return records, nil
		}
		rec, err := wal.Decode(raw)
		if err != nil {
			return records, nil
		}
		records = append(records, rec)
	}
}
