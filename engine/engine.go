// Package engine wires the storage core (blockid, page, file, wal,
// buffer, lock, tx, record, btree) into one opened database directory,
// adding session identity and a periodic checkpoint scheduler on top.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/SimonWaldherr/simpledb/internal/storage/tx"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

// Engine owns one opened database directory: the transaction manager,
// plus a background checkpoint scheduler and a registry of live
// sessions.
type Engine struct {
	mgr  *tx.Manager
	log  *slog.Logger
	cron *cron.Cron

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// Open opens cfg.RootDir (creating its data/log files if absent), runs
// crash recovery, and starts the checkpoint scheduler.
func Open(cfg Config) (*Engine, error) {
	logger := slog.Default()
	mgr, err := tx.Open(tx.Config{
		PageSize: cfg.PageSize,
		PoolSize: cfg.PoolSize,
		RootDir:  cfg.RootDir,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open: %w", err)
	}

	recoverTx, err := tx.New(mgr)
	if err != nil {
		return nil, fmt.Errorf("engine: recovery: %w", err)
	}
	if err := recoverTx.Recover(); err != nil {
		return nil, fmt.Errorf("engine: recovery: %w", err)
	}
	if err := recoverTx.Commit(); err != nil {
		return nil, fmt.Errorf("engine: recovery: %w", err)
	}

	e := &Engine{
		mgr:      mgr,
		log:      logger,
		cron:     cron.New(),
		sessions: make(map[uuid.UUID]*Session),
	}

	if cfg.CheckpointSchedule != "" {
		_, err := e.cron.AddFunc(cfg.CheckpointSchedule, e.runScheduledCheckpoint)
		if err != nil {
			return nil, fmt.Errorf("engine: invalid checkpoint schedule %q: %w", cfg.CheckpointSchedule, err)
		}
	}
	e.cron.Start()

	return e, nil
}

func (e *Engine) runScheduledCheckpoint() {
	if err := e.mgr.Checkpoint(); err != nil {
		e.log.Info("scheduled checkpoint deferred", "err", err)
	}
}

// Checkpoint runs an immediate checkpoint attempt, outside the cron
// schedule (e.g. for an operator-triggered admin command).
func (e *Engine) Checkpoint() error {
	return e.mgr.Checkpoint()
}

// InspectLog returns every record currently in the recovery log, for
// the simpledbctl inspect-log subcommand.
func (e *Engine) InspectLog() ([]wal.Record, error) {
	return e.mgr.InspectLog()
}

// Stats summarizes the engine's live state for operator inspection.
type Stats struct {
	ActiveTransactions int64
	AvailableBuffers   int
	OpenSessions       int
}

// Stats reports a point-in-time snapshot.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	n := len(e.sessions)
	e.mu.Unlock()
	return Stats{
		ActiveTransactions: e.mgr.ActiveTxCount(),
		AvailableBuffers:   e.mgr.AvailableBuffers(),
		OpenSessions:       n,
	}
}

// Session is one client connection's transaction scope, identified by a
// process-unique session id independent of the underlying tx_num. A
// Session wraps exactly one transaction and is deregistered when that
// transaction commits or rolls back.
type Session struct {
	ID uuid.UUID
	*tx.Transaction
	engine *Engine
}

// NewSession begins a transaction and wraps it with a session id.
func (e *Engine) NewSession() (*Session, error) {
	txn, err := tx.New(e.mgr)
	if err != nil {
		return nil, fmt.Errorf("engine: new session: %w", err)
	}
	s := &Session{ID: uuid.New(), Transaction: txn, engine: e}
	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()
	e.log.Debug("session opened", "session", s.ID, "tx", txn.TxNum())
	return s, nil
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	delete(e.sessions, s.ID)
	e.mu.Unlock()
}

// Commit commits the session's transaction and deregisters the session.
func (s *Session) Commit() error {
	err := s.Transaction.Commit()
	s.engine.forget(s)
	return err
}

// Rollback rolls back the session's transaction and deregisters the
// session.
func (s *Session) Rollback() error {
	err := s.Transaction.Rollback()
	s.engine.forget(s)
	return err
}

// Close stops the checkpoint scheduler and releases the underlying
// files. It does not wait for open sessions to finish.
func (e *Engine) Close() error {
	ctx := e.cron.Stop()
	<-ctx.Done()
	return e.mgr.Close()
}
