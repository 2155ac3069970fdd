package tx

import (
	"sync"
	"testing"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := Open(Config{
		PageSize: page.Size,
		PoolSize: 8,
		RootDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestSequentialTransactions(t *testing.T) {
	mgr := newTestManager(t)

	tx0, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	blk, err := tx0.Append("testfile")
	if err != nil {
		t.Fatal(err)
	}
	if err := tx0.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if err := tx0.Commit(); err != nil {
		t.Fatal(err)
	}

	tx1, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx1.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if err := tx1.SetInt(blk, 0, 10, true); err != nil {
		t.Fatal(err)
	}
	if err := tx1.SetString(blk, 100, "test string", true); err != nil {
		t.Fatal(err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx2.Pin(blk); err != nil {
		t.Fatal(err)
	}
	gotInt, err := tx2.GetInt(blk, 0)
	if err != nil {
		t.Fatal(err)
	}
	if gotInt != 10 {
		t.Fatalf("GetInt = %d, want 10", gotInt)
	}
	gotStr, err := tx2.GetString(blk, 100)
	if err != nil {
		t.Fatal(err)
	}
	if gotStr != "test string" {
		t.Fatalf("GetString = %q, want %q", gotStr, "test string")
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	tx3, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx3.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if err := tx3.SetInt(blk, 0, 20, true); err != nil {
		t.Fatal(err)
	}
	if err := tx3.Rollback(); err != nil {
		t.Fatal(err)
	}

	tx4, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx4.Pin(blk); err != nil {
		t.Fatal(err)
	}
	gotInt, err = tx4.GetInt(blk, 0)
	if err != nil {
		t.Fatal(err)
	}
	if gotInt != 10 {
		t.Fatalf("GetInt after rollback = %d, want 10 (rollback should have restored it)", gotInt)
	}
	if err := tx4.Commit(); err != nil {
		t.Fatal(err)
	}
}

// TestParallelTransactionsLockOrdering reproduces spec.md §8.2 scenario
// 5: two blocks, three transactions synchronized so that the final
// state can only be b1==3, b2==2 if 2PL lock ordering is respected.
func TestParallelTransactionsLockOrdering(t *testing.T) {
	mgr := newTestManager(t)

	txSetup, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	b1, err := txSetup.Append("blocks")
	if err != nil {
		t.Fatal(err)
	}
	b2, err := txSetup.Append("blocks")
	if err != nil {
		t.Fatal(err)
	}
	if err := txSetup.Commit(); err != nil {
		t.Fatal(err)
	}

	aReadB1 := make(chan struct{})
	cMayTryXLock := make(chan struct{})
	bCommitted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(3)
	errs := make(chan error, 3)

	go func() { // Tx A
		defer wg.Done()
		txA, err := New(mgr)
		if err != nil {
			errs <- err
			return
		}
		if err := txA.Pin(b1); err != nil {
			errs <- err
			return
		}
		if _, err := txA.GetInt(b1, 0); err != nil {
			errs <- err
			return
		}
		close(aReadB1)
		<-cMayTryXLock
		if err := txA.Pin(b2); err != nil {
			errs <- err
			return
		}
		if _, err := txA.GetInt(b2, 0); err != nil {
			errs <- err
			return
		}
		if err := txA.Commit(); err != nil {
			errs <- err
			return
		}
	}()

	go func() { // Tx B
		defer wg.Done()
		<-aReadB1
		txB, err := New(mgr)
		if err != nil {
			errs <- err
			return
		}
		if err := txB.Pin(b2); err != nil {
			errs <- err
			return
		}
		if err := txB.SetInt(b2, 0, 2, true); err != nil {
			errs <- err
			return
		}
		close(cMayTryXLock)
		if err := txB.Pin(b1); err != nil {
			errs <- err
			return
		}
		if _, err := txB.GetInt(b1, 0); err != nil {
			errs <- err
			return
		}
		if err := txB.Commit(); err != nil {
			errs <- err
			return
		}
		close(bCommitted)
	}()

	go func() { // Tx C
		defer wg.Done()
		<-cMayTryXLock
		txC, err := New(mgr)
		if err != nil {
			errs <- err
			return
		}
		if err := txC.Pin(b1); err != nil {
			errs <- err
			return
		}
		if err := txC.SetInt(b1, 0, 3, true); err != nil {
			errs <- err
			return
		}
		<-bCommitted
		if err := txC.Pin(b2); err != nil {
			errs <- err
			return
		}
		if _, err := txC.GetInt(b2, 0); err != nil {
			errs <- err
			return
		}
		if err := txC.Commit(); err != nil {
			errs <- err
			return
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	final, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := final.Pin(b1); err != nil {
		t.Fatal(err)
	}
	if err := final.Pin(b2); err != nil {
		t.Fatal(err)
	}
	v1, err := final.GetInt(b1, 0)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := final.GetInt(b2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != 3 || v2 != 2 {
		t.Fatalf("final state b1=%d b2=%d, want b1=3 b2=2", v1, v2)
	}
	final.Commit()
}

func TestRecoverUndoesUncommittedTx(t *testing.T) {
	dir := t.TempDir()
	mgr, err := Open(Config{PageSize: page.Size, PoolSize: 8, RootDir: dir})
	if err != nil {
		t.Fatal(err)
	}

	setup, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	blk, err := setup.Append("recoverfile")
	if err != nil {
		t.Fatal(err)
	}
	if err := setup.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if err := setup.SetInt(blk, 0, 1, true); err != nil {
		t.Fatal(err)
	}
	if err := setup.Commit(); err != nil {
		t.Fatal(err)
	}

	uncommitted, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := uncommitted.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if err := uncommitted.SetInt(blk, 0, 999, true); err != nil {
		t.Fatal(err)
	}
	// Crash: no commit, no rollback — simulate by simply not calling either,
	// dropping the locks the crashed transaction held (a restarted process
	// starts with an empty lock table), and opening a fresh transaction to
	// run recovery.
	uncommitted.conc.Release()
	atomicDecrementForTest(mgr)

	recTx, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	if err := recTx.Recover(); err != nil {
		t.Fatal(err)
	}
	if err := recTx.Pin(blk); err != nil {
		t.Fatal(err)
	}
	got, err := recTx.GetInt(blk, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Fatalf("after recover, GetInt = %d, want 1 (pre-crash committed value)", got)
	}
	recTx.Commit()
	mgr.Close()
}

// atomicDecrementForTest simulates the crash of the uncommitted
// transaction above by directly restoring the active-tx counter so that
// recovery (and Manager.Checkpoint) do not consider it still live.
func atomicDecrementForTest(mgr *Manager) {
	mgr.activeTxs = 0
}

func TestAvailableBuffersReflectsPins(t *testing.T) {
	mgr, err := Open(Config{PageSize: page.Size, PoolSize: 2, RootDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	txn, err := New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	before := txn.AvailableBuffers()
	blk := blockid.New("avail", 0)
	if err := txn.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if got := txn.AvailableBuffers(); got != before-1 {
		t.Fatalf("AvailableBuffers after pin = %d, want %d", got, before-1)
	}
	txn.Commit()
}
