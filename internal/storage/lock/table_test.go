package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
)

func TestSLockSharedByMultiple(t *testing.T) {
	tbl := NewTable()
	blk := blockid.New("t1", 0)
	if err := tbl.SLock(blk); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SLock(blk); err != nil {
		t.Fatal(err)
	}
}

func TestXLockExcludesSLock(t *testing.T) {
	old := MaxWait
	MaxWait = 200 * time.Millisecond
	defer func() { MaxWait = old }()

	tbl := NewTable()
	blk := blockid.New("t1", 0)
	if err := tbl.XLock(blk); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SLock(blk); err == nil {
		t.Fatalf("expected SLock to time out while XLock is held")
	}
}

func TestUnlockAllowsSubsequentXLock(t *testing.T) {
	tbl := NewTable()
	blk := blockid.New("t1", 0)
	if err := tbl.SLock(blk); err != nil {
		t.Fatal(err)
	}
	tbl.Unlock(blk)
	if err := tbl.XLock(blk); err != nil {
		t.Fatal(err)
	}
}

func TestThreadedLocks(t *testing.T) {
	tbl := NewTable()
	b1 := blockid.New("t1", 1)
	b2 := blockid.New("t1", 2)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 2)

	go func() {
		defer wg.Done()
		if err := tbl.SLock(b1); err != nil {
			errs <- err
			return
		}
		time.Sleep(20 * time.Millisecond)
		if err := tbl.SLock(b2); err != nil {
			errs <- err
			return
		}
		tbl.Unlock(b1)
		tbl.Unlock(b2)
	}()

	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		if err := tbl.XLock(b2); err != nil {
			errs <- err
			return
		}
		time.Sleep(20 * time.Millisecond)
		tbl.Unlock(b2)
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestConcurrencyManagerUpgrade(t *testing.T) {
	tbl := NewTable()
	cm := NewManager(tbl)
	blk := blockid.New("t1", 0)

	if err := cm.SLock(blk); err != nil {
		t.Fatal(err)
	}
	if err := cm.XLock(blk); err != nil {
		t.Fatal(err)
	}
	cm.Release()

	// after release, a different manager should be able to take the lock
	cm2 := NewManager(tbl)
	if err := cm2.XLock(blk); err != nil {
		t.Fatal(err)
	}
	cm2.Release()
}

func TestConcurrencyManagerReleaseIsIdempotentPerBlock(t *testing.T) {
	tbl := NewTable()
	cm := NewManager(tbl)
	blk := blockid.New("t1", 0)
	if err := cm.SLock(blk); err != nil {
		t.Fatal(err)
	}
	if err := cm.SLock(blk); err != nil {
		t.Fatal(err)
	}
	cm.Release()
	if len(cm.held) != 0 {
		t.Fatalf("expected held map cleared after Release")
	}
}
