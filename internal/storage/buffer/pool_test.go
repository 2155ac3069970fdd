package buffer

import (
	"testing"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/file"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	dir := t.TempDir()
	fm, err := file.Open(dir, page.Size)
	if err != nil {
		t.Fatal(err)
	}
	lm, err := wal.Open(fm)
	if err != nil {
		t.Fatal(err)
	}
	return NewPool(size, fm, lm)
}

func TestPinUnpinSameBlock(t *testing.T) {
	p := newTestPool(t, 3)
	blk := blockid.New("t1", 0)

	b1, err := p.Pin(blk)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := p.Pin(blk)
	if err != nil {
		t.Fatal(err)
	}
	if b1 != b2 {
		t.Fatalf("expected pinning the same block twice to return the same buffer")
	}
	if got := b1.PinCount(); got != 2 {
		t.Fatalf("PinCount = %d, want 2", got)
	}
	p.Unpin(b1)
	p.Unpin(b2)
	if got := b1.PinCount(); got != 0 {
		t.Fatalf("PinCount after unpinning twice = %d, want 0", got)
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := newTestPool(t, 2)
	_, err := p.Pin(blockid.New("t1", 0))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Pin(blockid.New("t1", 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Pin(blockid.New("t1", 2)); err != ErrPoolExhausted {
		t.Fatalf("Pin on exhausted pool error = %v, want ErrPoolExhausted", err)
	}
}

func TestEvictionReusesUnpinnedFrame(t *testing.T) {
	p := newTestPool(t, 1)
	b, err := p.Pin(blockid.New("t1", 0))
	if err != nil {
		t.Fatal(err)
	}
	p.Unpin(b)

	b2, err := p.Pin(blockid.New("t1", 1))
	if err != nil {
		t.Fatalf("expected eviction to free the single frame: %v", err)
	}
	if got, _ := b2.Block(); got.Num != 1 {
		t.Fatalf("evicted buffer now holds block %v, want 1", got)
	}
}

func TestAvailableCount(t *testing.T) {
	p := newTestPool(t, 2)
	if got := p.Available(); got != 2 {
		t.Fatalf("Available() = %d, want 2", got)
	}
	b, err := p.Pin(blockid.New("t1", 0))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Available(); got != 1 {
		t.Fatalf("Available() after pin = %d, want 1", got)
	}
	p.Unpin(b)
	if got := p.Available(); got != 2 {
		t.Fatalf("Available() after unpin = %d, want 2", got)
	}
}
