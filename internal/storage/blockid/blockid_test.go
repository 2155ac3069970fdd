package blockid

import "testing"

func TestPreviousAtZero(t *testing.T) {
	b := New("t1", 0)
	if _, ok := b.Previous(); ok {
		t.Fatalf("Previous() of block 0 should not exist")
	}
}

func TestPreviousNext(t *testing.T) {
	b := New("t1", 5)
	prev, ok := b.Previous()
	if !ok || prev.Num != 4 || prev.FileID != "t1" {
		t.Fatalf("Previous() = %v, %v", prev, ok)
	}
	next := b.Next()
	if next.Num != 6 || next.FileID != "t1" {
		t.Fatalf("Next() = %v", next)
	}
}

func TestEquality(t *testing.T) {
	a := New("t1", 3)
	b := New("t1", 3)
	c := New("t2", 3)
	if a != b {
		t.Fatalf("expected %v == %v", a, b)
	}
	if a == c {
		t.Fatalf("expected %v != %v", a, c)
	}
	m := map[BlockID]int{a: 1}
	if _, ok := m[b]; !ok {
		t.Fatalf("expected BlockID usable as map key across equal values")
	}
}

func TestString(t *testing.T) {
	b := New("employee", 7)
	if got, want := b.String(), "[employee/7]"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestEOFSentinel(t *testing.T) {
	b := EOF("employee")
	if b.Num != EndOfFile {
		t.Fatalf("EOF block number = %d, want sentinel", b.Num)
	}
}
