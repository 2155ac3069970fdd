package wal

import (
	"testing"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
)

func TestRecordRoundTrip(t *testing.T) {
	blk := blockid.New("employee", 7)
	cases := []Record{
		Checkpoint(),
		Start(1),
		Commit(2),
		Rollback(3),
		SetInt(4, blk, 8, -123),
		SetString(5, blk, 16, "pre-image value"),
		SetString(6, blk, 16, ""),
	}
	for _, r := range cases {
		buf := Encode(r)
		got, err := Decode(buf)
		if err != nil {
			t.Fatalf("Decode(%v): %v", r, err)
		}
		if got != r {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
		}
	}
}

func TestDecodeTruncatedErrors(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error decoding empty buffer")
	}
	full := Encode(SetInt(1, blockid.New("f", 1), 0, 5))
	if _, err := Decode(full[:len(full)-1]); err == nil {
		t.Fatalf("expected error decoding truncated SetInt")
	}
}
