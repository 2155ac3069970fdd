package engine

import "testing"

func TestOpenSessionCommitAndCheckpoint(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.CheckpointSchedule = "" // driven manually in this test

	e, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	sess, err := e.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	blk, err := sess.Append("widgets")
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Pin(blk); err != nil {
		t.Fatal(err)
	}
	if err := sess.SetInt(blk, 0, 7, true); err != nil {
		t.Fatal(err)
	}
	if err := sess.Commit(); err != nil {
		t.Fatal(err)
	}

	if stats := e.Stats(); stats.OpenSessions != 0 {
		t.Fatalf("OpenSessions after commit = %d, want 0", stats.OpenSessions)
	}

	if err := e.Checkpoint(); err != nil {
		t.Fatalf("checkpoint with no active tx should succeed: %v", err)
	}
}

func TestCheckpointDeferredWhileSessionActive(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.CheckpointSchedule = ""

	e, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	sess, err := e.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Commit()

	if err := e.Checkpoint(); err == nil {
		t.Fatal("expected checkpoint to be deferred while a session is active")
	}
}
