// Command simpledbctl is the operator CLI for a simpledb database
// directory: open/initialize it, force a checkpoint, inspect the
// recovery log, or serve a remote administration endpoint.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/SimonWaldherr/simpledb/cmd/simpledbctl/adminpb"
	"github.com/SimonWaldherr/simpledb/engine"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "open":
		err = runOpen(os.Args[2:])
	case "checkpoint":
		err = runCheckpoint(os.Args[2:])
	case "inspect-log":
		err = runInspectLog(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "simpledbctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: simpledbctl <open|checkpoint|inspect-log|serve> [flags]")
}

func commonFlags(fs *flag.FlagSet) (dir *string, pageSize, poolSize *int) {
	dir = fs.String("dir", "", "database root directory (required)")
	pageSize = fs.Int("page-size", 4096, "page size in bytes")
	poolSize = fs.Int("pool-size", 64, "buffer pool frame count")
	return
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	dir, pageSize, poolSize := commonFlags(fs)
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("open: -dir is required")
	}
	cfg := engine.DefaultConfig(*dir)
	cfg.PageSize = *pageSize
	cfg.PoolSize = *poolSize
	cfg.CheckpointSchedule = "" // one-shot open/close, no scheduler needed
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	slog.Info("database opened and recovered", "dir", *dir)
	return nil
}

func runCheckpoint(args []string) error {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	dir, pageSize, poolSize := commonFlags(fs)
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("checkpoint: -dir is required")
	}
	cfg := engine.DefaultConfig(*dir)
	cfg.PageSize = *pageSize
	cfg.PoolSize = *poolSize
	cfg.CheckpointSchedule = ""
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.Checkpoint(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	fmt.Println("checkpoint written")
	return nil
}

func runInspectLog(args []string) error {
	fs := flag.NewFlagSet("inspect-log", flag.ExitOnError)
	dir, pageSize, poolSize := commonFlags(fs)
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("inspect-log: -dir is required")
	}
	cfg := engine.DefaultConfig(*dir)
	cfg.PageSize = *pageSize
	cfg.PoolSize = *poolSize
	cfg.CheckpointSchedule = ""
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	records, err := e.InspectLog()
	if err != nil {
		return fmt.Errorf("inspect-log: %w", err)
	}
	for i, r := range records {
		fmt.Printf("%d: %s\n", i, describeRecord(r))
	}
	return nil
}

func describeRecord(r wal.Record) string {
	switch r.Type {
	case wal.TypeCheckpoint:
		return "Checkpoint"
	case wal.TypeStart:
		return fmt.Sprintf("Start{tx=%d}", r.TxNum)
	case wal.TypeCommit:
		return fmt.Sprintf("Commit{tx=%d}", r.TxNum)
	case wal.TypeRollback:
		return fmt.Sprintf("Rollback{tx=%d}", r.TxNum)
	case wal.TypeSetInt:
		return fmt.Sprintf("SetInt{tx=%d, block=%s, offset=%d, old=%d}", r.TxNum, r.Block, r.Offset, r.OldInt)
	case wal.TypeSetString:
		return fmt.Sprintf("SetString{tx=%d, block=%s, offset=%d, old=%q}", r.TxNum, r.Block, r.Offset, r.OldString)
	default:
		return "Unknown"
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dir, pageSize, poolSize := commonFlags(fs)
	addr := fs.String("addr", ":7070", "gRPC listen address")
	schedule := fs.String("checkpoint-schedule", "@every 1m", "robfig/cron schedule for automatic checkpoints")
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("serve: -dir is required")
	}

	cfg := engine.DefaultConfig(*dir)
	cfg.PageSize = *pageSize
	cfg.PoolSize = *poolSize
	cfg.CheckpointSchedule = *schedule
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("serve: listen: %w", err)
	}
	srv := grpc.NewServer()
	adminpb.RegisterStorageAdminServer(srv, &adminServer{eng: e})

	slog.Info("storage admin service listening", "addr", *addr)
	return srv.Serve(lis)
}
