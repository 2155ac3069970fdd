package main

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SimonWaldherr/simpledb/engine"
)

// adminServer implements adminpb.StorageAdminServer over a live engine.
type adminServer struct {
	eng *engine.Engine
}

func (a *adminServer) Checkpoint(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if err := a.eng.Checkpoint(); err != nil {
		return wrapperspb.String(fmt.Sprintf("checkpoint deferred: %v", err)), nil
	}
	return wrapperspb.String("checkpoint written"), nil
}

func (a *adminServer) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s := a.eng.Stats()
	return structpb.NewStruct(map[string]interface{}{
		"active_transactions": s.ActiveTransactions,
		"available_buffers":   s.AvailableBuffers,
		"open_sessions":       s.OpenSessions,
	})
}
