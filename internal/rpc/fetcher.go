package rpc

import (
	"context"
	"encoding/json"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/pipeline"
)

// ServiceCaller is a Caller that can also resolve sub-services.
type ServiceCaller interface {
	Caller
	Service(ctx context.Context, name string) (string, error)
}

// Fetcher reads topology and status from the process's state service.
type Fetcher struct {
	caller Caller
	handle string
}

// NewFetcher resolves the state service on s.
func NewFetcher(ctx context.Context, s ServiceCaller) (*Fetcher, error) {
	handle, err := s.Service(ctx, StateService)
	if err != nil {
		return nil, rpcError(ctx, err, "State service lookup failed")
	}
	return &Fetcher{caller: s, handle: handle}, nil
}

// Handle is the resolved state service handle.
func (f *Fetcher) Handle() string {
	return f.handle
}

// FetchTopology reads the static execution graph. It is called once per
// session.
func (f *Fetcher) FetchTopology(ctx context.Context) (pipeline.Topology, error) {
	raw, err := f.call(ctx, GraphMethod)
	if err != nil {
		return pipeline.Topology{}, rpcError(ctx, err, "Graph fetch failed")
	}
	topo, err := DecodeTopology(raw)
	if err != nil {
		return pipeline.Topology{}, rpcError(ctx, err, "Graph fetch failed")
	}
	return topo, nil
}

// FetchStatus reads one snapshot and checks it covers every topology node.
func (f *Fetcher) FetchStatus(ctx context.Context, topo pipeline.Topology) (pipeline.Snapshot, error) {
	raw, err := f.call(ctx, StatusMethod)
	if err != nil {
		return nil, rpcError(ctx, err, "Status fetch failed")
	}
	snap, err := DecodeStatuses(raw)
	if err != nil {
		return nil, rpcError(ctx, err, "Status fetch failed")
	}
	if err := snap.Covers(topo); err != nil {
		return nil, rpcError(ctx, err, "Status fetch failed")
	}
	return snap, nil
}

func (f *Fetcher) call(ctx context.Context, method string) (json.RawMessage, error) {
	return f.caller.Call(ctx, f.handle+"."+method, nil)
}

// rpcError wraps err as an RPC failure unless the context was cancelled, in
// which case the context error is returned so callers can tell the two apart.
func rpcError(ctx context.Context, err error, message string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return errors.WrapWithCode(err, errors.ErrRPC, message, "")
}
