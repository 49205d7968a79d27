// Package rpc talks to an observed pipeline process over JSON-RPC 2.0.
//
// A Session owns one transport stream. The Fetcher resolves the process's
// "state" service once and then reads the topology and per-node statuses
// through it; the codec turns the wire records into pipeline types.
//
//	session := rpc.Open(ctx, stream, log)
//	defer session.Close()
//	fetcher, err := rpc.NewFetcher(ctx, session)
//	topo, err := fetcher.FetchTopology(ctx)
//	snap, err := fetcher.FetchStatus(ctx, topo)
package rpc
