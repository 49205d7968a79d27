// Package rpctest provides an in-process pipeline process that speaks the
// real JSON-RPC protocol, for tests of the fetcher and the poll loop.
package rpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/rpc"
	"github.com/sourcegraph/jsonrpc2"
)

// Handle is the service handle the fake hands out for the state service.
const Handle = "state#1"

// Stream is the client end of a fake connection. It records whether the
// client closed it.
type Stream struct {
	net.Conn
	closed atomic.Bool
}

// Close closes the underlying pipe and marks the stream closed.
func (s *Stream) Close() error {
	s.closed.Store(true)
	return s.Conn.Close()
}

// IsClosed reports whether Close was called.
func (s *Stream) IsClosed() bool {
	return s.closed.Load()
}

// Server is a scripted pipeline process. Status calls return the configured
// snapshots in order and keep repeating the last one.
type Server struct {
	mu          sync.Mutex
	topology    pipeline.Topology
	snapshots   []pipeline.Snapshot
	raw         map[string]json.RawMessage
	failures    map[string]*jsonrpc2.Error
	stalled     map[string]bool
	statusCalls int
	graphCalls  int
	conns       []*jsonrpc2.Conn
	streams     []*Stream
	dialErr     error

	release chan struct{}
	once    sync.Once
}

// NewServer creates a fake process serving topo and the given snapshots.
func NewServer(topo pipeline.Topology, snapshots ...pipeline.Snapshot) *Server {
	return &Server{
		topology:  topo,
		snapshots: snapshots,
		raw:       make(map[string]json.RawMessage),
		failures:  make(map[string]*jsonrpc2.Error),
		stalled:   make(map[string]bool),
		release:   make(chan struct{}),
	}
}

// Fail makes every call to method (graph, node_statuses or service) return a
// JSON-RPC error.
func (s *Server) Fail(method, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: message}
}

// Respond makes calls to method return raw instead of the scripted result.
func (s *Server) Respond(method string, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[method] = json.RawMessage(raw)
}

// Stall makes calls to method block until Close.
func (s *Server) Stall(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled[method] = true
}

// FailDial makes Dial return err.
func (s *Server) FailDial(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialErr = err
}

// StatusCalls returns how many node_statuses calls were served.
func (s *Server) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

// GraphCalls returns how many graph calls were served.
func (s *Server) GraphCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphCalls
}

// Streams returns every client stream handed out by Dial.
func (s *Server) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Stream(nil), s.streams...)
}

// Dial opens a new connection to the fake. The signature matches
// transport.Dialer so the server can stand in for a real process.
func (s *Server) Dial(ctx context.Context, pid int) (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialErr != nil {
		return nil, s.dialErr
	}

	clientEnd, serverEnd := net.Pipe()
	conn := jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(serverEnd, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.handle))
	stream := &Stream{Conn: clientEnd}
	s.conns = append(s.conns, conn)
	s.streams = append(s.streams, stream)
	return stream, nil
}

// Disconnect drops every open connection from the server side, as if the
// process exited.
func (s *Server) Disconnect() {
	s.mu.Lock()
	conns := append([]*jsonrpc2.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Close releases stalled calls and drops every connection.
func (s *Server) Close() {
	s.once.Do(func() { close(s.release) })
	s.Disconnect()
}

func (s *Server) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	method := req.Method
	if method != rpc.ServiceMethod {
		prefix := Handle + "."
		if len(method) <= len(prefix) || method[:len(prefix)] != prefix {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + method}
		}
		method = method[len(prefix):]
	}

	s.mu.Lock()
	stalled := s.stalled[method]
	s.mu.Unlock()
	if stalled {
		<-s.release
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "shutting down"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch method {
	case rpc.GraphMethod:
		s.graphCalls++
	case rpc.StatusMethod:
		s.statusCalls++
	}

	if failure, ok := s.failures[method]; ok {
		return nil, failure
	}
	if raw, ok := s.raw[method]; ok {
		return raw, nil
	}

	var (
		out []byte
		err error
	)
	switch method {
	case rpc.ServiceMethod:
		out, err = s.service(req)
	case rpc.GraphMethod:
		out, err = rpc.EncodeTopology(s.topology)
	case rpc.StatusMethod:
		out, err = rpc.EncodeStatuses(s.nextSnapshot(), s.topology.Nodes)
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func (s *Server) service(req *jsonrpc2.Request) ([]byte, error) {
	var params struct {
		Name string `json:"name"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
	}
	if params.Name != rpc.StateService {
		return nil, fmt.Errorf("no such service %q", params.Name)
	}
	return rpc.EncodeService(Handle)
}

// nextSnapshot must be called with mu held. statusCalls was already
// incremented for this call.
func (s *Server) nextSnapshot() pipeline.Snapshot {
	if len(s.snapshots) == 0 {
		return pipeline.Snapshot{}
	}
	i := s.statusCalls - 1
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	return s.snapshots[i]
}
