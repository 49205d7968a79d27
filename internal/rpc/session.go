package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/sourcegraph/jsonrpc2"
)

// Method names exposed by an observed process.
const (
	ServiceMethod = "service"
	GraphMethod   = "graph"
	StatusMethod  = "node_statuses"

	// StateService is the sub-service that serves graph and status reads.
	StateService = "state"
)

// ErrDisconnected is returned by calls made after the message loop stopped.
var ErrDisconnected = stderrors.New("connection interrupted")

// Caller issues one request and returns the raw result.
type Caller interface {
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
}

// Session is one JSON-RPC connection over a transport stream. The
// connection's reader goroutine is the message loop; Done reports its exit.
type Session struct {
	conn      *jsonrpc2.Conn
	stream    io.Closer
	log       logger.Logger
	closeOnce sync.Once
}

// Open starts a session on stream. The session takes ownership of stream and
// closes it on Close.
func Open(ctx context.Context, stream io.ReadWriteCloser, log logger.Logger) *Session {
	if log == nil {
		log = logger.Noop()
	}
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(rejectInbound))

	return &Session{conn: conn, stream: stream, log: log}
}

// rejectInbound answers any request the process sends us. Observation is
// one-directional.
func rejectInbound(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("method not supported: %s", req.Method),
	}
}

// Call sends method with params and waits for the raw result.
func (s *Session) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	if err := s.conn.Call(ctx, method, params, &result); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if stderrors.Is(err, jsonrpc2.ErrClosed) || stderrors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%s: %w", method, ErrDisconnected)
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	s.log.Debug("%s -> %d bytes", method, len(result))
	return result, nil
}

// Service resolves a named sub-service and returns the handle that prefixes
// its method names.
func (s *Session) Service(ctx context.Context, name string) (string, error) {
	raw, err := s.Call(ctx, ServiceMethod, serviceRequest{Name: name})
	if err != nil {
		return "", err
	}
	return decodeServiceHandle(raw)
}

// Done is closed when the message loop stops, whether by Close or because
// the process went away.
func (s *Session) Done() <-chan struct{} {
	return s.conn.DisconnectNotify()
}

// Close stops the message loop and closes the stream. Closing twice is safe,
// as is closing after the process hung up.
func (s *Session) Close() error {
	err := s.conn.Close()
	if stderrors.Is(err, jsonrpc2.ErrClosed) {
		err = nil
	}
	s.closeOnce.Do(func() {
		// jsonrpc2 skips the stream when the peer already hung up.
		_ = s.stream.Close()
	})
	return err
}
