package rpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/rpc"
	"github.com/rileyhilliard/teleop/internal/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_DoneWhenProcessGoesAway(t *testing.T) {
	srv := rpctest.NewServer(lineTopology)
	session := openSession(t, srv)

	select {
	case <-session.Done():
		t.Fatal("session should be live")
	default:
	}

	srv.Disconnect()

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done was not closed after the server hung up")
	}

	_, err := session.Call(context.Background(), rpc.ServiceMethod, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrDisconnected)
}

func TestSession_CloseClosesStream(t *testing.T) {
	srv := rpctest.NewServer(lineTopology)
	stream, err := srv.Dial(context.Background(), 1)
	require.NoError(t, err)
	defer srv.Close()

	log := logger.NewBufferLogger()
	session := rpc.Open(context.Background(), stream, log)

	require.NoError(t, session.Close())
	assert.NoError(t, session.Close(), "second close is a no-op")

	streams := srv.Streams()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].IsClosed())

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done was not closed after Close")
	}
}

func TestSession_Service(t *testing.T) {
	srv := rpctest.NewServer(lineTopology)
	session := openSession(t, srv)

	handle, err := session.Service(context.Background(), rpc.StateService)
	require.NoError(t, err)
	assert.Equal(t, rpctest.Handle, handle)

	_, err = session.Service(context.Background(), "metrics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such service")
}
