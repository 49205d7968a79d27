package testing

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRemote_Exec(t *testing.T) {
	m := NewMockRemote("etl")
	m.On("uname", CommandResponse{Stdout: []byte("Linux\n")})
	m.OnMatch(`^ls .*`, CommandResponse{Stdout: []byte(".teleop_pid1\n")})

	out, _, code, err := m.Exec(context.Background(), "uname")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "Linux\n", string(out))

	out, _, _, err = m.Exec(context.Background(), "ls -a /tmp")
	require.NoError(t, err)
	assert.Equal(t, ".teleop_pid1\n", string(out))

	_, stderr, code, err := m.Exec(context.Background(), "frobnicate")
	require.NoError(t, err)
	assert.Equal(t, 127, code)
	assert.Contains(t, string(stderr), "not found")

	assert.Equal(t, []string{"uname", "ls -a /tmp", "frobnicate"}, m.Commands())
}

func TestMockRemote_ExecCancelled(t *testing.T) {
	m := NewMockRemote("etl")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, code, err := m.Exec(ctx, "uname")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, code)
	assert.Empty(t, m.Commands())
}

func TestMockRemote_DialUnix(t *testing.T) {
	m := NewMockRemote("etl")
	m.Socket("/tmp/.teleop_pid7", func(string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() { _ = server.Close() }()
		return client, nil
	})

	conn, err := m.DialUnix("/tmp/.teleop_pid7")
	require.NoError(t, err)
	_ = conn.Close()

	_, err = m.DialUnix("/tmp/.teleop_pid8")
	assert.Error(t, err)
	assert.Equal(t, []string{"/tmp/.teleop_pid7", "/tmp/.teleop_pid8"}, m.Dialed())
}

func TestMockRemote_Close(t *testing.T) {
	m := NewMockRemote("etl")
	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	_, _, _, err := m.Exec(context.Background(), "uname")
	assert.Error(t, err)
	_, err = m.DialUnix("/x")
	assert.Error(t, err)
	assert.Equal(t, "etl", m.Host())
}
