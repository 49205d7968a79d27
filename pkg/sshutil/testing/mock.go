// Package testing provides an in-memory sshutil.Remote for tests that must
// not open real SSH connections.
package testing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"sync"

	"github.com/rileyhilliard/teleop/pkg/sshutil"
)

// CommandResponse is a canned result for a command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// SocketHandler produces the remote end of a forwarded Unix socket.
type SocketHandler func(path string) (net.Conn, error)

// MockRemote records commands and serves scripted responses. Commands are
// matched exactly first, then as regular expressions in registration order.
type MockRemote struct {
	mu       sync.Mutex
	host     string
	closed   bool
	exact    map[string]CommandResponse
	patterns []patternResponse
	sockets  map[string]SocketHandler
	history  []string
	dialed   []string
}

type patternResponse struct {
	re   *regexp.Regexp
	resp CommandResponse
}

var _ sshutil.Remote = (*MockRemote)(nil)

// NewMockRemote creates a mock connected to host.
func NewMockRemote(host string) *MockRemote {
	return &MockRemote{
		host:    host,
		exact:   make(map[string]CommandResponse),
		sockets: make(map[string]SocketHandler),
	}
}

// On registers a response for an exact command.
func (m *MockRemote) On(cmd string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exact[cmd] = resp
}

// OnMatch registers a response for commands matching pattern.
func (m *MockRemote) OnMatch(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, patternResponse{re: regexp.MustCompile(pattern), resp: resp})
}

// Socket registers a handler for DialUnix(path).
func (m *MockRemote) Socket(path string, h SocketHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sockets[path] = h
}

// Exec implements sshutil.Remote. Unknown commands exit 127.
func (m *MockRemote) Exec(ctx context.Context, cmd string) ([]byte, []byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.history = append(m.history, cmd)

	if resp, ok := m.exact[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	for _, p := range m.patterns {
		if p.re.MatchString(cmd) {
			return p.resp.Stdout, p.resp.Stderr, p.resp.ExitCode, p.resp.Error
		}
	}
	return nil, []byte(fmt.Sprintf("sh: %s: not found\n", cmd)), 127, nil
}

// DialUnix implements sshutil.Remote.
func (m *MockRemote) DialUnix(path string) (net.Conn, error) {
	m.mu.Lock()
	h, ok := m.sockets[path]
	closed := m.closed
	m.dialed = append(m.dialed, path)
	m.mu.Unlock()

	if closed {
		return nil, errors.New("connection closed")
	}
	if !ok {
		return nil, fmt.Errorf("open failed: no such socket %s", path)
	}
	return h(path)
}

// Host implements sshutil.Remote.
func (m *MockRemote) Host() string {
	return m.host
}

// Close implements sshutil.Remote.
func (m *MockRemote) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockRemote) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Commands returns every command passed to Exec.
func (m *MockRemote) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

// Dialed returns every socket path passed to DialUnix.
func (m *MockRemote) Dialed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dialed...)
}
