package sshutil

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
)

// WarningHandler receives non-fatal configuration warnings. When nil they
// go to the standard logger.
var WarningHandler func(message string)

var matchWarningOnce sync.Once

func warn(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
		return
	}
	log.Printf("Warning: %s", message)
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSettings splits user@host:port and fills the gaps from
// ~/.ssh/config.
func resolveSettings(target string) *sshSettings {
	s := splitTarget(target)
	configPath := filepath.Join(homeDir(), ".ssh", "config")
	applySSHConfig(s, configPath)
	return s
}

func splitTarget(target string) *sshSettings {
	s := &sshSettings{port: "22", user: currentUser()}

	host := target
	if user, rest, ok := strings.Cut(host, "@"); ok {
		s.user = user
		host = rest
	} else if override := os.Getenv("TELEOP_SSH_USER"); override != "" {
		s.user = override
	}

	if i := strings.LastIndex(host, ":"); i != -1 && isDigits(host[i+1:]) {
		s.port = host[i+1:]
		host = host[:i]
	}
	s.hostname = host
	return s
}

// applySSHConfig overlays HostName, Port, User and IdentityFile for the
// alias in s.hostname. A missing or unreadable config leaves s untouched.
func applySSHConfig(s *sshSettings, configPath string) {
	content, matchLine, err := readSSHConfig(configPath)
	if err != nil {
		return
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return
	}

	alias := s.hostname
	found := false
	set := func(key string, dst *string, transform func(string) string) {
		if v, _ := cfg.Get(alias, key); v != "" {
			if transform != nil {
				v = transform(v)
			}
			*dst = v
			found = true
		}
	}
	set("HostName", &s.hostname, nil)
	set("Port", &s.port, nil)
	set("User", &s.user, nil)
	set("IdentityFile", &s.identityFile, expandPath)

	if matchLine > 0 && !found {
		matchWarningOnce.Do(func() {
			warn(fmt.Sprintf(
				"Host '%s' not found in SSH config; entries after the Match block at line %d are not read. "+
					"Move the host above line %d in ~/.ssh/config if it is defined there.",
				alias, matchLine, matchLine))
		})
	}
}

// readSSHConfig returns the config up to the first Match directive, which
// the ssh_config parser does not understand, plus that directive's line
// number (0 when there is none).
func readSSHConfig(path string) ([]byte, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
