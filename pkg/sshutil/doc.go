// Package sshutil dials remote hosts over SSH for observing pipeline
// processes that run elsewhere.
//
// Connection settings come from ~/.ssh/config (HostName, Port, User,
// IdentityFile). Authentication tries the SSH agent first, then the
// configured identity file, then the usual default keys. Host keys are
// checked against ~/.ssh/known_hosts unless StrictHostKeyChecking is off.
//
// Once connected, a Client forwards Unix socket connections with
// DialUnix (the OpenSSH direct-streamlocal channel) and runs short shell
// commands with Exec.
package sshutil
