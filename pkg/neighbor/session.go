// Package neighbor implements the neighbor observer (C5): one goroutine per
// emulated upstream VM, driving an interactive SSH session over goexpect to
// poll LACP/BGP/port-channel state and, after the reboot, scrape syslog for
// the adjacency timeline.
package neighbor

import (
	"fmt"
	"os"
	"regexp"
	"time"

	expect "github.com/google/goexpect"
	"golang.org/x/crypto/ssh"
)

// promptPattern matches the trailing "hostname>" / "hostname#" prompt of an
// Arista-like CLI.
var promptPattern = regexp.MustCompile(`[\w.-]*[>#]\s*$`)

// Session wraps an interactive SSH shell to a neighbor device.
type Session struct {
	client *ssh.Client
	gx     expect.Expecter
	closer func() error
}

// Dial opens an SSH connection to host, spawns an expect session over it,
// enters enable mode, and disables output paging.
func Dial(host, user, keyPath string, dialTimeout time.Duration) (*Session, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading ssh key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing ssh key %s: %w", keyPath, err)
	}

	client, err := ssh.Dial("tcp", host+":22", &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", host, err)
	}

	gx, _, err := expect.SpawnSSH(client, dialTimeout)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("spawning expect session to %s: %w", host, err)
	}

	s := &Session{client: client, gx: gx, closer: client.Close}
	if err := s.init(dialTimeout); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) init(timeout time.Duration) error {
	if _, _, err := s.gx.Expect(promptPattern, timeout); err != nil {
		return fmt.Errorf("waiting for initial prompt: %w", err)
	}
	if _, err := s.Command("enable", timeout); err != nil {
		return fmt.Errorf("entering enable mode: %w", err)
	}
	if _, err := s.Command("terminal length 0", timeout); err != nil {
		return fmt.Errorf("disabling paging: %w", err)
	}
	return nil
}

// Command sends cmd followed by a newline and returns everything read up to
// the next prompt.
func (s *Session) Command(cmd string, timeout time.Duration) (string, error) {
	if err := s.gx.Send(cmd + "\n"); err != nil {
		return "", fmt.Errorf("sending %q: %w", cmd, err)
	}
	out, _, err := s.gx.Expect(promptPattern, timeout)
	if err != nil {
		return "", fmt.Errorf("awaiting reply to %q: %w", cmd, err)
	}
	return out, nil
}

// Close tears down the expect session and the underlying SSH connection.
func (s *Session) Close() error {
	if s.gx != nil {
		_ = s.gx.Close()
	}
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
