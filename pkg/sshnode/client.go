package sshnode

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/opsforge/agentcore/pkg/model"
)

const (
	connectTimeout = 15 * time.Second
	executeTimeout = 180 * time.Second
)

// SSHRunner implements Runner over golang.org/x/crypto/ssh, authenticating
// by password or by private key (RSA, Ed25519, ECDSA or DSA — whichever
// the configured key material encodes, spec §4.7).
type SSHRunner struct{}

// NewSSHRunner builds an SSHRunner.
func NewSSHRunner() *SSHRunner { return &SSHRunner{} }

func (r *SSHRunner) Run(ctx context.Context, node *model.SSHNode, command string) (string, bool, error) {
	authMethods, err := authMethodsFor(node)
	if err != nil {
		return "", false, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            node.SSHUsername,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // nodes are user-registered; no known_hosts store in scope
		Timeout:         connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", node.SSHHost, node.SSHPort)
	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", false, fmt.Errorf("sshnode: dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return "", false, fmt.Errorf("sshnode: handshake %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", false, fmt.Errorf("sshnode: new session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		return stdout.String() + stderr.String(), false, ctx.Err()
	case <-time.After(executeTimeout):
		return stdout.String() + stderr.String(), false, fmt.Errorf("sshnode: command timed out after %s", executeTimeout)
	case err := <-done:
		output := stdout.String()
		if stderr.Len() > 0 {
			output += "\n" + stderr.String()
		}
		return output, err == nil, nil
	}
}

// authMethodsFor builds the ssh.AuthMethod list for node. For
// SSHAuthPrivateKey it parses the configured key once; password auth
// is used as-is otherwise.
func authMethodsFor(node *model.SSHNode) ([]ssh.AuthMethod, error) {
	switch node.SSHAuthType {
	case model.SSHAuthPassword:
		return []ssh.AuthMethod{ssh.Password(node.SSHPassword)}, nil
	case model.SSHAuthPrivateKey:
		var signer ssh.Signer
		var err error
		if node.SSHPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(node.SSHPrivateKey), []byte(node.SSHPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(node.SSHPrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("sshnode: parse private key: %w", err)
		}
		// ssh.ParsePrivateKey already dispatches on the key's own type
		// (RSA, Ed25519, ECDSA, DSA) via its ASN.1/OpenSSH header —
		// there is nothing further to "try in order" once parsed.
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return nil, fmt.Errorf("sshnode: unsupported auth type %q", node.SSHAuthType)
	}
}
