// Package sandbox owns the per-session execution environment the Task
// Runner (C6) drives shell commands and file I/O through: a disposable
// Docker container, created lazily on first use and torn down on
// ensure_sandbox's TTL or explicit destroy (spec §4.5).
package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ExecResult is the outcome of a shell command run inside a sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Sandbox is the contract the Task Runner drives. One Sandbox instance
// is bound to exactly one session for its lifetime.
type Sandbox interface {
	// Ensure creates the backing container if it does not already
	// exist and is idempotent — calling it repeatedly on a live
	// sandbox is a no-op (spec §4.5 ensure_sandbox).
	Ensure(ctx context.Context) error

	// Exec runs a shell command inside the sandbox's working directory.
	Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)

	// WriteFile uploads content to path inside the sandbox
	// (sync_to_sandbox, spec §4.5).
	WriteFile(ctx context.Context, path string, content []byte) error

	// ReadFile downloads path's content from the sandbox
	// (sync_to_storage, spec §4.5).
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Address returns the sandbox's reachable address (for view_shell /
	// VNC / the browser's remote debugging endpoint), empty if the
	// sandbox has not been ensured yet.
	Address() string

	// ID returns the backing container ID, empty if not yet ensured.
	ID() string

	// Destroy tears down the backing container. Safe to call on an
	// already-destroyed or never-ensured sandbox.
	Destroy(ctx context.Context) error
}

// Config configures how a Sandbox provisions its backing container
// (spec §6 Sandbox option group).
type Config struct {
	Image      string
	NamePrefix string
	Network    string
	TTL        time.Duration
	Proxy      string
	ChromeArgs []string
}

// dockerAPI is the subset of *client.Client a Sandbox drives — narrowed
// so tests can substitute a fake without a real daemon.
type dockerAPI interface {
	ContainerCreateAndStart(ctx context.Context, cfg Config, name string) (containerID string, err error)
	ContainerExec(ctx context.Context, containerID, command string) (stdout, stderr string, exitCode int, err error)
	ContainerCopyTo(ctx context.Context, containerID, path string, content io.Reader) error
	ContainerCopyFrom(ctx context.Context, containerID, path string) ([]byte, error)
	ContainerInspectAddress(ctx context.Context, containerID string) (string, error)
	ContainerStop(ctx context.Context, containerID string) error
}

// DockerSandbox is a Sandbox backed by a single Docker container,
// created on Ensure and torn down on Destroy or TTL expiry.
type DockerSandbox struct {
	sessionID string
	cfg       Config
	api       dockerAPI

	containerID string
	address     string
	expiresAt   time.Time
	log         *slog.Logger
}

// NewDockerSandbox builds a DockerSandbox for sessionID. api is normally
// a *dockerClientAdapter wrapping a real *client.Client (see docker_client.go).
func NewDockerSandbox(sessionID string, cfg Config, api dockerAPI) *DockerSandbox {
	return &DockerSandbox{
		sessionID: sessionID,
		cfg:       cfg,
		api:       api,
		log:       slog.Default().With("component", "sandbox", "session_id", sessionID),
	}
}

func (s *DockerSandbox) Ensure(ctx context.Context) error {
	if s.containerID != "" && time.Now().Before(s.expiresAt) {
		return nil
	}
	if s.containerID != "" {
		s.log.Info("sandbox ttl expired, recreating")
		_ = s.Destroy(ctx)
	}

	name := s.cfg.NamePrefix + s.sessionID
	id, err := s.api.ContainerCreateAndStart(ctx, s.cfg, name)
	if err != nil {
		return fmt.Errorf("sandbox: ensure: %w", err)
	}
	addr, err := s.api.ContainerInspectAddress(ctx, id)
	if err != nil {
		s.log.Warn("sandbox: could not resolve container address", "error", err)
	}

	s.containerID = id
	s.address = addr
	s.expiresAt = time.Now().Add(s.cfg.TTL)
	s.log.Info("sandbox ensured", "container_id", id)
	return nil
}

func (s *DockerSandbox) Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if s.containerID == "" {
		return ExecResult{}, fmt.Errorf("sandbox: exec: not ensured")
	}
	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stdout, stderr, code, err := s.api.ContainerExec(execCtx, s.containerID, command)
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: exec: %w", err)
	}
	return ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: code}, nil
}

func (s *DockerSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	if s.containerID == "" {
		return fmt.Errorf("sandbox: write file: not ensured")
	}
	if err := s.api.ContainerCopyTo(ctx, s.containerID, path, newByteReader(content)); err != nil {
		return fmt.Errorf("sandbox: write file %s: %w", path, err)
	}
	return nil
}

func (s *DockerSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if s.containerID == "" {
		return nil, fmt.Errorf("sandbox: read file: not ensured")
	}
	data, err := s.api.ContainerCopyFrom(ctx, s.containerID, path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read file %s: %w", path, err)
	}
	return data, nil
}

func (s *DockerSandbox) Address() string { return s.address }
func (s *DockerSandbox) ID() string      { return s.containerID }

func (s *DockerSandbox) Destroy(ctx context.Context) error {
	if s.containerID == "" {
		return nil
	}
	err := s.api.ContainerStop(ctx, s.containerID)
	s.containerID = ""
	s.address = ""
	if err != nil {
		return fmt.Errorf("sandbox: destroy: %w", err)
	}
	return nil
}

func newByteReader(b []byte) io.Reader { return &byteReader{b: b} }

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
