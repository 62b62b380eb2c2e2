package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// dockerClientAdapter implements dockerAPI over a real
// *client.Client, narrowing the SDK's much larger surface to exactly
// what a Sandbox needs (spec §4.5).
type dockerClientAdapter struct {
	cli *client.Client
}

// NewDockerClientAdapter builds a dockerAPI backed by a Docker client
// connected at host (empty uses DOCKER_HOST / the default socket).
func NewDockerClientAdapter(host string) (*dockerClientAdapter, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}
	return &dockerClientAdapter{cli: cli}, nil
}

func (a *dockerClientAdapter) ContainerCreateAndStart(ctx context.Context, cfg Config, name string) (string, error) {
	image := cfg.Image
	if image == "" {
		image = "agentcore/sandbox:latest"
	}

	env := []string{}
	if cfg.Proxy != "" {
		env = append(env, "HTTP_PROXY="+cfg.Proxy, "HTTPS_PROXY="+cfg.Proxy)
	}

	containerCfg := &container.Config{
		Image: image,
		Env:   env,
		Tty:   false,
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(cfg.Network),
		AutoRemove:  false,
	}

	resp, err := a.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}
	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("container start: %w", err)
	}
	return resp.ID, nil
}

func (a *dockerClientAdapter) ContainerExec(ctx context.Context, containerID, command string) (string, string, int, error) {
	execCfg := container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := a.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return "", "", -1, fmt.Errorf("exec create: %w", err)
	}

	attach, err := a.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", "", -1, fmt.Errorf("exec attach: %w", err)
	}
	defer attach.Close()

	var out bytes.Buffer
	_, _ = io.Copy(&out, attach.Reader)

	inspect, err := a.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return "", "", -1, fmt.Errorf("exec inspect: %w", err)
	}

	return out.String(), "", inspect.ExitCode, nil
}

func (a *dockerClientAdapter) ContainerCopyTo(ctx context.Context, containerID, path string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}

	dir, base := splitPath(path)
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: base, Mode: 0o644, Size: int64(len(data))}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("tar write: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("tar close: %w", err)
	}

	return a.cli.CopyToContainer(ctx, containerID, dir, &buf, container.CopyToContainerOptions{})
}

func (a *dockerClientAdapter) ContainerCopyFrom(ctx context.Context, containerID, path string) ([]byte, error) {
	reader, _, err := a.cli.CopyFromContainer(ctx, containerID, path)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	if _, err := tr.Next(); err != nil {
		return nil, fmt.Errorf("tar read header: %w", err)
	}
	return io.ReadAll(tr)
}

func (a *dockerClientAdapter) ContainerInspectAddress(ctx context.Context, containerID string) (string, error) {
	info, err := a.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("container inspect: %w", err)
	}
	if info.NetworkSettings == nil {
		return "", nil
	}
	for _, net := range info.NetworkSettings.Networks {
		if net.IPAddress != "" {
			return net.IPAddress, nil
		}
	}
	return "", nil
}

func (a *dockerClientAdapter) ContainerStop(ctx context.Context, containerID string) error {
	if err := a.cli.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return fmt.Errorf("container stop: %w", err)
	}
	if err := a.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

func splitPath(path string) (dir, base string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "/", path
	}
	return path[:idx+1], path[idx+1:]
}
