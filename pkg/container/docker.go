package container

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
)

// DockerRuntime implements Runtime on the Docker Engine API
type DockerRuntime struct {
	client *client.Client
	logger logging.Logger
}

// NewDockerRuntime connects using the DOCKER_* environment variables
func NewDockerRuntime(logger logging.Logger) (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.NewRuntimeError("could not create docker client", err)
	}
	return &DockerRuntime{client: cli, logger: logger}, nil
}

// Ping verifies the daemon is reachable
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return errors.NewRuntimeError("docker daemon not reachable", err)
	}
	return nil
}

func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

func (d *DockerRuntime) List(ctx context.Context, label string) ([]Container, error) {
	list, err := d.client.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", label)),
	})
	if err != nil {
		return nil, errors.NewRuntimeError(fmt.Sprintf("could not list containers with label %q", label), err)
	}

	containers := make([]Container, 0, len(list))
	for _, c := range list {
		containers = append(containers, fromSummary(c))
	}
	return containers, nil
}

func (d *DockerRuntime) Inspect(ctx context.Context, id string) (Container, error) {
	info, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return Container{}, errors.NewRuntimeError(fmt.Sprintf("could not inspect container %s", id), err)
	}
	return fromInspect(info), nil
}

func (d *DockerRuntime) Run(ctx context.Context, spec RunSpec) (Container, error) {
	config := &dockercontainer.Config{
		Image:  spec.Image,
		Cmd:    spec.Command,
		Env:    spec.Env,
		Labels: spec.Labels,
	}
	hostConfig := &dockercontainer.HostConfig{
		Binds:       spec.Binds,
		NetworkMode: dockercontainer.NetworkMode(spec.Network),
	}

	created, err := d.client.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return Container{}, errors.NewRuntimeError(fmt.Sprintf("could not create container %s", spec.Name), err)
	}
	for _, warning := range created.Warnings {
		d.logger.Warnf("container %s: %s", spec.Name, warning)
	}

	if err := d.client.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return Container{}, errors.NewRuntimeError(fmt.Sprintf("could not start container %s", spec.Name), err)
	}
	return d.Inspect(ctx, created.ID)
}

func (d *DockerRuntime) Start(ctx context.Context, id string) error {
	if err := d.client.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return errors.NewRuntimeError(fmt.Sprintf("could not start container %s", id), err)
	}
	return nil
}

func (d *DockerRuntime) Stop(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := d.client.ContainerStop(ctx, id, dockercontainer.StopOptions{Timeout: &seconds}); err != nil {
		return errors.NewRuntimeError(fmt.Sprintf("could not stop container %s", id), err)
	}
	return nil
}

func (d *DockerRuntime) Remove(ctx context.Context, id string) error {
	err := d.client.ContainerRemove(ctx, id, types.ContainerRemoveOptions{RemoveVolumes: true, Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return errors.NewRuntimeError(fmt.Sprintf("could not remove container %s", id), err)
	}
	return nil
}

func (d *DockerRuntime) Exec(ctx context.Context, id string, cmd []string) (ExecResult, error) {
	created, err := d.client.ContainerExecCreate(ctx, id, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, errors.NewRuntimeError(fmt.Sprintf("could not create exec %q in %s", strings.Join(cmd, " "), id), err)
	}

	attached, err := d.client.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return ExecResult{}, errors.NewRuntimeError(fmt.Sprintf("could not attach to exec in %s", id), err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return ExecResult{}, errors.NewRuntimeError(fmt.Sprintf("could not read exec output in %s", id), err)
	}

	inspected, err := d.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, errors.NewRuntimeError(fmt.Sprintf("could not inspect exec in %s", id), err)
	}

	return ExecResult{
		ExitCode: inspected.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func (d *DockerRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	tailOpt := "all"
	if tail > 0 {
		tailOpt = strconv.Itoa(tail)
	}
	reader, err := d.client.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tailOpt,
	})
	if err != nil {
		return "", errors.NewRuntimeError(fmt.Sprintf("could not read logs of %s", id), err)
	}
	defer reader.Close()

	// stdout and stderr share one buffer to keep the lines in order
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, reader); err != nil {
		return "", errors.NewRuntimeError(fmt.Sprintf("could not read logs of %s", id), err)
	}
	return out.String(), nil
}

func fromSummary(c types.Container) Container {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return Container{
		ID:     c.ID,
		Name:   name,
		Image:  c.Image,
		Status: c.State,
		Labels: c.Labels,
		Mounts: fromMountPoints(c.Mounts),
	}
}

func fromInspect(info types.ContainerJSON) Container {
	var c Container
	if info.ContainerJSONBase != nil {
		c.ID = info.ID
		c.Name = strings.TrimPrefix(info.Name, "/")
		c.Image = info.Image
		if info.State != nil {
			c.Status = info.State.Status
		}
	}
	if info.Config != nil {
		c.Labels = info.Config.Labels
		c.Image = info.Config.Image
	}
	c.Mounts = fromMountPoints(info.Mounts)
	return c
}

func fromMountPoints(points []types.MountPoint) []Mount {
	mounts := make([]Mount, 0, len(points))
	for _, p := range points {
		mounts = append(mounts, Mount{
			Type:        string(p.Type),
			Name:        p.Name,
			Source:      p.Source,
			Destination: p.Destination,
		})
	}
	return mounts
}
