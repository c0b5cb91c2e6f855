package hosts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/catalog"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/monitoring"
)

// RescanState is the outcome of a rescan on one host
type RescanState struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Create starts a host container for the descriptor and waits until it
// is stable. Values in overrides win over the detected environment.
func (m *Manager) Create(ctx context.Context, hostgroup string, host HostDescriptor, overrides map[string]string) (string, error) {
	machineID, agentID := m.ids()

	path, err := filepath.Abs(host.SupportfilesPath)
	if err != nil {
		return "", errors.NewHostsError(fmt.Sprintf("invalid supportfiles path %s", host.SupportfilesPath), err)
	}
	basename := filepath.Base(path)
	if m.options.HostRootFS != "" {
		path = strings.TrimPrefix(path, m.options.HostRootFS)
	}

	labels := map[string]string{
		LabelStack:         StackHost,
		LabelHostgroup:     hostgroup,
		LabelHostname:      host.Hostname,
		LabelSupportfiles:  path,
		LabelSupportconfig: path,
		LabelUUID:          m.options.InstallationID,
		LabelAgentID:       agentID,
	}
	for _, key := range catalog.EnvironmentKeys {
		value, ok := overrides[key]
		if !ok {
			value = host.Environment[key]
		}
		labels[LabelEnvPrefix+key] = value
	}

	spec := container.RunSpec{
		Image:   m.options.Image,
		Name:    m.containerName(hostgroup, host.Hostname),
		Command: []string{startupCommand},
		Env: []string{
			"SUPPORTCONFIG=/" + basename,
			"MACHINE_ID=" + machineID,
		},
		Binds:   []string{path + ":/" + basename},
		Network: m.options.Network,
		Labels:  labels,
	}

	m.logger.Debugf("creating host container %s (agent %s)", spec.Name, agentID)
	created, err := m.runtime.Run(ctx, spec)
	if err != nil {
		return "", errors.NewHostsError(fmt.Sprintf("could not create host container %s", spec.Name), err)
	}
	if err := m.waitStable(ctx, created.ID, spec.Name); err != nil {
		return spec.Name, err
	}
	return spec.Name, nil
}

// StartHostgroup starts every host of the group that is not running and
// waits for each to be stable. One unstable host fails the group.
func (m *Manager) StartHostgroup(ctx context.Context, hostgroup string) ([]string, error) {
	hosts, err := m.groupHosts(ctx, hostgroup)
	if err != nil {
		return nil, err
	}
	started := []string{}
	for _, h := range hosts {
		if h.Status == container.StateRunning {
			continue
		}
		m.logger.Infof("starting host container %s", h.Name)
		if err := m.runtime.Start(ctx, h.ContainerID); err != nil {
			return started, errors.NewHostsError(fmt.Sprintf("could not start %s", h.Name), err)
		}
		if err := m.waitStable(ctx, h.ContainerID, h.Name); err != nil {
			return started, err
		}
		started = append(started, h.Name)
	}
	return started, nil
}

// StopHostgroup stops the running hosts of the group and returns their names
func (m *Manager) StopHostgroup(ctx context.Context, hostgroup string) ([]string, error) {
	hosts, err := m.groupHosts(ctx, hostgroup)
	if err != nil {
		return nil, err
	}
	stopped := []string{}
	for _, h := range hosts {
		if h.Status != container.StateRunning {
			continue
		}
		if err := m.runtime.Stop(ctx, h.ContainerID, m.options.DockerTimeout); err != nil {
			return stopped, errors.NewHostsError(fmt.Sprintf("could not stop %s", h.Name), err)
		}
		stopped = append(stopped, h.Name)
	}
	return stopped, nil
}

// RemoveHostgroup force removes all hosts of the group with their volumes
func (m *Manager) RemoveHostgroup(ctx context.Context, hostgroup string) ([]string, error) {
	hosts, err := m.groupHosts(ctx, hostgroup)
	if err != nil {
		return nil, err
	}
	removed := []string{}
	for _, h := range hosts {
		if err := m.runtime.Remove(ctx, h.ContainerID); err != nil {
			return removed, errors.NewHostsError(fmt.Sprintf("could not remove %s", h.Name), err)
		}
		removed = append(removed, h.Name)
	}
	return removed, nil
}

// RescanHostgroup makes every running host of the group process its
// supportfiles again. Failures are reported per host.
func (m *Manager) RescanHostgroup(ctx context.Context, hostgroup string) (map[string]RescanState, error) {
	hosts, err := m.groupHosts(ctx, hostgroup)
	if err != nil {
		return nil, err
	}
	scanned := make(map[string]RescanState, len(hosts))
	for _, h := range hosts {
		scanned[h.Name] = m.rescan(ctx, h)
	}
	return scanned, nil
}

func (m *Manager) rescan(ctx context.Context, h Host) RescanState {
	if h.Status != container.StateRunning {
		return RescanState{OK: false, Detail: "Container status: " + h.Status}
	}
	for _, cmd := range [][]string{{"rm", "-f", manifestPath}, {"sc/process_supportfiles"}} {
		result, err := m.runtime.Exec(ctx, h.ContainerID, cmd)
		if err != nil {
			return RescanState{OK: false, Detail: err.Error()}
		}
		if result.ExitCode != 0 {
			m.logger.Warnf("%q on %s exited with %d", strings.Join(cmd, " "), h.Name, result.ExitCode)
			return RescanState{OK: false, Detail: strings.TrimSpace(result.Output())}
		}
	}
	return RescanState{OK: true}
}

func (m *Manager) groupHosts(ctx context.Context, hostgroup string) ([]Host, error) {
	if hostgroup == "" {
		return nil, errors.NewValidationError("host group must not be empty", nil)
	}
	return m.Containers(ctx, Filter{Hostgroup: hostgroup})
}

// waitStable waits until the container runs and then checks that it keeps
// running for the same startup timeout.
func (m *Manager) waitStable(ctx context.Context, id, name string) error {
	opts := monitoring.PollOptions{Interval: m.options.PollInterval, Timeout: m.options.StartupTimeout}
	running := func(ctx context.Context) (bool, error) {
		c, err := m.runtime.Inspect(ctx, id)
		if err != nil {
			return false, err
		}
		return c.Status == container.StateRunning, nil
	}

	up, err := monitoring.WaitFor(ctx, m.clock, opts, running)
	if err != nil {
		return errors.NewHostsError(fmt.Sprintf("could not read state of %s", name), err)
	}
	if !up {
		return errors.NewHostsError(fmt.Sprintf(
			"start timeout of %s reached; %s did not become operational", m.options.StartupTimeout, name), nil)
	}

	stable, err := monitoring.HoldsFor(ctx, m.clock, opts, running)
	if err != nil {
		return errors.NewHostsError(fmt.Sprintf("could not read state of %s", name), err)
	}
	if !stable {
		return errors.NewHostsError(fmt.Sprintf(
			"%s stopped running within the start timeout of %s", name, m.options.StartupTimeout), nil)
	}
	return nil
}
