// Package hosts manages the containers that simulate the target hosts of
// a host group, one container per support bundle.
package hosts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tcsc-project/tcsc/pkg/catalog"
	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
)

// Container labels
const (
	LabelStack         = "com.suse.tcsc.stack"
	LabelHostgroup     = "com.suse.tcsc.hostgroup"
	LabelHostname      = "com.suse.tcsc.hostname"
	LabelSupportfiles  = "com.suse.tcsc.supportfiles"
	LabelSupportconfig = "com.suse.tcsc.supportconfig"
	LabelUUID          = "com.suse.tcsc.uuid"
	LabelAgentID       = "com.suse.tcsc.agent_id"
	LabelEnvPrefix     = "com.suse.tcsc.env."

	StackHost = "host"
)

const (
	DefaultImage        = "tscs_host"
	DefaultNetwork      = "tcsc_default"
	DefaultPollInterval = 200 * time.Millisecond
	DefaultProvider     = "default"

	startupCommand = "/sc/startup"
	manifestPath   = "/manifest"
)

// HostDescriptor describes one host of a support bundle set
type HostDescriptor struct {
	Hostname         string
	SupportfilesPath string
	// Environment holds the detected provider, cluster_type, ... values
	Environment map[string]string
}

// Host is a host container as read from its labels
type Host struct {
	Name          string            `json:"name"`
	ContainerID   string            `json:"container_id"`
	ShortID       string            `json:"container_short_id"`
	Hostgroup     string            `json:"hostgroup"`
	Hostname      string            `json:"hostname"`
	AgentID       string            `json:"agent_id"`
	Supportfiles  string            `json:"supportfiles"`
	Supportconfig string            `json:"supportconfig"`
	Environment   map[string]string `json:"environment"`
	Status        string            `json:"status"`
}

func hostFromContainer(c container.Container) Host {
	h := Host{
		Name:          orDash(c.Name),
		ContainerID:   c.ID,
		ShortID:       c.ShortID(),
		Hostgroup:     orDash(c.Labels[LabelHostgroup]),
		Hostname:      orDash(c.Labels[LabelHostname]),
		AgentID:       orDash(c.Labels[LabelAgentID]),
		Supportfiles:  orDash(c.Labels[LabelSupportfiles]),
		Supportconfig: orDash(c.Labels[LabelSupportconfig]),
		Environment:   make(map[string]string),
		Status:        c.Status,
	}
	if h.Status == "" {
		h.Status = "unknown"
	}
	for _, key := range catalog.EnvironmentKeys {
		if value := c.Labels[LabelEnvPrefix+key]; value != "" {
			h.Environment[key] = value
		}
	}
	if h.Environment["provider"] == "" {
		h.Environment["provider"] = DefaultProvider
	}
	return h
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Filter narrows Containers; empty fields match everything
type Filter struct {
	Hostgroup string
	Name      string
}

func (f Filter) match(h Host) bool {
	if f.Hostgroup != "" && h.Hostgroup != f.Hostgroup {
		return false
	}
	if f.Name != "" && h.Name != f.Name {
		return false
	}
	return true
}

type Options struct {
	// InstallationID is the id of this tcsc installation, part of every
	// container name and label set
	InstallationID string
	Image          string
	Network        string
	// Label selects the host containers ("key=value")
	Label string
	// DockerTimeout bounds stop operations
	DockerTimeout time.Duration
	// StartupTimeout is the length of both stability phases
	StartupTimeout time.Duration
	PollInterval   time.Duration
	// HostRootFS is removed from bind paths when tcsc itself runs in a
	// container with the host's root file system mounted there
	HostRootFS string
}

type Manager struct {
	runtime container.Runtime
	clock   clock.Clock
	logger  logging.Logger
	options Options
	ids     func() (machineID string, agentID string)
}

func NewManager(runtime container.Runtime, clk clock.Clock, options Options, logger logging.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if options.Image == "" {
		options.Image = DefaultImage
	}
	if options.Network == "" {
		options.Network = DefaultNetwork
	}
	if options.Label == "" {
		options.Label = LabelStack + "=" + StackHost
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	return &Manager{
		runtime: runtime,
		clock:   clk,
		logger:  logger,
		options: options,
		ids:     GenerateIDs,
	}
}

// Containers returns the host containers of this installation matching
// the filter, sorted by host group and name.
func (m *Manager) Containers(ctx context.Context, filter Filter) ([]Host, error) {
	listed, err := m.runtime.List(ctx, m.options.Label)
	if err != nil {
		return nil, err
	}
	var hosts []Host
	for _, c := range listed {
		if c.Labels[LabelUUID] != m.options.InstallationID {
			continue
		}
		h := hostFromContainer(c)
		if filter.match(h) {
			hosts = append(hosts, h)
		}
	}
	sort.SliceStable(hosts, func(i, j int) bool {
		if hosts[i].Hostgroup != hosts[j].Hostgroup {
			return hosts[i].Hostgroup < hosts[j].Hostgroup
		}
		return hosts[i].Name < hosts[j].Name
	})
	return hosts, nil
}

// Hostgroups returns the names of all host groups, sorted
func (m *Manager) Hostgroups(ctx context.Context) ([]string, error) {
	hosts, err := m.Containers(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	groups := []string{}
	for _, h := range hosts {
		if !seen[h.Hostgroup] {
			seen[h.Hostgroup] = true
			groups = append(groups, h.Hostgroup)
		}
	}
	return groups, nil
}

// Logs returns the log lines of the named host container
func (m *Manager) Logs(ctx context.Context, name string, tail int) ([]string, error) {
	hosts, err := m.Containers(ctx, Filter{Name: name})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, errors.NewHostsError(fmt.Sprintf("host container %s does not exist", name), nil)
	}
	out, err := m.runtime.Logs(ctx, hosts[0].ContainerID, tail)
	if err != nil {
		return nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

func (m *Manager) containerName(hostgroup, hostname string) string {
	return fmt.Sprintf("tcsc-host-%s-%s-%s", hostgroup, hostname, m.options.InstallationID)
}
