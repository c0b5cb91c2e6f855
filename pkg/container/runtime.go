// Package container abstracts the container runtime the stacks run on.
package container

import (
	"context"
	"strings"
	"time"
)

// Container states as reported by the runtime
const (
	StateCreated    = "created"
	StateRunning    = "running"
	StatePaused     = "paused"
	StateRestarting = "restarting"
	StateRemoving   = "removing"
	StateExited     = "exited"
	StateDead       = "dead"
)

type Mount struct {
	Type        string
	Name        string
	Source      string
	Destination string
}

// Container is a snapshot of a container; reload it with Inspect
type Container struct {
	ID     string
	Name   string
	Image  string
	Status string
	Labels map[string]string
	Mounts []Mount
}

// ShortID is the 12 character abbreviation of the id
func (c Container) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// Volumes lists the names of the named volumes mounted into the container
func (c Container) Volumes() []string {
	var volumes []string
	for _, m := range c.Mounts {
		if m.Type == "volume" {
			volumes = append(volumes, m.Name)
		}
	}
	return volumes
}

type RunSpec struct {
	Image   string
	Name    string
	Command []string
	Env     []string
	// Binds are "source:destination" pairs
	Binds   []string
	Network string
	Labels  map[string]string
}

type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stderr when set, stdout otherwise
func (r ExecResult) Output() string {
	if strings.TrimSpace(r.Stderr) != "" {
		return r.Stderr
	}
	return r.Stdout
}

// Runtime is the container runtime. Containers are always re-read from the
// runtime; callers must not assume exclusive ownership.
type Runtime interface {
	// List returns all containers, running or not, carrying the label
	// ("key=value" or "key").
	List(ctx context.Context, label string) ([]Container, error)
	Inspect(ctx context.Context, id string) (Container, error)
	// Run creates and starts a container
	Run(ctx context.Context, spec RunSpec) (Container, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeout time.Duration) error
	// Remove force-removes a container including its volumes
	Remove(ctx context.Context, id string) error
	Exec(ctx context.Context, id string, cmd []string) (ExecResult, error)
	// Logs returns the last tail lines of the log, everything when tail <= 0
	Logs(ctx context.Context, id string, tail int) (string, error)
	Close() error
}
