// Package stack manages the containers of the check service backend.
package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
	"github.com/tcsc-project/tcsc/pkg/monitoring"
)

const (
	LabelExpectedState   = "com.suse.tcsc.expected_state"
	LabelExpectedVolumes = "com.suse.tcsc.expected_volumes"

	DefaultPollInterval = time.Second
)

// HealthProbe reports whether the service itself is healthy and ready
type HealthProbe interface {
	Operational(ctx context.Context) bool
}

type Options struct {
	// Containers is the required set of container names
	Containers []string
	// Label selects the stack containers ("key=value")
	Label string
	// Timeout bounds start and stop
	Timeout      time.Duration
	PollInterval time.Duration
}

// ContainerState compares the live state of a container with its label
type ContainerState struct {
	Current  string `json:"current"`
	Expected string `json:"expected"`
}

func (s ContainerState) OK() bool {
	return s.Current == s.Expected
}

type VolumeReport struct {
	Expected []string `json:"expected"`
	Actual   []string `json:"actual"`
}

// Missing reports whether the mounted volumes differ from the expected ones
func (r VolumeReport) Missing() bool {
	expected := sortedCopy(r.Expected)
	actual := sortedCopy(r.Actual)
	if len(expected) != len(actual) {
		return true
	}
	for i := range expected {
		if expected[i] != actual[i] {
			return true
		}
	}
	return false
}

// Stack is the set of backend containers. Its status is always computed
// from the live containers.
type Stack struct {
	runtime container.Runtime
	probe   HealthProbe
	clock   clock.Clock
	logger  logging.Logger
	options Options
	// container ids by name
	ids map[string]string
}

// New discovers the stack containers and fails when they are not exactly
// the configured ones.
func New(ctx context.Context, runtime container.Runtime, probe HealthProbe, clk clock.Clock, options Options, logger logging.Logger) (*Stack, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if err := monitoring.ValidatePollOptions(monitoring.PollOptions{Interval: options.PollInterval, Timeout: options.Timeout}); err != nil {
		return nil, err
	}

	discovered, err := runtime.List(ctx, options.Label)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(discovered))
	names := make([]string, 0, len(discovered))
	for _, c := range discovered {
		ids[c.Name] = c.ID
		names = append(names, c.Name)
	}

	if !sameSet(names, options.Containers) {
		return nil, errors.NewServiceError("not all required Wanda containers are present", nil).
			WithContext("required", sortedCopy(options.Containers)).
			WithContext("discovered", sortedCopy(names))
	}

	return &Stack{
		runtime: runtime,
		probe:   probe,
		clock:   clk,
		logger:  logger,
		options: options,
		ids:     ids,
	}, nil
}

// Names returns the container names sorted
func (s *Stack) Names() []string {
	names := make([]string, 0, len(s.ids))
	for name := range s.ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Stack) containers(ctx context.Context) ([]container.Container, error) {
	out := make([]container.Container, 0, len(s.ids))
	for _, name := range s.Names() {
		c, err := s.runtime.Inspect(ctx, s.ids[name])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ContainerStatus returns the current and expected state of each container
func (s *Stack) ContainerStatus(ctx context.Context) (map[string]ContainerState, error) {
	containers, err := s.containers(ctx)
	if err != nil {
		return nil, err
	}
	status := make(map[string]ContainerState, len(containers))
	for _, c := range containers {
		expected, ok := c.Labels[LabelExpectedState]
		if !ok {
			return nil, errors.NewServiceError(
				fmt.Sprintf("could not get the label %q for %s", LabelExpectedState, c.Name), nil)
		}
		status[c.Name] = ContainerState{Current: c.Status, Expected: expected}
	}
	return status, nil
}

// Status is true when every container is in its expected state and the
// service reports healthy and ready. Failures count as not operational.
func (s *Stack) Status(ctx context.Context) bool {
	status, err := s.ContainerStatus(ctx)
	if err != nil {
		s.logger.Debugf("container status unavailable: %v", err)
		return false
	}
	for name, state := range status {
		if !state.OK() {
			s.logger.Debugf("container %s is %s, expected %s", name, state.Current, state.Expected)
			return false
		}
	}
	return s.probe.Operational(ctx)
}

// Start starts the containers in state exited or created and waits until
// the stack is operational. It returns the names of the started containers.
func (s *Stack) Start(ctx context.Context) ([]string, error) {
	containers, err := s.containers(ctx)
	if err != nil {
		return nil, err
	}

	started := []string{}
	for _, c := range containers {
		if c.Status != container.StateExited && c.Status != container.StateCreated {
			continue
		}
		s.logger.Infof("starting container %s", c.Name)
		if err := s.runtime.Start(ctx, c.ID); err != nil {
			return started, err
		}
		started = append(started, c.Name)
	}

	ok, err := monitoring.WaitFor(ctx, s.clock, s.pollOptions(), func(ctx context.Context) (bool, error) {
		return s.Status(ctx), nil
	})
	if err != nil {
		return started, err
	}
	if !ok {
		return started, errors.NewServiceError(fmt.Sprintf(
			"timeout of %s reached; Wanda did not become operational after start of containers: %s",
			s.options.Timeout, strings.Join(started, ", ")), nil)
	}
	return started, nil
}

// Stop stops the running containers and waits until all are exited. It
// returns the names of the stopped containers.
func (s *Stack) Stop(ctx context.Context) ([]string, error) {
	containers, err := s.containers(ctx)
	if err != nil {
		return nil, err
	}

	stopped := []string{}
	for _, c := range containers {
		if c.Status != container.StateRunning {
			continue
		}
		s.logger.Infof("stopping container %s", c.Name)
		if err := s.runtime.Stop(ctx, c.ID, s.options.Timeout); err != nil {
			return stopped, err
		}
		stopped = append(stopped, c.Name)
	}

	var notExited []string
	ok, err := monitoring.WaitFor(ctx, s.clock, s.pollOptions(), func(ctx context.Context) (bool, error) {
		current, err := s.containers(ctx)
		if err != nil {
			return false, err
		}
		notExited = notExited[:0]
		for _, c := range current {
			if c.Status != container.StateExited {
				notExited = append(notExited, c.Name)
			}
		}
		return len(notExited) == 0, nil
	})
	if err != nil {
		return stopped, err
	}
	if !ok {
		return stopped, errors.NewServiceError(fmt.Sprintf(
			"timeout of %s reached; containers not yet exited: %s",
			s.options.Timeout, strings.Join(notExited, ", ")), nil)
	}
	return stopped, nil
}

// MandatoryVolumesPresent compares the volumes named by each container's
// label with the volumes it mounts. Containers without the label are left out.
func (s *Stack) MandatoryVolumesPresent(ctx context.Context) (map[string]VolumeReport, error) {
	containers, err := s.containers(ctx)
	if err != nil {
		return nil, err
	}
	report := make(map[string]VolumeReport)
	for _, c := range containers {
		label := strings.TrimSpace(c.Labels[LabelExpectedVolumes])
		if label == "" {
			continue
		}
		expected := strings.Split(label, ",")
		for i := range expected {
			expected[i] = strings.TrimSpace(expected[i])
		}
		actual := c.Volumes()
		if actual == nil {
			actual = []string{}
		}
		report[c.Name] = VolumeReport{Expected: expected, Actual: actual}
	}
	return report, nil
}

// EnsureRunning makes sure the stack is operational before it is used,
// starting it first when autostart is set.
func (s *Stack) EnsureRunning(ctx context.Context, autostart bool) error {
	if s.Status(ctx) {
		return nil
	}
	if autostart {
		started, err := s.Start(ctx)
		if err == nil {
			s.logger.Infof("Wanda started: %s", strings.Join(started, ", "))
			return nil
		}
		return errors.NewNotOperationalError("Wanda is not operational", err)
	}
	return errors.NewNotOperationalError("Wanda is not operational", nil)
}

func (s *Stack) pollOptions() monitoring.PollOptions {
	return monitoring.PollOptions{Interval: s.options.PollInterval, Timeout: s.options.Timeout}
}

func sameSet(a, b []string) bool {
	x, y := sortedCopy(a), sortedCopy(b)
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func sortedCopy(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	sort.Strings(out)
	return out
}
