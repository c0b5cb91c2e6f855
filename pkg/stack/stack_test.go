package stack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/container/containertest"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
)

const wandaLabel = "com.suse.tcsc.stack=wanda"

type probe struct {
	operational bool
	calls       int
}

func (p *probe) Operational(ctx context.Context) bool {
	p.calls++
	return p.operational
}

func stackContainer(name, status string, labels map[string]string) container.Container {
	return container.Container{ID: "id-" + name, Name: name, Status: status, Labels: labels}
}

func runningLabels() map[string]string {
	return map[string]string{LabelExpectedState: container.StateRunning}
}

func newStack(t *testing.T, rt *containertest.MockRuntime, p *probe, clk clock.Clock, names ...string) *Stack {
	t.Helper()
	s, err := New(context.Background(), rt, p, clk, Options{
		Containers: names,
		Label:      wandaLabel,
		Timeout:    3 * time.Second,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return s
}

func listing(names ...string) []container.Container {
	out := make([]container.Container, 0, len(names))
	for _, name := range names {
		out = append(out, stackContainer(name, container.StateRunning, runningLabels()))
	}
	return out
}

func TestNew_RequiresConfiguredContainers(t *testing.T) {
	tests := []struct {
		name       string
		discovered []string
		wantErr    bool
	}{
		{"exact", []string{"tcsc-wanda", "tcsc-postgres", "tcsc-rabbitmq"}, false},
		{"missing", []string{"tcsc-wanda", "tcsc-postgres"}, true},
		{"extra", []string{"tcsc-wanda", "tcsc-postgres", "tcsc-rabbitmq", "other"}, true},
		{"none", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &containertest.MockRuntime{}
			rt.On("List", mock.Anything, wandaLabel).Return(listing(tt.discovered...), nil)

			s, err := New(context.Background(), rt, &probe{}, clock.AutoAdvance(time.Unix(0, 0)), Options{
				Containers: []string{"tcsc-rabbitmq", "tcsc-postgres", "tcsc-wanda"},
				Label:      wandaLabel,
			}, logging.NewNopLogger())
			if tt.wantErr {
				assert.True(t, errors.IsServiceError(err))
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"tcsc-postgres", "tcsc-rabbitmq", "tcsc-wanda"}, s.Names())
		})
	}
}

func TestNew_RejectsPollIntervalAboveTimeout(t *testing.T) {
	rt := &containertest.MockRuntime{}

	_, err := New(context.Background(), rt, &probe{}, nil, Options{
		Containers:   []string{"tcsc-wanda"},
		Label:        wandaLabel,
		Timeout:      time.Second,
		PollInterval: 2 * time.Second,
	}, logging.NewNopLogger())
	assert.True(t, errors.IsValidationError(err))
	rt.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestStack_ContainerStatus(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda", "tcsc-postgres"), nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
		stackContainer("tcsc-wanda", container.StateExited, runningLabels()), nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-postgres").Return(
		stackContainer("tcsc-postgres", container.StateRunning, runningLabels()), nil)

	s := newStack(t, rt, &probe{operational: true}, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda", "tcsc-postgres")

	status, err := s.ContainerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ContainerState{Current: "exited", Expected: "running"}, status["tcsc-wanda"])
	assert.True(t, status["tcsc-postgres"].OK())
	assert.False(t, status["tcsc-wanda"].OK())

	assert.False(t, s.Status(context.Background()))
}

func TestStack_ContainerStatusMissingLabel(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
		stackContainer("tcsc-wanda", container.StateRunning, nil), nil)

	p := &probe{operational: true}
	s := newStack(t, rt, p, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda")

	_, err := s.ContainerStatus(context.Background())
	assert.True(t, errors.IsServiceError(err))
	assert.Contains(t, err.Error(), LabelExpectedState)

	assert.False(t, s.Status(context.Background()))
	assert.Equal(t, 0, p.calls)
}

func TestStack_StatusNeedsHealthyService(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
		stackContainer("tcsc-wanda", container.StateRunning, runningLabels()), nil)

	p := &probe{operational: false}
	s := newStack(t, rt, p, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda")
	assert.False(t, s.Status(context.Background()))

	p.operational = true
	assert.True(t, s.Status(context.Background()))
}

func TestStack_Start(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda", "tcsc-postgres"), nil)
	rt.InspectSequence("id-tcsc-wanda",
		stackContainer("tcsc-wanda", "", runningLabels()), container.StateExited, container.StateRunning)
	rt.On("Inspect", mock.Anything, "id-tcsc-postgres").Return(
		stackContainer("tcsc-postgres", container.StateRunning, runningLabels()), nil)
	rt.On("Start", mock.Anything, "id-tcsc-wanda").Return(nil).Once()

	clk := clock.AutoAdvance(time.Unix(0, 0))
	s := newStack(t, rt, &probe{operational: true}, clk, "tcsc-wanda", "tcsc-postgres")

	started, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tcsc-wanda"}, started)
	assert.Empty(t, clk.Waits())
	rt.AssertExpectations(t)
}

func TestStack_StartTimeout(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
		stackContainer("tcsc-wanda", container.StateCreated, runningLabels()), nil)
	rt.On("Start", mock.Anything, "id-tcsc-wanda").Return(nil)

	clk := clock.AutoAdvance(time.Unix(0, 0))
	s := newStack(t, rt, &probe{operational: true}, clk, "tcsc-wanda")

	started, err := s.Start(context.Background())
	assert.True(t, errors.IsServiceError(err))
	assert.Contains(t, err.Error(), "tcsc-wanda")
	assert.Equal(t, []string{"tcsc-wanda"}, started)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clk.Waits())
}

func TestStack_Stop(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda", "tcsc-postgres"), nil)
	rt.InspectSequence("id-tcsc-wanda",
		stackContainer("tcsc-wanda", "", runningLabels()),
		container.StateRunning, container.StateRunning, container.StateExited)
	rt.On("Inspect", mock.Anything, "id-tcsc-postgres").Return(
		stackContainer("tcsc-postgres", container.StateExited, runningLabels()), nil)
	rt.On("Stop", mock.Anything, "id-tcsc-wanda", 3*time.Second).Return(nil).Once()

	clk := clock.AutoAdvance(time.Unix(0, 0))
	s := newStack(t, rt, &probe{}, clk, "tcsc-wanda", "tcsc-postgres")

	stopped, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tcsc-wanda"}, stopped)
	assert.Equal(t, []time.Duration{time.Second}, clk.Waits())
	rt.AssertExpectations(t)
}

func TestStack_StopTimeoutNamesStragglers(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
		stackContainer("tcsc-wanda", container.StateRunning, runningLabels()), nil)
	rt.On("Stop", mock.Anything, "id-tcsc-wanda", 3*time.Second).Return(nil)

	s := newStack(t, rt, &probe{}, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda")

	_, err := s.Stop(context.Background())
	assert.True(t, errors.IsServiceError(err))
	assert.Contains(t, err.Error(), "not yet exited: tcsc-wanda")
}

func TestStack_MandatoryVolumesPresent(t *testing.T) {
	rt := &containertest.MockRuntime{}
	rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-postgres", "tcsc-rabbitmq", "tcsc-wanda"), nil)

	postgres := stackContainer("tcsc-postgres", container.StateRunning, map[string]string{
		LabelExpectedVolumes: "pg_data, pg_conf",
	})
	postgres.Mounts = []container.Mount{
		{Type: "volume", Name: "pg_conf"},
		{Type: "volume", Name: "pg_data"},
		{Type: "bind", Source: "/etc/hosts"},
	}
	rabbit := stackContainer("tcsc-rabbitmq", container.StateRunning, map[string]string{
		LabelExpectedVolumes: "rabbit_data",
	})
	wanda := stackContainer("tcsc-wanda", container.StateRunning, runningLabels())

	rt.On("Inspect", mock.Anything, "id-tcsc-postgres").Return(postgres, nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-rabbitmq").Return(rabbit, nil)
	rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(wanda, nil)

	s := newStack(t, rt, &probe{}, clock.AutoAdvance(time.Unix(0, 0)),
		"tcsc-postgres", "tcsc-rabbitmq", "tcsc-wanda")

	report, err := s.MandatoryVolumesPresent(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 2)

	assert.False(t, report["tcsc-postgres"].Missing())
	assert.Equal(t, []string{"pg_data", "pg_conf"}, report["tcsc-postgres"].Expected)

	assert.True(t, report["tcsc-rabbitmq"].Missing())
	assert.Empty(t, report["tcsc-rabbitmq"].Actual)
}

func TestStack_EnsureRunning(t *testing.T) {
	t.Run("already_operational", func(t *testing.T) {
		rt := &containertest.MockRuntime{}
		rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
		rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
			stackContainer("tcsc-wanda", container.StateRunning, runningLabels()), nil)

		s := newStack(t, rt, &probe{operational: true}, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda")
		assert.NoError(t, s.EnsureRunning(context.Background(), false))
		rt.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
	})

	t.Run("no_autostart", func(t *testing.T) {
		rt := &containertest.MockRuntime{}
		rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
		rt.On("Inspect", mock.Anything, "id-tcsc-wanda").Return(
			stackContainer("tcsc-wanda", container.StateExited, runningLabels()), nil)

		s := newStack(t, rt, &probe{operational: true}, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda")
		err := s.EnsureRunning(context.Background(), false)
		assert.True(t, errors.IsNotOperationalError(err))
		assert.Equal(t, errors.ExitNotOperational, errors.ExitCode(err))
	})

	t.Run("autostart", func(t *testing.T) {
		rt := &containertest.MockRuntime{}
		rt.On("List", mock.Anything, wandaLabel).Return(listing("tcsc-wanda"), nil)
		rt.InspectSequence("id-tcsc-wanda",
			stackContainer("tcsc-wanda", "", runningLabels()),
			container.StateExited, container.StateExited, container.StateRunning)
		rt.On("Start", mock.Anything, "id-tcsc-wanda").Return(nil).Once()

		s := newStack(t, rt, &probe{operational: true}, clock.AutoAdvance(time.Unix(0, 0)), "tcsc-wanda")
		assert.NoError(t, s.EnsureRunning(context.Background(), true))
		rt.AssertExpectations(t)
	})
}
