// Package containertest provides a testify mock of container.Runtime.
package containertest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tcsc-project/tcsc/pkg/container"
)

type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) List(ctx context.Context, label string) ([]container.Container, error) {
	args := m.Called(ctx, label)
	list, _ := args.Get(0).([]container.Container)
	return list, args.Error(1)
}

func (m *MockRuntime) Inspect(ctx context.Context, id string) (container.Container, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(container.Container), args.Error(1)
}

func (m *MockRuntime) Run(ctx context.Context, spec container.RunSpec) (container.Container, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(container.Container), args.Error(1)
}

func (m *MockRuntime) Start(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRuntime) Stop(ctx context.Context, id string, timeout time.Duration) error {
	return m.Called(ctx, id, timeout).Error(0)
}

func (m *MockRuntime) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRuntime) Exec(ctx context.Context, id string, cmd []string) (container.ExecResult, error) {
	args := m.Called(ctx, id, cmd)
	return args.Get(0).(container.ExecResult), args.Error(1)
}

func (m *MockRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	args := m.Called(ctx, id, tail)
	return args.String(0), args.Error(1)
}

func (m *MockRuntime) Close() error {
	return m.Called().Error(0)
}

// InspectSequence makes Inspect of id return the given states one after
// the other; the last one is repeated.
func (m *MockRuntime) InspectSequence(id string, base container.Container, states ...string) {
	for i, state := range states {
		c := base
		c.Status = state
		call := m.On("Inspect", mock.Anything, id).Return(c, nil)
		if i < len(states)-1 {
			call.Once()
		}
	}
}
