// Package app implements the tcsc commands. Every command prints its
// outcome through the printer and returns a DomainError on failure; the
// caller maps that error to the exit status.
package app

import (
	"context"
	"sort"

	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/config"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/execution"
	"github.com/tcsc-project/tcsc/pkg/hosts"
	"github.com/tcsc-project/tcsc/pkg/logging"
	"github.com/tcsc-project/tcsc/pkg/render"
	"github.com/tcsc-project/tcsc/pkg/stack"
	"github.com/tcsc-project/tcsc/pkg/supportfiles"
	"github.com/tcsc-project/tcsc/pkg/wanda"
)

type Options struct {
	Config  *config.Config
	Printer *render.Printer
	Logger  logging.Logger
	Runtime container.Runtime
	Client  *wanda.Client
	Clock   clock.Clock
	// Files locates the support files given on the command line
	Files supportfiles.Options
}

type App struct {
	config  *config.Config
	printer *render.Printer
	logger  logging.Logger
	runtime container.Runtime
	client  *wanda.Client
	clock   clock.Clock
	files   supportfiles.Options

	hosts        *hosts.Manager
	orchestrator *execution.Orchestrator
	// discovered on first use, most commands do not touch the stack
	stack *stack.Stack
}

func New(options Options) *App {
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	cfg := options.Config

	return &App{
		config:  cfg,
		printer: options.Printer,
		logger:  options.Logger,
		runtime: options.Runtime,
		client:  options.Client,
		clock:   clk,
		files:   options.Files,
		hosts: hosts.NewManager(options.Runtime, clk, hosts.Options{
			InstallationID: cfg.ID,
			Image:          cfg.HostsImage,
			Network:        cfg.HostsNetwork,
			Label:          cfg.HostsLabel,
			DockerTimeout:  cfg.DockerTimeoutDuration(),
			StartupTimeout: cfg.StartupTimeoutDuration(),
			HostRootFS:     options.Files.HostRootFS,
		}, options.Logger.Named("hosts")),
		orchestrator: execution.NewOrchestrator(options.Client, clk, options.Logger.Named("execution")),
	}
}

func (a *App) serviceStack(ctx context.Context) (*stack.Stack, error) {
	if a.stack != nil {
		return a.stack, nil
	}
	s, err := stack.New(ctx, a.runtime, a.client, a.clock, stack.Options{
		Containers: a.config.WandaContainers,
		Label:      a.config.WandaLabel,
		Timeout:    a.config.DockerTimeoutDuration(),
	}, a.logger.Named("stack"))
	if err != nil {
		return nil, err
	}
	a.stack = s
	return s, nil
}

// ensureWanda fails with a not operational error unless the stack is up,
// starting it first when autostart is configured.
func (a *App) ensureWanda(ctx context.Context) error {
	s, err := a.serviceStack(ctx)
	if err != nil {
		return err
	}
	return s.EnsureRunning(ctx, a.config.Autostart())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
