package app

import (
	"context"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/render"
	"github.com/tcsc-project/tcsc/pkg/stack"
)

type containerStatus struct {
	Name   string               `json:"name"`
	Status stack.ContainerState `json:"status"`
}

type missingVolumes struct {
	Name    string   `json:"name"`
	Volumes []string `json:"volumes"`
}

type wandaStatus struct {
	Containers     []containerStatus `json:"containers"`
	MissingVolumes []missingVolumes  `json:"missing_volumes"`
	Operational    bool              `json:"operational"`
}

// WandaStart starts the stack containers and waits for the service
func (a *App) WandaStart(ctx context.Context) error {
	s, err := a.serviceStack(ctx)
	if err != nil {
		return err
	}
	started, err := s.Start(ctx)
	if len(started) > 0 {
		a.printer.Infof("Started containers: %s", strings.Join(started, ", "))
	}
	if err != nil {
		if errors.IsServiceError(err) {
			return errors.NewNotOperationalError("Wanda could not be started", err)
		}
		return err
	}
	a.printer.OKf("Wanda completely started.")
	return a.printer.JSON(map[string]interface{}{"success": true, "started_containers": started})
}

// WandaStop stops the stack containers
func (a *App) WandaStop(ctx context.Context) error {
	s, err := a.serviceStack(ctx)
	if err != nil {
		return err
	}
	stopped, err := s.Stop(ctx)
	if len(stopped) > 0 {
		a.printer.Infof("Stopped containers: %s", strings.Join(stopped, ", "))
	}
	if err != nil {
		if errors.IsServiceError(err) {
			return errors.NewNotOperationalError("Wanda could not be stopped", err)
		}
		return err
	}
	a.printer.OKf("Wanda completely stopped.")
	return a.printer.JSON(map[string]interface{}{"success": true, "stopped_containers": stopped})
}

// WandaStatus prints the container states and mandatory volumes. A stack
// that is not operational is reported as an error after printing.
func (a *App) WandaStatus(ctx context.Context) error {
	s, err := a.serviceStack(ctx)
	if err != nil {
		return err
	}
	states, err := s.ContainerStatus(ctx)
	if err != nil {
		return err
	}
	volumes, err := s.MandatoryVolumesPresent(ctx)
	if err != nil {
		return err
	}

	doc := wandaStatus{Containers: []containerStatus{}, MissingVolumes: []missingVolumes{}}
	items := make([]render.Item, 0, len(states))
	for _, name := range s.Names() {
		state := states[name]
		status := render.StatusOK
		if !state.OK() {
			status = render.StatusError
		}
		items = append(items, render.Item{Name: name, Status: status, StatusText: state.Current})
		doc.Containers = append(doc.Containers, containerStatus{Name: name, Status: state})
	}
	a.printer.Header("Wanda")
	a.printer.Status(items)

	for _, name := range sortedKeys(volumes) {
		report := volumes[name]
		if !report.Missing() {
			continue
		}
		a.printer.Failf("%s misses the mandatory volumes %q.", name, strings.Join(report.Expected, ", "))
		doc.MissingVolumes = append(doc.MissingVolumes, missingVolumes{Name: name, Volumes: report.Expected})
	}

	doc.Operational = len(doc.MissingVolumes) == 0 && s.Status(ctx)
	a.printer.Newline()
	if doc.Operational {
		a.printer.OKf("Wanda is operational.")
	} else {
		a.printer.Failf("Wanda is not operational!")
	}
	if err := a.printer.JSON(doc); err != nil {
		return err
	}
	if !doc.Operational {
		return errors.NewNotOperationalError("Wanda is not operational", nil)
	}
	return nil
}
