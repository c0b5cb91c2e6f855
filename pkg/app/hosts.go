package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/catalog"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/execution"
	"github.com/tcsc-project/tcsc/pkg/hosts"
	"github.com/tcsc-project/tcsc/pkg/render"
	"github.com/tcsc-project/tcsc/pkg/supportfiles"
)

type createResult struct {
	Success bool     `json:"success"`
	Started []string `json:"started"`
	Failed  []string `json:"failed"`
}

type hostDetails struct {
	hosts.Host
	// Manifest is the parsed manifest or the reason it is unavailable
	Manifest interface{} `json:"manifest"`
}

type hostStatus struct {
	Name    string       `json:"name"`
	Status  string       `json:"status"`
	Details *hostDetails `json:"details,omitempty"`
}

// HostsCreate creates a host container per support file. envPairs
// override the detected environment of every host.
func (a *App) HostsCreate(ctx context.Context, hostgroup string, envPairs []string, files []string) error {
	overrides, err := execution.ParsePairs(envPairs)
	if err != nil {
		return err
	}
	if err := a.ensureWanda(ctx); err != nil {
		return err
	}

	groups, err := a.hosts.Hostgroups(ctx)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group == hostgroup {
			return errors.NewHostsError(fmt.Sprintf("host group %q already exists", hostgroup), nil)
		}
	}

	scan := supportfiles.Scan(files, a.files)
	if len(scan.Issues) > 0 {
		messages := scan.IssueMessages()
		for _, message := range messages {
			a.printer.Failf("Error reading support files: %s", message)
		}
		if err := a.printer.JSON(map[string]interface{}{"success": false, "errors": messages}); err != nil {
			return err
		}
		return errors.NewHostsError(fmt.Sprintf("%d support files could not be used", len(messages)), nil).
			WithContext("issues", messages)
	}

	result := createResult{Started: []string{}, Failed: []string{}}
	failures := errors.NewErrorCollection()
	for _, host := range scan.Hosts {
		name, err := a.hosts.Create(ctx, hostgroup, hosts.HostDescriptor{
			Hostname:         host.Hostname,
			SupportfilesPath: host.Path,
			Environment:      host.Environment,
		}, overrides)
		if err != nil {
			a.printer.Failf("Could not start host container for host %q: %v", host.Hostname, err)
			result.Failed = append(result.Failed, host.Hostname)
			failures.Add(err)
			continue
		}
		a.printer.OKf("Host container %q started.", name)
		result.Started = append(result.Started, name)
	}
	result.Success = !failures.HasErrors()

	if err := a.printer.JSON(result); err != nil {
		return err
	}
	if failures.HasErrors() {
		return errors.NewHostsError(
			fmt.Sprintf("%d of %d host containers could not be started", len(result.Failed), len(scan.Hosts)),
			failures.ToError())
	}
	return nil
}

// HostsStart starts the stopped hosts of the group
func (a *App) HostsStart(ctx context.Context, hostgroup string) error {
	if err := a.ensureWanda(ctx); err != nil {
		return err
	}
	if err := a.requireHostgroup(ctx, hostgroup); err != nil {
		return err
	}
	started, err := a.hosts.StartHostgroup(ctx, hostgroup)
	if len(started) > 0 {
		a.printer.Infof("Started containers: %s", strings.Join(started, ", "))
	}
	if err != nil {
		return err
	}
	a.printer.OKf("Host group %q started.", hostgroup)
	return a.printer.JSON(map[string]interface{}{"success": true, "started": started})
}

func (a *App) HostsStop(ctx context.Context, hostgroup string) error {
	if err := a.requireHostgroup(ctx, hostgroup); err != nil {
		return err
	}
	stopped, err := a.hosts.StopHostgroup(ctx, hostgroup)
	if len(stopped) > 0 {
		a.printer.Infof("Stopped containers: %s", strings.Join(stopped, ", "))
	}
	if err != nil {
		return err
	}
	a.printer.OKf("Host group %q completely stopped.", hostgroup)
	return a.printer.JSON(map[string]interface{}{"success": true, "stopped": stopped})
}

func (a *App) HostsRemove(ctx context.Context, hostgroup string) error {
	if err := a.requireHostgroup(ctx, hostgroup); err != nil {
		return err
	}
	removed, err := a.hosts.RemoveHostgroup(ctx, hostgroup)
	if len(removed) > 0 {
		a.printer.Infof("Removed containers: %s", strings.Join(removed, ", "))
	}
	if err != nil {
		return err
	}
	a.printer.OKf("Host group %q completely removed.", hostgroup)
	return a.printer.JSON(map[string]interface{}{"success": true, "removed": removed})
}

// HostsRescan reloads the support files inside every host of the group
func (a *App) HostsRescan(ctx context.Context, hostgroup string) error {
	if err := a.requireHostgroup(ctx, hostgroup); err != nil {
		return err
	}
	states, err := a.hosts.RescanHostgroup(ctx, hostgroup)
	if err != nil {
		return err
	}

	failed := make(map[string]string)
	for _, name := range sortedKeys(states) {
		if state := states[name]; !state.OK {
			a.printer.Failf("Reloading supportfiles of %q failed: %s", name, state.Detail)
			failed[name] = state.Detail
		}
	}
	if err := a.printer.JSON(map[string]interface{}{"success": len(failed) == 0, "failed": failed}); err != nil {
		return err
	}
	if len(failed) > 0 {
		return errors.NewHostsError(fmt.Sprintf("reloading supportfiles failed on %d hosts", len(failed)), nil)
	}
	a.printer.OKf("Reloading supportfiles successful.")
	return nil
}

// HostsStatus prints the hosts of one or all groups. With details the
// labels, the environment and the manifest of every host are included.
func (a *App) HostsStatus(ctx context.Context, hostgroup string, details bool) error {
	groups, err := a.hosts.Hostgroups(ctx)
	if err != nil {
		return err
	}
	if hostgroup != "" {
		if err := a.requireHostgroup(ctx, hostgroup); err != nil {
			return err
		}
		groups = []string{hostgroup}
	}

	doc := make(map[string][]hostStatus, len(groups))
	for _, group := range groups {
		members, err := a.hosts.Containers(ctx, hosts.Filter{Hostgroup: group})
		if err != nil {
			return err
		}

		entries := []hostStatus{}
		items := make([]render.Item, 0, len(members))
		for _, host := range members {
			item := render.Item{Name: host.Name, Status: render.StatusOK, StatusText: host.Status}
			if host.Status != container.StateRunning {
				item.Status = render.StatusError
			}
			entry := hostStatus{Name: host.Name, Status: host.Status}
			if details {
				manifest, text := a.manifest(ctx, host)
				item.Details = hostDetailLines(host, text)
				entry.Details = &hostDetails{Host: host, Manifest: manifest}
			}
			items = append(items, item)
			entries = append(entries, entry)
		}
		doc[group] = entries

		a.printer.Header(group)
		a.printer.Status(items)
		a.printer.Newline()
	}
	return a.printer.JSON(doc)
}

// HostsLogs prints the log of a host container, the last lines only if
// lines is positive.
func (a *App) HostsLogs(ctx context.Context, name string, lines int) error {
	if lines < 0 {
		return errors.NewValidationError("the amount of lines must be greater 0", nil)
	}
	logs, err := a.hosts.Logs(ctx, name, lines)
	if err != nil {
		return err
	}
	a.printer.Lines(logs)
	return a.printer.JSON(logs)
}

func (a *App) requireHostgroup(ctx context.Context, hostgroup string) error {
	groups, err := a.hosts.Hostgroups(ctx)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group == hostgroup {
			return nil
		}
	}
	return errors.NewHostsError(fmt.Sprintf("host group %q does not exist", hostgroup), nil)
}

// manifest returns the manifest for JSON and as text
func (a *App) manifest(ctx context.Context, host hosts.Host) (interface{}, string) {
	if host.Status != container.StateRunning {
		return "host is not running", "host is not running"
	}
	manifest, err := a.hosts.GetManifest(ctx, host)
	if err != nil {
		return err.Error(), err.Error()
	}
	lines := make([]string, 0, len(manifest))
	for _, key := range sortedKeys(manifest) {
		lines = append(lines, key+": "+manifest[key])
	}
	return manifest, strings.Join(lines, "\n")
}

func hostDetailLines(host hosts.Host, manifest string) []render.Detail {
	details := []render.Detail{
		{Key: "container_id", Value: host.ContainerID},
		{Key: "container_short_id", Value: host.ShortID},
		{Key: "agent_id", Value: host.AgentID},
		{Key: "hostname", Value: host.Hostname},
		{Key: "hostgroup", Value: host.Hostgroup},
		{Key: "supportconfig", Value: host.Supportconfig},
		{Key: "supportfiles", Value: host.Supportfiles},
	}
	for _, key := range catalog.EnvironmentKeys {
		details = append(details, render.Detail{Key: key, Value: orDash(host.Environment[key])})
	}
	return append(details, render.Detail{Key: "manifest", Value: orDash(manifest)})
}
