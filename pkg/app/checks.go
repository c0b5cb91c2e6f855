package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tcsc-project/tcsc/pkg/catalog"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/execution"
	"github.com/tcsc-project/tcsc/pkg/hosts"
	"github.com/tcsc-project/tcsc/pkg/render"
)

type RunOptions struct {
	Hostgroup string
	// Provider overrides the provider of the hosts
	Provider string
	Groups   []string
	Checks   []string
	// FailureOnly drops passing results
	FailureOnly bool
}

type checkEntry struct {
	Name    string                   `json:"name"`
	Status  catalog.SupportStatus    `json:"status"`
	Details *catalog.CheckDefinition `json:"details,omitempty"`
}

type checkStats struct {
	Available   int `json:"available"`
	Supported   int `json:"supported"`
	Unsupported int `json:"unsupported"`
	Unknown     int `json:"unknown"`
}

type checkList struct {
	Checks map[string][]checkEntry `json:"checks"`
	Stats  checkStats              `json:"stats"`
}

type runRow struct {
	Check       string   `json:"check"`
	Description string   `json:"description"`
	Result      string   `json:"result"`
	Hostname    string   `json:"hostname,omitempty"`
	AgentID     string   `json:"agent_id,omitempty"`
	Messages    []string `json:"messages,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type runReport struct {
	Hostgroup   string              `json:"hostgroup"`
	Hosts       []string            `json:"hosts"`
	Environment map[string]string   `json:"environment"`
	Selection   selectionSummary    `json:"checks"`
	Results     map[string][]runRow `json:"results"`
	Success     bool                `json:"success"`
}

type selectionSummary struct {
	Available []string `json:"available"`
	Skipped   []string `json:"skipped"`
	Selected  []string `json:"selected"`
}

type checkOutcome struct {
	results []execution.CheckResult
	err     error
}

var supportStatus = map[catalog.SupportStatus]struct {
	status render.Status
	text   string
}{
	catalog.SupportSupported:   {render.StatusOK, "supported"},
	catalog.SupportUnsupported: {render.StatusError, "not supported"},
	catalog.SupportUnknown:     {render.StatusWarn, "unknown"},
}

func (a *App) checks(ctx context.Context) ([]catalog.CheckDefinition, error) {
	raw, err := a.client.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	defs, issues := catalog.ClassifyCatalog(raw.Items)
	for _, issue := range issues {
		a.logger.Warnf("Skipping catalog entry: %v", issue)
	}
	return defs, nil
}

// ChecksList prints the catalog grouped by check group. Only supported
// checks are listed unless all is set; the statistics count every check.
func (a *App) ChecksList(ctx context.Context, details, all bool) error {
	if err := a.ensureWanda(ctx); err != nil {
		return err
	}
	defs, err := a.checks(ctx)
	if err != nil {
		return err
	}

	doc := checkList{Checks: make(map[string][]checkEntry)}
	var order []string
	grouped := make(map[string][]catalog.CheckDefinition)
	for _, def := range defs {
		if _, seen := grouped[def.Group]; !seen {
			order = append(order, def.Group)
		}
		grouped[def.Group] = append(grouped[def.Group], def)
	}

	for _, group := range order {
		a.printer.Header(group)
		entries := []checkEntry{}
		var items []render.Item
		for _, def := range grouped[group] {
			doc.Stats.Available++
			switch def.SupportStatus {
			case catalog.SupportSupported:
				doc.Stats.Supported++
			case catalog.SupportUnsupported:
				doc.Stats.Unsupported++
			default:
				doc.Stats.Unknown++
			}
			if def.SupportStatus != catalog.SupportSupported && !all {
				continue
			}

			support := supportStatus[def.SupportStatus]
			item := render.Item{
				Name:       def.ID + " - " + def.Description,
				Status:     support.status,
				StatusText: support.text,
			}
			entry := checkEntry{Name: item.Name, Status: def.SupportStatus}
			if details {
				item.Details = checkDetailLines(def, false)
				entry.Details = &def
			}
			items = append(items, item)
			entries = append(entries, entry)
		}
		doc.Checks[group] = entries
		a.printer.Status(items)
		a.printer.Newline()
	}

	a.printer.Infof("%d checks available (supported=%d unsupported=%d unknown=%d).",
		doc.Stats.Available, doc.Stats.Supported, doc.Stats.Unsupported, doc.Stats.Unknown)
	return a.printer.JSON(doc)
}

// ChecksShow prints every attribute of one check
func (a *App) ChecksShow(ctx context.Context, checkID string) error {
	if err := a.ensureWanda(ctx); err != nil {
		return err
	}
	defs, err := a.checks(ctx)
	if err != nil {
		return err
	}
	def, ok := catalog.Find(defs, checkID)
	if !ok {
		return errors.NewResponseError(fmt.Sprintf("check %s does not exist", checkID), nil)
	}
	a.printer.KeyValues(checkDetailLines(def, true))
	return a.printer.JSON(def)
}

// ChecksRun executes the selected supported checks on the running hosts
// of a group. Checks run concurrently up to parallel_jobs and are printed
// in catalog order. A check that cannot be executed is reported as an
// error row and fails the run after all checks are printed.
func (a *App) ChecksRun(ctx context.Context, opts RunOptions) error {
	if err := a.ensureWanda(ctx); err != nil {
		return err
	}

	targets, err := a.runTargets(ctx, opts.Hostgroup)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(targets))
	agentIDs := make([]string, 0, len(targets))
	hostnames := make(map[string]string, len(targets))
	for _, host := range targets {
		names = append(names, host.Name)
		agentIDs = append(agentIDs, host.AgentID)
		hostnames[host.AgentID] = host.Name
	}

	env := runEnvironment(targets[0], opts.Provider)
	if err := execution.ValidateEnvironment(env); err != nil {
		return err
	}
	a.printer.Infof("%d hosts for %q: %s", len(targets), opts.Hostgroup, strings.Join(names, ", "))

	defs, err := a.checks(ctx)
	if err != nil {
		return err
	}
	selection := catalog.Select(defs, catalog.Selection{
		HostCount: len(targets),
		Groups:    opts.Groups,
		CheckIDs:  opts.Checks,
	})
	a.printer.Infof("%d of %d checks skipped: %s",
		len(selection.Skipped), len(selection.Available), strings.Join(selection.Skipped, ", "))
	a.printer.Infof("%d of %d checks selected: %s",
		len(selection.Selected), len(selection.Available), strings.Join(selection.Selected, ", "))
	if len(selection.Selected) == 0 {
		return errors.NewResponseError("no checks to run", nil)
	}

	outcomes, err := a.execute(ctx, selection.Groups, agentIDs, env)
	if err != nil {
		return err
	}

	report := runReport{
		Hostgroup:   opts.Hostgroup,
		Hosts:       names,
		Environment: env,
		Selection: selectionSummary{
			Available: selection.Available,
			Skipped:   selection.Skipped,
			Selected:  selection.Selected,
		},
		Results: make(map[string][]runRow),
	}
	failed := 0
	for _, group := range selection.Groups {
		a.printer.Newline()
		a.printer.Header(group.Name)
		rows := []runRow{}
		for _, def := range group.Checks {
			outcome := outcomes[def.ID]
			if outcome.err != nil {
				failed++
			}
			items, checkRows := resultRows(def, outcome, hostnames, opts)
			a.printer.Status(items)
			rows = append(rows, checkRows...)
		}
		report.Results[group.Name] = rows
	}
	report.Success = failed == 0

	if err := a.printer.JSON(report); err != nil {
		return err
	}
	if failed > 0 {
		return errors.NewResponseError(fmt.Sprintf("%d of %d checks could not be executed", failed, len(selection.Selected)), nil)
	}
	return nil
}

// runTargets returns the hosts of the group, all of which must be running
func (a *App) runTargets(ctx context.Context, hostgroup string) ([]hosts.Host, error) {
	targets, err := a.hosts.Containers(ctx, hosts.Filter{Hostgroup: hostgroup})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.NewHostsError(fmt.Sprintf("no hosts for host group %q found", hostgroup), nil)
	}
	for _, host := range targets {
		if host.Status != container.StateRunning {
			return nil, errors.NewHostsError(
				fmt.Sprintf("host %q is not running, but has status %q", host.Name, host.Status), nil)
		}
	}
	return targets, nil
}

// execute runs every check as its own execution so that one failing
// check does not discard the results of the others.
func (a *App) execute(ctx context.Context, groups []catalog.CheckGroup, agentIDs []string, env map[string]string) (map[string]checkOutcome, error) {
	var ids []string
	for _, group := range groups {
		for _, def := range group.Checks {
			ids = append(ids, def.ID)
		}
	}

	outcomes := make([]checkOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(max(a.config.ParallelJobs, 1))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results, err := a.orchestrator.ExecuteChecks(ctx, agentIDs, env, []string{id}, execution.Options{
				Timeout: a.config.DockerTimeoutDuration(),
			})
			if err != nil {
				a.logger.Errorf("Check %s failed: %v", id, err)
			}
			outcomes[i] = checkOutcome{results: results, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errors.NewRuntimeError("check run interrupted", err)
	}

	byID := make(map[string]checkOutcome, len(ids))
	for i, id := range ids {
		byID[id] = outcomes[i]
	}
	return byID, nil
}

// runEnvironment is the execution environment of the host group. The
// environment labels are the same on every host of a group.
func runEnvironment(host hosts.Host, provider string) map[string]string {
	env := make(map[string]string, len(host.Environment))
	for key, value := range host.Environment {
		if value != "" {
			env[key] = value
		}
	}
	if provider != "" {
		env["provider"] = provider
	}
	return env
}

func resultRows(def catalog.CheckDefinition, outcome checkOutcome, hostnames map[string]string, opts RunOptions) ([]render.Item, []runRow) {
	name := def.ID + " - " + def.Description
	if outcome.err != nil {
		item := render.Item{
			Name:       name,
			Status:     render.StatusError,
			StatusText: execution.ResultError,
			Details:    []render.Detail{{Key: "error", Value: outcome.err.Error()}},
		}
		row := runRow{Check: def.ID, Description: def.Description, Result: execution.ResultError, Error: outcome.err.Error()}
		return []render.Item{item}, []runRow{row}
	}

	var items []render.Item
	var rows []runRow
	for _, result := range outcome.results {
		status := resultStatus(result.Result)
		if opts.FailureOnly && status == render.StatusOK {
			continue
		}
		row := runRow{
			Check:       result.CheckID,
			Description: def.Description,
			Result:      result.Result,
			Hostname:    hostnames[result.AgentID],
			AgentID:     result.AgentID,
			Messages:    result.Messages,
		}
		details := []render.Detail{
			{Key: "hostname", Value: orDash(row.Hostname)},
			{Key: "hostgroup", Value: opts.Hostgroup},
			{Key: "agent id", Value: result.AgentID},
		}
		if len(result.Messages) > 0 {
			details = append(details, render.Detail{Key: "messages", Value: strings.Join(result.Messages, "\n")})
		}
		if status != render.StatusOK {
			row.Remediation = def.Remediation
			details = append(details, render.Detail{Key: "remediation", Value: orDash(def.Remediation)})
		}
		items = append(items, render.Item{Name: name, Status: status, StatusText: result.Result, Details: details})
		rows = append(rows, row)
	}
	return items, rows
}

func resultStatus(result string) render.Status {
	switch result {
	case execution.ResultPassing:
		return render.StatusOK
	case execution.ResultWarning:
		return render.StatusWarn
	default:
		return render.StatusError
	}
}

func checkDetailLines(def catalog.CheckDefinition, full bool) []render.Detail {
	details := []render.Detail{
		{Key: "id", Value: def.ID},
		{Key: "description", Value: def.Description},
		{Key: "group", Value: def.Group},
	}
	if full {
		details = append(details,
			render.Detail{Key: "support", Value: string(def.SupportStatus)},
			render.Detail{Key: "target_type", Value: orDash(def.RequiredMetadata["target_type"])})
	}
	details = append(details, render.Detail{Key: "check_type", Value: string(def.ExpectationType)})
	for _, key := range catalog.EnvironmentKeys {
		details = append(details, render.Detail{Key: key, Value: orDash(strings.Join(def.Environment[key], " "))})
	}
	details = append(details, render.Detail{Key: "gatherer", Value: orDash(strings.Join(def.Gatherers, " "))})
	if full {
		details = append(details,
			render.Detail{Key: "manifest", Value: orDash(strings.Join(def.ManifestEntries(), " "))},
			render.Detail{Key: "remediation", Value: orDash(def.Remediation)})
	}
	return details
}
