package main

import (
	flags "github.com/jessevdk/go-flags"

	"github.com/tcsc-project/tcsc/pkg/app"
)

type wandaStart struct{ s *session }
type wandaStop struct{ s *session }
type wandaStatus struct{ s *session }

func (c *wandaStart) Execute([]string) error  { return c.s.app.WandaStart(c.s.ctx) }
func (c *wandaStop) Execute([]string) error   { return c.s.app.WandaStop(c.s.ctx) }
func (c *wandaStatus) Execute([]string) error { return c.s.app.WandaStatus(c.s.ctx) }

type hostgroupArgs struct {
	Hostgroup string `positional-arg-name:"GROUPNAME" description:"name of the host group"`
}

type hostsCreate struct {
	s   *session
	Env []string `short:"e" long:"env" value-name:"KEY=VALUE" description:"environment entry overriding the detected one"`
	Args struct {
		Hostgroup string   `positional-arg-name:"GROUPNAME" description:"name of the host group"`
		Files     []string `positional-arg-name:"SUPPORTFILE" description:"supportconfig archives or directories" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *hostsCreate) Execute([]string) error {
	return c.s.app.HostsCreate(c.s.ctx, c.Args.Hostgroup, c.Env, c.Args.Files)
}

type hostsStart struct {
	s    *session
	Args hostgroupArgs `positional-args:"yes" required:"yes"`
}

func (c *hostsStart) Execute([]string) error { return c.s.app.HostsStart(c.s.ctx, c.Args.Hostgroup) }

type hostsStop struct {
	s    *session
	Args hostgroupArgs `positional-args:"yes" required:"yes"`
}

func (c *hostsStop) Execute([]string) error { return c.s.app.HostsStop(c.s.ctx, c.Args.Hostgroup) }

type hostsRescan struct {
	s    *session
	Args hostgroupArgs `positional-args:"yes" required:"yes"`
}

func (c *hostsRescan) Execute([]string) error { return c.s.app.HostsRescan(c.s.ctx, c.Args.Hostgroup) }

type hostsRemove struct {
	s    *session
	Args hostgroupArgs `positional-args:"yes" required:"yes"`
}

func (c *hostsRemove) Execute([]string) error { return c.s.app.HostsRemove(c.s.ctx, c.Args.Hostgroup) }

type hostsStatus struct {
	s       *session
	Details bool          `short:"d" long:"details" description:"print more details about the containers"`
	Args    hostgroupArgs `positional-args:"yes"`
}

func (c *hostsStatus) Execute([]string) error {
	return c.s.app.HostsStatus(c.s.ctx, c.Args.Hostgroup, c.Details)
}

type hostsLogs struct {
	s     *session
	Lines int `short:"l" long:"lines" value-name:"N" description:"print only the last N lines"`
	Args  struct {
		Container string `positional-arg-name:"CONTAINERNAME" description:"name of the host container"`
	} `positional-args:"yes" required:"yes"`
}

func (c *hostsLogs) Execute([]string) error {
	return c.s.app.HostsLogs(c.s.ctx, c.Args.Container, c.Lines)
}

type checksList struct {
	s       *session
	Details bool `short:"d" long:"details" description:"print more details about the checks"`
	All     bool `short:"a" long:"all" description:"list unsupported checks too"`
}

func (c *checksList) Execute([]string) error { return c.s.app.ChecksList(c.s.ctx, c.Details, c.All) }

type checksShow struct {
	s    *session
	Args struct {
		Check string `positional-arg-name:"CHECK" description:"id of the check"`
	} `positional-args:"yes" required:"yes"`
}

func (c *checksShow) Execute([]string) error { return c.s.app.ChecksShow(c.s.ctx, c.Args.Check) }

type checksRun struct {
	s           *session
	Provider    string   `short:"p" long:"provider" value-name:"PROVIDER" description:"the provider (infrastructure) of the hosts" choice:"default" choice:"kvm" choice:"vmware" choice:"azure" choice:"aws" choice:"gcp"`
	FailureOnly bool     `short:"f" long:"failure-only" description:"print only checks which did not pass"`
	Groups      []string `short:"g" long:"group" value-name:"GROUP" description:"run only checks of this check group"`
	Checks      []string `short:"c" long:"check" value-name:"CHECK" description:"run only this check"`
	Args        hostgroupArgs `positional-args:"yes" required:"yes"`
}

func (c *checksRun) Execute([]string) error {
	if len(c.Groups) > 0 && len(c.Checks) > 0 {
		return usageError("--group and --check cannot be combined")
	}
	return c.s.app.ChecksRun(c.s.ctx, app.RunOptions{
		Hostgroup:   c.Args.Hostgroup,
		Provider:    c.Provider,
		Groups:      c.Groups,
		Checks:      c.Checks,
		FailureOnly: c.FailureOnly,
	})
}

type command struct {
	name  string
	short string
	data  interface{}
}

func addCommands(parser *flags.Parser, s *session) {
	groups := []struct {
		name        string
		short       string
		long        string
		subcommands []command
	}{
		{"wanda", "Manages the Wanda containers", "Manages the Wanda containers, like wanda, rabbitmq and postgres.", []command{
			{"start", "Starts the Wanda containers", &wandaStart{s}},
			{"status", "Prints the status of the Wanda containers", &wandaStatus{s}},
			{"stop", "Stops the Wanda containers", &wandaStop{s}},
		}},
		{"hosts", "Manages the host containers", "Manages the containers which simulate the hosts based on the supportfiles.", []command{
			{"create", "Creates a host group and starts its containers", &hostsCreate{s: s}},
			{"start", "Starts the containers of a host group", &hostsStart{s: s}},
			{"stop", "Stops the containers of a host group", &hostsStop{s: s}},
			{"rescan", "Reloads the supportfiles into the host containers", &hostsRescan{s: s}},
			{"remove", "Removes the containers of a host group", &hostsRemove{s: s}},
			{"status", "Prints the status of the host groups", &hostsStatus{s: s}},
			{"logs", "Prints the log of a host container", &hostsLogs{s: s}},
		}},
		{"checks", "Lists and runs Trento checks", "Lists and executes Trento checks.", []command{
			{"list", "Lists the available checks", &checksList{s: s}},
			{"show", "Shows a check", &checksShow{s: s}},
			{"run", "Runs the supported checks on a host group", &checksRun{s: s}},
		}},
	}

	for _, group := range groups {
		parent, err := parser.AddCommand(group.name, group.short, group.long, &struct{}{})
		if err != nil {
			panic(err)
		}
		for _, sub := range group.subcommands {
			if _, err := parent.AddCommand(sub.name, sub.short, sub.short+".", sub.data); err != nil {
				panic(err)
			}
		}
	}
}
