package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/execution"
	"github.com/tcsc-project/tcsc/pkg/logging"
	"github.com/tcsc-project/tcsc/pkg/render"
	"github.com/tcsc-project/tcsc/pkg/wanda"
)

// Exit statuses
const (
	exitConnection = 1
	exitUsage      = 2
	exitResponse   = 3
	exitTimeout    = 4
)

type options struct {
	URL            string `short:"u" long:"url" value-name:"URL" description:"URL of Wanda including the port" default:"http://localhost:4000"`
	Debug          bool   `short:"d" long:"debug" description:"write debug output to stderr"`
	Raw            bool   `short:"r" long:"raw" description:"print the raw JSON response instead of an evaluation"`
	AccessKey      string `short:"a" long:"access-key" value-name:"KEY" description:"API access token"`
	AccessKeyFile  string `short:"A" long:"access-key-file" value-name:"KEYFILE" description:"file with the API access token"`
	Credential     string `short:"f" long:"credentials" value-name:"CRED" description:"JSON credentials {\"url\", \"username\", \"password\"} to fetch a token from Trento"`
	CredentialFile string `short:"F" long:"credentials-file" value-name:"CREDFILE" description:"file with the JSON credentials"`
}

type runner struct {
	ctx     context.Context
	options options
	client  *wanda.Client
	logger  logging.Logger
	sync    func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	r := &runner{ctx: ctx}

	parser := flags.NewParser(&r.options, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "Interacts with Wanda using its API."
	mustAdd(parser.AddCommand("ListChecks", "List all available checks", "Lists all checks of the catalog.", &listChecks{r: r}))
	mustAdd(parser.AddCommand("ListExecutions", "List executions",
		"Lists all executions Wanda currently has. SCOPE restricts the output and has no effect on raw output.", &listExecutions{r: r}))
	mustAdd(parser.AddCommand("ExecuteCheck", "Execute checks on target hosts",
		"Executes checks on target hosts, waits for the executions to finish and prints the results.", &executeCheck{r: r}))
	mustAdd(parser.AddCommand("Health", "Print the health of Wanda", "Prints the response of the health endpoint.", &health{r}))
	mustAdd(parser.AddCommand("Ready", "Print the readiness of Wanda", "Prints the response of the readiness endpoint.", &ready{r}))

	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if err := r.setup(); err != nil {
			return err
		}
		return command.Execute(args)
	}

	_, err := parser.Parse()
	if r.sync != nil {
		_ = r.sync()
	}
	interrupted := ctx.Err() != nil
	stop()
	if interrupted {
		os.Exit(errors.ExitOK)
	}
	report(err)
	os.Exit(exitStatus(err))
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

func report(err error) {
	if err == nil {
		return
	}
	var flagsErr *flags.Error
	if stderrors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return
		}
		fmt.Fprintln(os.Stderr, flagsErr.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// exitStatus maps err to the exit status of rabbiteer, which differs from
// the one of tcsc.
func exitStatus(err error) int {
	var flagsErr *flags.Error
	switch {
	case err == nil:
		return errors.ExitOK
	case stderrors.As(err, &flagsErr):
		if flagsErr.Type == flags.ErrHelp {
			return errors.ExitOK
		}
		return exitUsage
	case errors.IsConnectionError(err), errors.IsAuthError(err):
		return exitConnection
	case errors.IsMetadataError(err), errors.IsValidationError(err),
		errors.IsConfigError(err), errors.IsIOError(err):
		return exitUsage
	case errors.IsResponseError(err):
		return exitResponse
	case errors.IsTimeoutError(err):
		return exitTimeout
	default:
		return exitConnection
	}
}

func (r *runner) setup() error {
	zapConfig := logging.DefaultZapConfig()
	zapConfig.Level = "error"
	if r.options.Debug {
		zapConfig.Level = "debug"
	}
	logger, sync, err := logging.NewZapLogger("rabbiteer", zapConfig)
	if err != nil {
		return err
	}
	r.logger, r.sync = logger, sync

	clientOptions, err := r.clientOptions()
	if err != nil {
		return err
	}
	r.client, err = wanda.NewClient(r.options.URL, clientOptions, logger.Named("wanda"))
	return err
}

func (r *runner) clientOptions() (wanda.ClientOptions, error) {
	o := r.options
	given := 0
	for _, v := range []string{o.AccessKey, o.AccessKeyFile, o.Credential, o.CredentialFile} {
		if v != "" {
			given++
		}
	}
	if given > 1 {
		return wanda.ClientOptions{}, errors.NewValidationError("only one of -a, -A, -f and -F can be given", nil)
	}

	key := o.AccessKey
	if o.AccessKeyFile != "" {
		content, err := os.ReadFile(o.AccessKeyFile)
		if err != nil {
			return wanda.ClientOptions{}, errors.NewValidationError(
				fmt.Sprintf("error reading access key from %q", o.AccessKeyFile), err)
		}
		key = strings.TrimSpace(string(content))
	}

	document := o.Credential
	if o.CredentialFile != "" {
		content, err := os.ReadFile(o.CredentialFile)
		if err != nil {
			return wanda.ClientOptions{}, errors.NewValidationError(
				fmt.Sprintf("error reading credentials from %q", o.CredentialFile), err)
		}
		document = string(content)
	}

	options := wanda.ClientOptions{AccessKey: key}
	if document != "" {
		var credentials wanda.Credentials
		if err := json.Unmarshal([]byte(document), &credentials); err != nil {
			return wanda.ClientOptions{}, errors.NewValidationError("error reading credentials", err)
		}
		options.Credentials = &credentials
	}
	return options, nil
}

func (r *runner) printJSON(v interface{}) error {
	return render.WriteJSON(os.Stdout, v)
}

type listChecks struct {
	r      *runner
	Checks []string `short:"c" long:"check" value-name:"CHECK" description:"list only this check"`
}

func (c *listChecks) Execute([]string) error {
	catalog, err := c.r.client.Catalog(c.r.ctx)
	if err != nil {
		return err
	}
	catalog.Items = filterCatalog(catalog.Items, c.Checks)
	if c.r.options.Raw {
		return c.r.printJSON(catalog)
	}
	for _, item := range catalog.Items {
		fmt.Printf("%v - %v (%v)\n", item["id"], item["name"], item["group"])
	}
	fmt.Printf("\n%d check(s) found.\n", len(catalog.Items))
	return nil
}

// filterCatalog keeps the entries with one of the ids; no ids keeps all
func filterCatalog(items []map[string]interface{}, ids []string) []map[string]interface{} {
	if len(ids) == 0 {
		return items
	}
	filtered := []map[string]interface{}{}
	for _, item := range items {
		if id, ok := item["id"].(string); ok && slices.Contains(ids, id) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

type listExecutions struct {
	r    *runner
	Args struct {
		Scope string `positional-arg-name:"SCOPE" description:"one of all, running, completed, failed, unknown"`
	} `positional-args:"yes"`
}

var scopes = []string{"all", "running", "completed", "failed", "unknown"}

func (c *listExecutions) Execute([]string) error {
	scope := c.Args.Scope
	if scope == "" {
		scope = "all"
	}
	if !slices.Contains(scopes, scope) {
		return errors.NewValidationError(fmt.Sprintf("invalid scope %q, expected one of %s", scope, strings.Join(scopes, ", ")), nil)
	}

	executions, err := c.r.client.Executions(c.r.ctx)
	if err != nil {
		return err
	}
	if c.r.options.Raw {
		return c.r.printJSON(executions)
	}

	count := 0
	for _, item := range executions.Items {
		if scope != "all" && item.Status != scope {
			continue
		}
		count++
		fmt.Printf("%s: %s\n    start : %s\n    end   : %s\n    group : %s\n",
			item.ExecutionID, item.Status, item.StartedAt, item.CompletedAt, item.GroupID)
		for _, target := range item.Targets {
			fmt.Printf("    target: %s   checks: %s\n", target.AgentID, strings.Join(target.Checks, " "))
		}
	}
	fmt.Printf("\n%d execution(s) found, %d listed.\n", len(executions.Items), count)
	return nil
}

type executeCheck struct {
	r          *runner
	Provider   string   `short:"p" long:"provider" value-name:"PROVIDER" description:"provider of the targets (e.g. azure)"`
	Env        []string `short:"e" long:"env" value-name:"KEY=VALUE" description:"additional environment entry"`
	Checks     []string `short:"c" long:"check" value-name:"CHECK" description:"Trento check id (e.g. 21FCA6)" required:"yes"`
	Targets    []string `short:"t" long:"target" value-name:"TARGET" description:"agent id of a target host" required:"yes"`
	Timeout    int      `long:"timeout" value-name:"SECONDS" description:"timeout in seconds per execution"`
	Brief      bool     `short:"b" long:"brief" description:"print only check, agent and result"`
	JSON       bool     `long:"json" description:"print the results as JSON"`
	Parallel   int      `long:"parallel" value-name:"N" description:"poll up to N executions at once" default:"1"`
	NoProgress bool     `long:"no-progress" description:"do not print progress dots to stderr"`
}

func (c *executeCheck) Execute([]string) error {
	pairs := c.Env
	if c.Provider != "" {
		pairs = append(pairs, "provider="+c.Provider)
	}
	env, err := execution.ParseEnvironment(pairs)
	if err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.NewValidationError("the timeout must not be negative", nil)
	}
	if c.Parallel < 1 {
		return errors.NewValidationError("the parallel executions must be at least 1", nil)
	}

	logger := c.r.logger.Named("execution")
	opts := execution.Options{
		Timeout:     time.Duration(c.Timeout) * time.Second,
		Brief:       c.Brief,
		Parallelism: c.Parallel,
		OnTransition: func(job execution.Job, from, to execution.JobState) {
			logger.Debugf("execution %s of %s on %s: %s -> %s",
				job.ID, job.CheckID, strings.Join(job.AgentIDs(), ", "), from, to)
		},
	}
	if !c.NoProgress {
		opts.Progress = func(execution.Job) { fmt.Fprint(os.Stderr, ".") }
		defer fmt.Fprintln(os.Stderr)
	}

	orchestrator := execution.NewOrchestrator(c.r.client, clock.Real(), logger)
	if c.r.options.Raw {
		docs, err := orchestrator.ExecuteRaw(c.r.ctx, c.Targets, env, c.Checks, opts)
		if err != nil {
			return err
		}
		return c.r.printJSON(docs)
	}

	results, err := orchestrator.ExecuteChecks(c.r.ctx, c.Targets, env, c.Checks, opts)
	if err != nil {
		return err
	}
	if c.JSON {
		if results == nil {
			results = []execution.CheckResult{}
		}
		return c.r.printJSON(results)
	}
	fmt.Print(execution.FormatResults(results))
	return nil
}

type health struct{ r *runner }

func (c *health) Execute([]string) error {
	doc, err := c.r.client.Health(c.r.ctx)
	if err != nil {
		return err
	}
	if c.r.options.Raw {
		return c.r.printJSON(doc)
	}
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Printf("%s: %v\n", key, doc[key])
	}
	return nil
}

type ready struct{ r *runner }

func (c *ready) Execute([]string) error {
	doc, err := c.r.client.Readiness(c.r.ctx)
	if err != nil {
		return err
	}
	if c.r.options.Raw {
		return c.r.printJSON(doc)
	}
	ready, ok := doc["ready"]
	if !ok {
		return errors.NewResponseError("readiness response has no ready field", nil).WithContext("response", doc)
	}
	fmt.Println(ready)
	return nil
}
