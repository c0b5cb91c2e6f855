package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"github.com/tcsc-project/tcsc/pkg/app"
	"github.com/tcsc-project/tcsc/pkg/config"
	"github.com/tcsc-project/tcsc/pkg/container"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
	"github.com/tcsc-project/tcsc/pkg/render"
	"github.com/tcsc-project/tcsc/pkg/supportfiles"
	"github.com/tcsc-project/tcsc/pkg/wanda"
)

// exitUsage is returned for command line errors
const exitUsage = 12

type globalOptions struct {
	Config string `long:"config" value-name:"CONFIG" description:"alternative config file" default:"${HOME}/.config/tcsc/config"`
	JSON   bool   `short:"j" long:"json" description:"output in JSON"`
	Debug  bool   `long:"debug" description:"log debug messages"`
}

// session is set up by the command handler before a command runs
type session struct {
	ctx     context.Context
	options globalOptions
	app     *app.App
	printer *render.Printer
	colored bool
	closers []func() error
}

type usageError string

func (e usageError) Error() string { return string(e) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &session{ctx: ctx}

	parser := flags.NewParser(&s.options, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "Manages the Wanda containers and the host containers built from " +
		"supportconfigs and runs Trento checks on them."
	addCommands(parser, s)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if err := s.setup(); err != nil {
			return err
		}
		return command.Execute(args)
	}

	_, err := parser.Parse()
	s.close()
	interrupted := ctx.Err() != nil
	stop()
	os.Exit(s.exit(err, interrupted))
}

func (s *session) setup() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	path := config.ResolvePath(s.options.Config, os.Getenv)
	cfg, err := config.Load(path, true)
	if err != nil {
		return err
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	s.colored = cfg.Colored()

	zapConfig := logging.DefaultZapConfig()
	zapConfig.Level = cfg.LogLevel
	if s.options.Debug {
		zapConfig.Level = "debug"
	}
	logger, sync, err := logging.NewZapLogger("", zapConfig)
	if err != nil {
		return errors.NewConfigError("invalid logging configuration", err)
	}
	s.closers = append(s.closers, sync)
	logger.Debugf("Using configuration file %s", path)

	s.printer = render.NewPrinter(os.Stdout, render.Options{Color: s.colored, JSON: s.options.JSON})

	runtime, err := container.NewDockerRuntime(logger.Named("docker"))
	if err != nil {
		return err
	}
	s.closers = append(s.closers, runtime.Close)

	options := wanda.ClientOptions{AccessKey: cfg.AccessKey}
	if cfg.Credentials != nil {
		options.Credentials = &wanda.Credentials{
			URL:      cfg.Credentials.URL,
			Username: cfg.Credentials.Username,
			Password: cfg.Credentials.Password,
		}
	}
	client, err := wanda.NewClient(cfg.WandaURL, options, logger.Named("wanda"))
	if err != nil {
		return err
	}

	s.app = app.New(app.Options{
		Config:  cfg,
		Printer: s.printer,
		Logger:  logger,
		Runtime: runtime,
		Client:  client,
		Files: supportfiles.Options{
			HostRootFS: os.Getenv(config.EnvHostRootFS),
			WorkDir:    os.Getenv("PWD"),
		},
	})
	return nil
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// exit reports err and returns the exit status
func (s *session) exit(err error, interrupted bool) int {
	if err == nil || interrupted {
		return errors.ExitOK
	}

	var flagsErr *flags.Error
	if stderrors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return errors.ExitOK
		}
		fmt.Fprintln(os.Stderr, flagsErr.Message)
		return exitUsage
	}
	var usage usageError
	if stderrors.As(err, &usage) {
		fmt.Fprintln(os.Stderr, usage.Error())
		return exitUsage
	}

	if s.options.JSON {
		if s.printer == nil || !s.printer.Printed() {
			_ = render.WriteJSON(os.Stdout, map[string]interface{}{"success": false, "error": err.Error()})
		}
	} else {
		render.NewPrinter(os.Stderr, render.Options{Color: s.colored}).Failf("%v", err)
	}
	return errors.ExitCode(err)
}
