// students-cli drives the sync coordinator against a running students
// service from the command line.
//
// USAGE:
//
//	students-cli [--config=config/client.yaml] [-v] [--no-refresh] COMMAND [ARGS]
//
//	list                              show every student
//	get ID                            show one student
//	create NAME AGE EMAIL             add a student
//	update ID NAME AGE EMAIL          replace a student's fields
//	delete ID                         remove a student
//	summarize ID [ID...]              request summaries; the last ID wins
//
// After create, update and delete the collection is reloaded and printed
// unless --no-refresh is given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/students-sync/internal/client"
	"github.com/aanand-mishra/students-sync/internal/config"
	"github.com/aanand-mishra/students-sync/internal/logger"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs one command line and maps the outcome to an exit code:
// a failed remote operation is exitFail, anything cobra or argument parsing
// rejects is exitUsage.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	var fail failure
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &fail):
		return exitFail
	default:
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	app := &cli{out: stdout, errOut: stderr}

	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "students-cli",
		Short:         "Command-line client for the students service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errors.New("a command is required")
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return app.connect(configPath, verbose)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to the client configuration YAML file (or CONFIG_PATH)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log requests and coordinator activity to stderr")
	flags.BoolVar(&app.noRefresh, "no-refresh", false, "Do not reload the collection after create, update or delete")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show every student",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return app.list(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "get ID",
			Short: "Show one student",
			Args:  cobra.ExactArgs(1),
			RunE:  func(cmd *cobra.Command, args []string) error { return app.get(cmd.Context(), args) },
		},
		&cobra.Command{
			Use:   "create NAME AGE EMAIL",
			Short: "Add a student",
			Args:  cobra.ExactArgs(3),
			RunE:  func(cmd *cobra.Command, args []string) error { return app.create(cmd.Context(), args) },
		},
		&cobra.Command{
			Use:   "update ID NAME AGE EMAIL",
			Short: "Replace a student's name, age and email",
			Args:  cobra.ExactArgs(4),
			RunE:  func(cmd *cobra.Command, args []string) error { return app.update(cmd.Context(), args) },
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Remove a student",
			Args:  cobra.ExactArgs(1),
			RunE:  func(cmd *cobra.Command, args []string) error { return app.delete(cmd.Context(), args) },
		},
		&cobra.Command{
			Use:   "summarize ID [ID...]",
			Short: "Request summaries; only the last ID's summary is kept",
			Args:  cobra.MinimumNArgs(1),
			RunE:  func(cmd *cobra.Command, args []string) error { return app.summarize(cmd.Context(), args) },
		},
	)

	return root
}

// connect loads the client config and builds the transport.
func (a *cli) connect(configPath string, verbose bool) error {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		fmt.Fprintf(a.errOut, "cannot read client config: %s\n", err)
		return failure{err: err}
	}

	logOut := io.Discard
	if verbose {
		logOut = a.errOut
	}
	a.log = logger.New(cfg.Env, logOut)

	cl, err := client.New(client.Config{
		BaseURL:          cfg.Remote.BaseURL,
		Timeout:          cfg.Remote.Timeout,
		SummarizeTimeout: cfg.Remote.SummarizeTimeout,
		MaxRetries:       cfg.Remote.MaxRetries,
		RetryWait:        cfg.Remote.RetryWait,
		Logger:           a.log,
	})
	if err != nil {
		fmt.Fprintf(a.errOut, "cannot create client: %s\n", err)
		return failure{err: err}
	}

	a.log.Debug("students-cli connected", slog.String("base_url", cfg.Remote.BaseURL))
	a.transport = cl
	return nil
}
