package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anmitsu/go-shlex"
	"github.com/spf13/cobra"

	"github.com/marcelocantos/pipe/internal/config"
	"github.com/marcelocantos/pipe/internal/logging"
)

// Exit codes for failures of pipe itself rather than of a stage.
const (
	ExitUsage  = 22 // EINVAL: nothing to run, or bad flags
	ExitOSErr  = 71 // EX_OSERR: pipe, fork or wait failed
	ExitConfig = 78 // EX_CONFIG: unreadable or invalid configuration
)

// Streams are the process's standard files. Stages inherit them.
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// StdStreams returns the real standard files.
func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// exitError carries an exit code out of a cobra RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	configPath  string
	logLevel    string
	timeout     string
	command     string
	explain     bool
	auditVerify bool
	auditTail   int
}

// Execute runs the pipe command line and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, s Streams) int {
	code := 0
	cmd := newRootCommand(ctx, version, s, &code)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(s.Stderr, "pipe: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return ExitUsage
	}
	return code
}

func newRootCommand(ctx context.Context, version string, s Streams, code *int) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "pipe [flags] [--] program [args...] program [args...] ...",
		Short: "Run programs as a pipeline without a shell",
		Long: `pipe connects programs stdout-to-stdin like "a | b | c" in a shell.

There is no separator token: a token starts a new stage when it names an
executable on the search path, and is otherwise an argument. Use --explain
to see how a token list is split before running it.

Exit status is the first non-zero stage status in stage order. A stage
killed by SIGPIPE counts as success; other signals give 128+signal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := run(ctx, opts, args, s)
			*code = c
			return err
		},
	}
	cmd.SetIn(s.Stdin)
	cmd.SetOut(s.Stdout)
	cmd.SetErr(s.Stderr)

	flags := cmd.Flags()
	// Everything after the first program name belongs to the pipeline.
	flags.SetInterspersed(false)
	flags.StringVar(&opts.configPath, "config", "", "config file (.yaml or .toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&opts.timeout, "timeout", "", "terminate the pipeline after this duration (e.g. 30s)")
	flags.StringVarP(&opts.command, "command", "c", "", "read the token list from a single shell-quoted string")
	flags.BoolVar(&opts.explain, "explain", false, "print the stage segmentation and exit")
	flags.BoolVar(&opts.auditVerify, "audit-verify", false, "verify the audit log hash chain")
	flags.IntVar(&opts.auditTail, "audit-tail", 0, "print the last N audit log entries")
	return cmd
}

func run(ctx context.Context, opts *options, args []string, s Streams) (int, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return ExitConfig, &exitError{code: ExitConfig, err: err}
	}

	logger, err := logging.NewWithWriter(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development}, s.Stderr)
	if err != nil {
		return ExitConfig, &exitError{code: ExitConfig, err: err}
	}
	defer logger.Sync()

	switch {
	case opts.auditVerify:
		return RunAuditVerify(s.Stdout, cfg.Audit.Path), nil
	case opts.auditTail > 0:
		return RunAuditTail(s.Stdout, cfg.Audit.Path, opts.auditTail), nil
	}

	tokens, err := tokensFrom(opts, args)
	if err != nil {
		return ExitUsage, &exitError{code: ExitUsage, err: err}
	}

	if opts.explain {
		return RunExplain(s.Stdout, cfg, logger, tokens), nil
	}
	ctx, release := holdSignals(ctx, logger)
	defer release()
	return RunPipe(ctx, cfg, logger, tokens, s), nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath == "" {
		cfg, err = config.Load()
	} else if cfg, err = config.LoadFrom(opts.configPath); err == nil {
		err = cfg.ApplyEnv()
	}
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.timeout != "" {
		cfg.Timeout = opts.timeout
	}
	return cfg, cfg.Validate()
}

func tokensFrom(opts *options, args []string) ([]string, error) {
	if opts.command != "" {
		if len(args) > 0 {
			return nil, errors.New("--command cannot be combined with program arguments")
		}
		tokens, err := shlex.Split(opts.command, true)
		if err != nil {
			return nil, fmt.Errorf("--command: %w", err)
		}
		args = tokens
	}
	if len(args) == 0 {
		return nil, errors.New("no program given")
	}
	return args, nil
}
