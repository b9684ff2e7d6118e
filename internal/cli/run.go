package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/marcelocantos/pipe/internal/audit"
	"github.com/marcelocantos/pipe/internal/config"
	"github.com/marcelocantos/pipe/internal/lookup"
	"github.com/marcelocantos/pipe/internal/metrics"
	"github.com/marcelocantos/pipe/internal/pipeline"
	"github.com/marcelocantos/pipe/internal/proc"
	"github.com/marcelocantos/pipe/internal/script"
)

// RunPipe segments tokens into stages, runs them and returns the exit
// code pipe should terminate with.
func RunPipe(ctx context.Context, cfg *config.Config, logger *zap.Logger, tokens []string, s Streams) int {
	resolver := lookup.FromEnv(cfg.SearchPath)
	cls, err := newClassifier(cfg, resolver, logger)
	if err != nil {
		fmt.Fprintf(s.Stderr, "pipe: %v\n", err)
		return ExitConfig
	}

	p, err := pipeline.Parse(tokens, cls)
	if err != nil {
		fmt.Fprintf(s.Stderr, "pipe: %v\n", err)
		return ExitUsage
	}

	timeout, _ := cfg.TimeoutDuration()
	grace, _ := cfg.KillGraceDuration()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := metrics.New()
	exe := pipeline.NewExecutor(logger)
	exe.Launcher = &proc.Launcher{
		Loader: proc.ExecLoader{Path: resolver},
		Stdin:  s.Stdin,
		Stdout: s.Stdout,
		Stderr: s.Stderr,
	}
	exe.Observer = m
	exe.KillGrace = grace

	start := time.Now()
	res, runErr := exe.Execute(ctx, p)
	code, errMsg := resolveError(res, runErr)
	if runErr != nil {
		fmt.Fprintf(s.Stderr, "pipe: %s\n", errMsg)
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			logger.Warn("metrics textfile not written", zap.String("path", path), zap.Error(err))
		}
	}
	if cfg.Audit.Enabled {
		logAudit(cfg.Audit.Path, logger, tokens, p, res, code, errMsg, time.Since(start))
	}
	return code
}

// newClassifier builds the segmentation rules: syntax first, then the
// optional user script, then a search-path probe.
func newClassifier(cfg *config.Config, resolver *lookup.Resolver, logger *zap.Logger) (pipeline.Classifier, error) {
	chain := pipeline.Chain{pipeline.Syntactic}
	if path := cfg.Classifier.Script; path != "" {
		sc, err := script.Load(path, resolver.Dirs())
		if err != nil {
			return nil, err
		}
		sc.OnError(func(token string, err error) {
			logger.Warn("classifier script failed",
				zap.String("script", path), zap.String("token", token), zap.Error(err))
		})
		chain = append(chain, sc)
	}
	return append(chain, pipeline.Probe(resolver)), nil
}

// resolveError maps an execution result to pipe's exit code and a
// message for failures of pipe itself. Stage failures are reported only
// through the code.
func resolveError(res *pipeline.Result, err error) (int, string) {
	if err != nil {
		return ExitOSErr, err.Error()
	}
	return res.Code, ""
}

// logAudit records the run. Audit failures are logged but never change
// the exit code.
func logAudit(path string, logger *zap.Logger, tokens []string, p *pipeline.Pipeline, res *pipeline.Result, code int, errMsg string, d time.Duration) {
	al, err := audit.NewLogger(path)
	if err != nil {
		logger.Warn("audit log unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	e := audit.Entry{
		Tokens:   tokens,
		Stages:   p.Argv(),
		ExitCode: code,
		Error:    errMsg,
		Duration: audit.Millis(d),
	}
	if res != nil {
		e.RunID = res.RunID
		for _, rec := range res.Records {
			e.Outcomes = append(e.Outcomes, rec.Outcome.String())
		}
	}
	e.Cwd, _ = os.Getwd()
	if err := al.Log(e); err != nil {
		logger.Warn("audit entry not written", zap.String("path", path), zap.Error(err))
	}
}
