package cli

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/pipe/internal/audit"
)

func requireTools(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

type harness struct {
	t      *testing.T
	dir    string
	config string
}

func newHarness(t *testing.T, config string) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))
	return &harness{t: t, dir: dir, config: path}
}

// run executes pipe with the harness config and returns the exit code,
// stdout and stderr.
func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	stdin, err := os.Open(os.DevNull)
	require.NoError(h.t, err)
	defer stdin.Close()
	stdout, err := os.CreateTemp(h.dir, "stdout")
	require.NoError(h.t, err)
	defer stdout.Close()
	stderr, err := os.CreateTemp(h.dir, "stderr")
	require.NoError(h.t, err)
	defer stderr.Close()

	args = append([]string{"--config", h.config}, args...)
	code := Execute(context.Background(), "test", args, Streams{Stdin: stdin, Stdout: stdout, Stderr: stderr})

	out, err := os.ReadFile(stdout.Name())
	require.NoError(h.t, err)
	errOut, err := os.ReadFile(stderr.Name())
	require.NoError(h.t, err)
	return code, string(out), string(errOut)
}

func TestNoProgramIsUsageError(t *testing.T) {
	h := newHarness(t, "")
	code, _, stderr := h.run()
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "no program given")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	h := newHarness(t, "")
	code, _, _ := h.run("--no-such-flag", "true")
	assert.Equal(t, ExitUsage, code)
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t, "log:\n  level: loud\n")
	code, _, stderr := h.run("true")
	assert.Equal(t, ExitConfig, code)
	assert.Contains(t, stderr, "loud")
}

func TestRunsPipeline(t *testing.T) {
	requireTools(t, "printf", "tr")
	h := newHarness(t, "")
	code, stdout, _ := h.run("printf", "hello", "tr", "a-z", "A-Z")
	assert.Equal(t, 0, code)
	assert.Equal(t, "HELLO", stdout)
}

func TestFlagsAfterProgramBelongToStage(t *testing.T) {
	requireTools(t, "printf", "head")
	h := newHarness(t, "")
	code, stdout, _ := h.run("printf", `a\nb\nc\n`, "head", "-n", "2")
	assert.Equal(t, 0, code)
	assert.Equal(t, "a\nb\n", stdout)
}

func TestCommandFlag(t *testing.T) {
	requireTools(t, "printf", "tr")
	h := newHarness(t, "")
	code, stdout, _ := h.run("-c", "printf 'a b' tr a-z A-Z")
	assert.Equal(t, 0, code)
	assert.Equal(t, "A B", stdout)
}

func TestCommandFlagWithArgsIsUsageError(t *testing.T) {
	h := newHarness(t, "")
	code, _, stderr := h.run("-c", "true", "false")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "--command")
}

func TestExitCodeOfStage(t *testing.T) {
	requireTools(t, "sh", "true")
	h := newHarness(t, "")
	code, _, _ := h.run("true", "sh", "-c", "exit 3")
	assert.Equal(t, 3, code)
}

func TestNotExecutableOnSearchPath(t *testing.T) {
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "notprog"), []byte("#!/bin/sh\n"), 0o644))
	h := newHarness(t, "search_path: "+bin+"\n")

	code, _, stderr := h.run("notprog")
	assert.Equal(t, 126, code)
	assert.Contains(t, stderr, "permission denied")
}

func TestNotFoundOnSearchPath(t *testing.T) {
	h := newHarness(t, "search_path: "+t.TempDir()+"\n")
	code, _, _ := h.run("notprog")
	assert.Equal(t, 127, code)
}

func TestTimeoutFlag(t *testing.T) {
	requireTools(t, "sleep")
	h := newHarness(t, "kill_grace: 1s\n")
	code, _, _ := h.run("--timeout", "100ms", "sleep", "5")
	assert.Equal(t, 128+15, code)
}

func TestExplainDoesNotRun(t *testing.T) {
	requireTools(t, "printf", "cat")
	color.NoColor = true
	h := newHarness(t, "")
	code, stdout, _ := h.run("--explain", "printf", "x", "cat")
	assert.Equal(t, 0, code)
	assert.Equal(t, "stage 0  printf x\nstage 1  cat\n2 stages, 1 pipe\n", stdout)
}

func TestAuditAndMetrics(t *testing.T) {
	requireTools(t, "true", "false")
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	promPath := filepath.Join(dir, "pipe.prom")
	h := newHarness(t, "audit:\n  enabled: true\n  path: "+auditPath+"\nmetrics:\n  textfile: "+promPath+"\n")

	code, _, _ := h.run("true")
	assert.Equal(t, 0, code)
	code, _, _ = h.run("false", "true")
	assert.Equal(t, 1, code)

	entries, err := audit.Tail(auditPath, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, [][]string{{"true"}}, entries[0].Stages)
	assert.Equal(t, [][]string{{"false"}, {"true"}}, entries[1].Stages)
	assert.Equal(t, 1, entries[1].ExitCode)
	assert.Equal(t, []string{"exit 1", "exit 0"}, entries[1].Outcomes)
	assert.NotEmpty(t, entries[1].RunID)

	code, stdout, _ := h.run("--audit-verify")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "2 entries")

	code, stdout, _ = h.run("--audit-tail", "1")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, `"exit_code": 1`)

	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "pipe_stages_launched_total 2")
	assert.Contains(t, string(prom), "pipe_aggregate_exit_code 1")
}

func TestResolveError(t *testing.T) {
	code, msg := resolveError(nil, assert.AnError)
	assert.Equal(t, ExitOSErr, code)
	assert.Equal(t, assert.AnError.Error(), msg)
}
