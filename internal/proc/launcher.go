package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Loader starts a program with the given descriptors installed as its
// stdin, stdout and stderr, and returns its pid.
type Loader interface {
	Start(argv []string, files []*os.File) (pid int, err error)
}

// LoadError means the program could not be loaded. The failure is local
// to its stage and surfaces only as that stage's exit code.
type LoadError struct {
	Name     string
	NotFound bool
	Wiring   bool // the child ran out of descriptors before loading
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Code is the exit code recorded for the stage.
func (e *LoadError) Code() int {
	switch {
	case e.Wiring:
		return CodeWiringFailed
	case e.NotFound:
		return CodeNotFound
	}
	return CodeNotExecutable
}

// ForkError means no process could be created. It aborts the launch of
// any remaining stages.
type ForkError struct {
	Stage int
	Err   error
}

func (e *ForkError) Error() string {
	return fmt.Sprintf("start stage %d: %v", e.Stage, e.Err)
}

func (e *ForkError) Unwrap() error { return e.Err }

// PathFinder resolves a program name to a path.
type PathFinder interface {
	LookPath(name string) (string, error)
}

type execLookPath struct{}

func (execLookPath) LookPath(name string) (string, error) { return exec.LookPath(name) }

// ExecLoader starts programs with os.StartProcess using the inherited
// environment.
type ExecLoader struct {
	Path PathFinder // defaults to exec.LookPath
	Env  []string   // defaults to os.Environ()
}

func (l ExecLoader) Start(argv []string, files []*os.File) (int, error) {
	finder := l.Path
	if finder == nil {
		finder = execLookPath{}
	}
	path, err := finder.LookPath(argv[0])
	if err != nil {
		return 0, &LoadError{Name: argv[0], NotFound: !errors.Is(err, os.ErrPermission), Err: err}
	}
	env := l.Env
	if env == nil {
		env = os.Environ()
	}

	p, err := os.StartProcess(path, argv, &os.ProcAttr{Env: env, Files: files})
	if err != nil {
		return 0, classifyStartError(argv[0], err)
	}
	pid := p.Pid
	// The collector reaps with wait4; the handle is not needed.
	p.Release()
	return pid, nil
}

// classifyStartError separates failures of the new program image, which
// belong to the stage, from failures to create a process at all.
func classifyStartError(name string, err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case unix.EAGAIN, unix.ENOMEM, unix.ENOSYS:
		return err
	case unix.EMFILE, unix.ENFILE:
		// Reported alike whether the parent could not set up the fork or
		// the child could not install its streams. Only the first aborts.
		if !descriptorsAvailable() {
			return err
		}
		return &LoadError{Name: name, Wiring: true, Err: err}
	case unix.ENOENT, unix.ENOTDIR:
		return &LoadError{Name: name, NotFound: true, Err: err}
	default:
		return &LoadError{Name: name, Err: err}
	}
}

// descriptorsAvailable reports whether the parent can still open a pipe.
var descriptorsAvailable = func() bool {
	r, w, err := openPipe()
	if err != nil {
		return false
	}
	r.Close()
	w.Close()
	return true
}

// Launcher starts one process per stage and wires it into the fabric.
type Launcher struct {
	Loader Loader

	// Stdin, Stdout and Stderr are the pipeline's outer streams. Nil
	// means the parent's own.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Launch starts stage i with argv. Stage i reads from link i-1 (or the
// pipeline's stdin) and writes to link i (or the pipeline's stdout).
//
// Whatever happens, the parent's copies of the ends stage i owns are
// closed before Launch returns. A program that fails to load yields a
// completed record with code 127 or 126 alongside the *LoadError; the
// pipeline carries on. Any other failure is returned as a *ForkError.
func (l *Launcher) Launch(i int, argv []string, fab *Fabric) (Record, error) {
	stdin := fab.Stdin(i)
	if stdin == nil {
		stdin = orDefault(l.Stdin, os.Stdin)
	}
	stdout := fab.Stdout(i)
	if stdout == nil {
		stdout = orDefault(l.Stdout, os.Stdout)
	}
	files := []*os.File{stdin, stdout, orDefault(l.Stderr, os.Stderr)}

	pid, err := l.Loader.Start(argv, files)
	fab.Release(i)

	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return Record{Stage: i, Outcome: ExitedWith(le.Code())}, le
		}
		return Record{Stage: i}, &ForkError{Stage: i, Err: err}
	}
	return Record{Stage: i, Pid: pid}, nil
}

func orDefault(f, def *os.File) *os.File {
	if f != nil {
		return f
	}
	return def
}
