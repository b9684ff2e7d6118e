package proc

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// State is the lifecycle of a stage's process.
type State int

const (
	Pending State = iota
	Exited
	Signaled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Exit codes reported on behalf of stages whose program never ran.
const (
	CodeWiringFailed  = 125 // stdio could not be installed in the child
	CodeNotExecutable = 126
	CodeNotFound      = 127
)

// Outcome is how a stage's process ended.
type Outcome struct {
	State  State
	Code   int            // exit code when State == Exited
	Signal syscall.Signal // terminating signal when State == Signaled
}

// ExitedWith returns a normal-exit outcome.
func ExitedWith(code int) Outcome { return Outcome{State: Exited, Code: code} }

// KilledBy returns a signal-termination outcome.
func KilledBy(sig syscall.Signal) Outcome { return Outcome{State: Signaled, Signal: sig} }

func (o Outcome) String() string {
	switch o.State {
	case Exited:
		return fmt.Sprintf("exit %d", o.Code)
	case Signaled:
		if name := unix.SignalName(o.Signal); name != "" {
			return "killed by " + name
		}
		return fmt.Sprintf("killed by signal %d", int(o.Signal))
	default:
		return o.State.String()
	}
}

// FromWaitStatus converts a raw wait status. The boolean is false for
// statuses that are not terminations (stopped, continued).
func FromWaitStatus(ws unix.WaitStatus) (Outcome, bool) {
	switch {
	case ws.Exited():
		return ExitedWith(ws.ExitStatus()), true
	case ws.Signaled():
		return KilledBy(ws.Signal()), true
	default:
		return Outcome{}, false
	}
}

// EffectiveCode maps an outcome to a shell-compatible exit code. A stage
// killed by SIGPIPE counts as success: its reader finished early.
func EffectiveCode(o Outcome) int {
	switch o.State {
	case Exited:
		return o.Code
	case Signaled:
		if o.Signal == syscall.SIGPIPE {
			return 0
		}
		return 128 + int(o.Signal)
	default:
		return 0
	}
}

// Record is the bookkeeping for one stage. Pid is zero when the stage's
// program could not be loaded and no process exists.
type Record struct {
	Stage   int
	Pid     int
	Outcome Outcome
}

// Done reports whether the outcome is known.
func (r Record) Done() bool { return r.Outcome.State != Pending }

// Aggregate returns the first non-zero effective code in stage order, or
// zero when every stage succeeded. records must be in stage order.
func Aggregate(records []Record) int {
	for _, r := range records {
		if code := EffectiveCode(r.Outcome); code != 0 {
			return code
		}
	}
	return 0
}
