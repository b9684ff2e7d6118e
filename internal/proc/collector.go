package proc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Waiter blocks until some child changes state.
type Waiter interface {
	Wait() (pid int, ws unix.WaitStatus, err error)
}

// AnyChild waits for any child of the current process with wait4(-1).
type AnyChild struct{}

func (AnyChild) Wait() (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, 0, nil)
	return pid, ws, err
}

// WaitError aborts collection. Records resolved before it remain valid.
type WaitError struct {
	Pending int
	Err     error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait (%d pending): %v", e.Pending, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// Collector reaps children in whatever order they finish and resolves
// their records.
type Collector struct {
	Waiter Waiter

	// OnExit, if set, is called with each record as it is resolved.
	OnExit func(Record)
}

// NewCollector returns a collector that reaps with wait4.
func NewCollector() *Collector {
	return &Collector{Waiter: AnyChild{}}
}

// Collect blocks until every pending record in t is resolved. Reports for
// pids the table does not know, or knows as resolved, are dropped.
// Interrupted waits are retried.
func (c *Collector) Collect(t *Table) error {
	for t.Pending() > 0 {
		pid, ws, err := c.Waiter.Wait()
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return &WaitError{Pending: t.Pending(), Err: err}
		}
		o, ok := FromWaitStatus(ws)
		if !ok {
			continue
		}
		rec, ok := t.Resolve(pid, o)
		if !ok {
			continue
		}
		if c.OnExit != nil {
			c.OnExit(rec)
		}
	}
	return nil
}
