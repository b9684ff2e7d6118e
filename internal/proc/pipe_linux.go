package proc

import (
	"os"

	"golang.org/x/sys/unix"
)

// openPipe creates a blocking close-on-exec pipe. The ends are not
// registered with the runtime poller since the parent never does I/O on
// them; they are only handed to children.
func openPipe() (r, w *os.File, err error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, os.NewSyscallError("pipe2", err)
	}
	return os.NewFile(uintptr(p[0]), "|0"), os.NewFile(uintptr(p[1]), "|1"), nil
}
