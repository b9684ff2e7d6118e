//go:build unix && !linux

package proc

import "os"

// os.Pipe sets close-on-exec on every platform it supports.
func openPipe() (r, w *os.File, err error) {
	return os.Pipe()
}
