package proc

import (
	"fmt"
	"os"
)

// Link is one unidirectional pipe. Link k carries stage k's stdout to
// stage k+1's stdin. A nil end has already been closed by the parent.
type Link struct {
	R *os.File
	W *os.File
}

// AllocError reports a pipe that could not be created. Links allocated
// before it have already been closed.
type AllocError struct {
	Link int
	Err  error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("allocate pipe %d: %v", e.Link, e.Err)
}

func (e *AllocError) Unwrap() error { return e.Err }

// Fabric is the fixed set of links for one pipeline run. It is allocated
// in full before any process is started and never resized.
type Fabric struct {
	stages int
	links  []Link
}

// Allocate creates the n-1 links needed for n stages.
func Allocate(n int) (*Fabric, error) {
	return allocate(n, openPipe)
}

func allocate(n int, open func() (r, w *os.File, err error)) (*Fabric, error) {
	if n < 1 {
		return nil, fmt.Errorf("allocate pipes: need at least one stage, got %d", n)
	}
	f := &Fabric{stages: n, links: make([]Link, 0, n-1)}
	for k := 0; k < n-1; k++ {
		r, w, err := open()
		if err != nil {
			f.Close()
			return nil, &AllocError{Link: k, Err: err}
		}
		f.links = append(f.links, Link{R: r, W: w})
	}
	return f, nil
}

// Len returns the number of links.
func (f *Fabric) Len() int { return len(f.links) }

// Link returns a copy of link k.
func (f *Fabric) Link(k int) Link { return f.links[k] }

// Stdin returns the descriptor stage i reads from, or nil for the first
// stage, which inherits the parent's stdin.
func (f *Fabric) Stdin(i int) *os.File {
	if i == 0 {
		return nil
	}
	return f.links[i-1].R
}

// Stdout returns the descriptor stage i writes to, or nil for the last
// stage, which inherits the parent's stdout.
func (f *Fabric) Stdout(i int) *os.File {
	if i == f.stages-1 {
		return nil
	}
	return f.links[i].W
}

// Release closes the parent's copies of the ends stage i owns: the read
// end of link i-1 and the write end of link i.
func (f *Fabric) Release(i int) {
	if i > 0 {
		f.CloseRead(i - 1)
	}
	if i < f.stages-1 {
		f.CloseWrite(i)
	}
}

// CloseRead closes the read end of link k if still open.
func (f *Fabric) CloseRead(k int) {
	if f.links[k].R != nil {
		f.links[k].R.Close()
		f.links[k].R = nil
	}
}

// CloseWrite closes the write end of link k if still open.
func (f *Fabric) CloseWrite(k int) {
	if f.links[k].W != nil {
		f.links[k].W.Close()
		f.links[k].W = nil
	}
}

// Open returns the number of pipe ends the parent still holds.
func (f *Fabric) Open() int {
	n := 0
	for _, l := range f.links {
		if l.R != nil {
			n++
		}
		if l.W != nil {
			n++
		}
	}
	return n
}

// Close closes every end the parent still holds. It is safe to call more
// than once.
func (f *Fabric) Close() {
	for k := range f.links {
		f.CloseRead(k)
		f.CloseWrite(k)
	}
}
