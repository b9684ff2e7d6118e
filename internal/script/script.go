// Package script loads a user-supplied Starlark predicate that takes part
// in stage segmentation.
//
// The script must define a function
//
//	def is_command(token):
//	    ...
//
// returning True (starts a new stage), False (argument) or None (let the
// search-path probe decide). The predeclared value PATH holds the search
// directories as a list of strings.
package script

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/marcelocantos/pipe/internal/pipeline"
)

// FuncName is the function the script must define.
const FuncName = "is_command"

// Classifier is a pipeline.Rule backed by a Starlark function.
type Classifier struct {
	thread *starlark.Thread
	fn     starlark.Callable
	onErr  func(token string, err error)
}

// Load reads and executes the script at path.
func Load(path string, searchPath []string) (*Classifier, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier script: %w", err)
	}
	return Compile(path, src, searchPath)
}

// Compile executes src (reported as filename) and extracts the predicate.
func Compile(filename string, src []byte, searchPath []string) (*Classifier, error) {
	dirs := make([]starlark.Value, len(searchPath))
	for i, d := range searchPath {
		dirs[i] = starlark.String(d)
	}
	predeclared := starlark.StringDict{
		"PATH": starlark.NewList(dirs),
	}

	thread := &starlark.Thread{Name: "classifier"}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", filename, err)
	}
	v, ok := globals[FuncName]
	if !ok {
		return nil, fmt.Errorf("%s: %s is not defined", filename, FuncName)
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: %s is a %s, not a function", filename, FuncName, v.Type())
	}
	return &Classifier{thread: thread, fn: fn}, nil
}

// OnError installs a callback for script failures. A failing call abstains.
func (c *Classifier) OnError(f func(token string, err error)) {
	c.onErr = f
}

// Judge calls the predicate with token.
func (c *Classifier) Judge(token string) pipeline.Verdict {
	v, err := starlark.Call(c.thread, c.fn, starlark.Tuple{starlark.String(token)}, nil)
	if err != nil {
		c.fail(token, err)
		return pipeline.Abstain
	}
	switch v := v.(type) {
	case starlark.NoneType:
		return pipeline.Abstain
	case starlark.Bool:
		if v {
			return pipeline.Accept
		}
		return pipeline.Reject
	default:
		c.fail(token, fmt.Errorf("%s returned %s, want bool or None", FuncName, v.Type()))
		return pipeline.Abstain
	}
}

func (c *Classifier) fail(token string, err error) {
	if c.onErr != nil {
		c.onErr(token, err)
	}
}
