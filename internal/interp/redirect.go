package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/marcelocantos/treesh/internal/ast"
	"github.com/marcelocantos/treesh/internal/env"
)

// createMode is the permission set for files created by redirection:
// owner read/write, group and world read.
const createMode = 0o644

// bindRedirects applies a command's redirect specs to the inherited stdio
// triple and returns the bound triple plus a release function that closes
// every file the binder opened. Redirect targets are variable-expanded,
// quote-stripped and resolved against the interpreter's working directory.
// When the output and error specs are textually identical the target is
// opened once and bound to both streams.
func (in *Interp) bindRedirects(cmd *ast.SimpleCommand, std Stdio) (Stdio, func(), error) {
	bound := std
	var opened []io.Closer
	release := func() {
		for _, c := range opened {
			c.Close()
		}
	}

	open := func(spec string, flags int) (*os.File, error) {
		path := in.abs(env.StripQuotes(in.env.Expand(spec)))
		f, err := os.OpenFile(path, flags, createMode)
		if err != nil {
			return nil, fmt.Errorf("%w%s", err, sysCause(err))
		}
		opened = append(opened, f)
		return f, nil
	}

	if cmd.In != "" {
		f, err := open(cmd.In, os.O_RDONLY)
		if err != nil {
			release()
			return Stdio{}, nil, fmt.Errorf("input redirect: %w", err)
		}
		bound.In = f
	}

	if cmd.Out != "" && cmd.Out == cmd.Err {
		f, err := open(cmd.Out, outFlags(cmd.AppendOut))
		if err != nil {
			release()
			return Stdio{}, nil, fmt.Errorf("output redirect: %w", err)
		}
		bound.Out = f
		bound.Err = f
		return bound, release, nil
	}

	if cmd.Out != "" {
		f, err := open(cmd.Out, outFlags(cmd.AppendOut))
		if err != nil {
			release()
			return Stdio{}, nil, fmt.Errorf("output redirect: %w", err)
		}
		bound.Out = f
	}
	if cmd.Err != "" {
		f, err := open(cmd.Err, outFlags(cmd.AppendErr))
		if err != nil {
			release()
			return Stdio{}, nil, fmt.Errorf("error redirect: %w", err)
		}
		bound.Err = f
	}
	return bound, release, nil
}

func outFlags(appendMode bool) int {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		return flags | os.O_APPEND
	}
	return flags | os.O_TRUNC
}
