package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/marcelocantos/treesh/internal/ast"
)

// runSimple executes one simple command: an environment assignment, a
// builtin, or an external program, in that dispatch order.
func (in *Interp) runSimple(ctx context.Context, cmd *ast.SimpleCommand, std Stdio) (int, error) {
	if cmd.Verb == "" {
		return 1, fmt.Errorf("%w: simple command without a verb", ErrMalformedTree)
	}

	verb := in.env.Expand(cmd.Verb)

	// NAME=VALUE assigns in the current interpreter; no process is spawned.
	if name, value, ok := strings.Cut(verb, "="); ok {
		if name == "" || value == "" {
			fmt.Fprintf(std.Err, "treesh: invalid assignment %q\n", verb)
			return 1, nil
		}
		in.env.Set(name, value)
		return 0, nil
	}

	if b, ok := in.builtins[verb]; ok {
		bound, release, err := in.bindRedirects(cmd, std)
		if err != nil {
			// Builtin redirect failures are reported inline; nothing is
			// torn down and the caller's streams are untouched.
			fmt.Fprintf(std.Err, "%s: %v\n", verb, err)
			return 1, nil
		}
		defer release()
		return b.run(ctx, in, in.expandArgs(cmd.Args), bound), nil
	}

	return in.runExternal(ctx, verb, cmd, std)
}

// runExternal launches the verb as a child process and blocks until it
// terminates. Redirect failures and launch failures abort only this
// command: a diagnostic on the command's stderr and a failure status.
func (in *Interp) runExternal(ctx context.Context, verb string, cmd *ast.SimpleCommand, std Stdio) (int, error) {
	bound, release, err := in.bindRedirects(cmd, std)
	if err != nil {
		fmt.Fprintf(std.Err, "treesh: %s: %v\n", verb, err)
		return 1, nil
	}
	defer release()

	path, err := in.lookPath(verb)
	if err != nil {
		fmt.Fprintf(bound.Err, "treesh: execution failed for '%s': %v%s\n", verb, err, sysCause(err))
		return 1, nil
	}

	c := exec.CommandContext(ctx, path, in.expandArgs(cmd.Args)...)
	c.Args[0] = verb
	c.Dir = in.cwd
	c.Env = in.env.Environ()
	c.Stdin = bound.In
	c.Stdout = bound.Out
	c.Stderr = bound.Err

	if err := c.Start(); err != nil {
		fmt.Fprintf(bound.Err, "treesh: execution failed for '%s': %v%s\n", verb, err, sysCause(err))
		return 1, nil
	}
	return in.waitStatus(c, verb, bound.Err), nil
}

// lookPath resolves a bare verb against the interpreter's own PATH
// variable rather than the host process's, so an assignment like
// PATH=/dir is honored by later siblings. Verbs containing a path
// separator bypass the search and resolve against the tracked cwd.
func (in *Interp) lookPath(verb string) (string, error) {
	if strings.ContainsRune(verb, os.PathSeparator) {
		return verb, nil
	}
	for _, dir := range filepath.SplitList(in.env.Get("PATH")) {
		if dir == "" {
			dir = "."
		}
		candidate := in.abs(filepath.Join(dir, verb))
		fi, err := os.Stat(candidate)
		if err != nil || fi.Mode().IsDir() || fi.Mode().Perm()&0o111 == 0 {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%q: %w", verb, exec.ErrNotFound)
}

// waitStatus blocks on the child and folds its termination into an exit
// status: the code for a normal exit, 1 for a signal death or wait failure.
func (in *Interp) waitStatus(c *exec.Cmd, verb string, stderr io.Writer) int {
	err := c.Wait()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Exited() {
			return exitErr.ExitCode()
		}
		return 1 // terminated abnormally (signal)
	}
	if errors.Is(err, io.ErrClosedPipe) {
		// The downstream pipeline stage exited before reading everything;
		// the shell analogue is death by SIGPIPE.
		return 1
	}
	fmt.Fprintf(stderr, "treesh: wait for '%s': %v\n", verb, err)
	return 1
}

// expandArgs variable-expands the argument vector. Quoting was already
// resolved by the parser; quotes are stripped only where the contract says
// so (redirect targets, cd's directory argument).
func (in *Interp) expandArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = in.env.Expand(a)
	}
	return out
}
