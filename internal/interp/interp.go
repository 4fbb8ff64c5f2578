// Package interp evaluates command trees against the operating system:
// external processes, stdio redirection, environment assignment and the
// cd/pwd/exit/quit builtins. One Interp models one shell process; Parallel
// and Pipe operators fork it, so environment and working-directory changes
// never leak across concurrent branches.
package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/marcelocantos/treesh/internal/ast"
	"github.com/marcelocantos/treesh/internal/env"
)

// ErrMalformedTree is returned when a tree violates its structural
// invariants (nil node, leaf without a verb, operator missing a child, or a
// non-root node evaluated without a parent).
var ErrMalformedTree = errors.New("malformed command tree")

// Stdio is the stream triple a command runs against.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Interp evaluates command trees. It owns an environment snapshot and a
// tracked working directory; both are copied when an operator forks a
// branch, mirroring fork's copy-on-write isolation.
type Interp struct {
	env      *env.Snapshot
	cwd      string
	builtins map[string]builtin
	exit     func(code int) // exit/quit terminator; overridable in tests
}

// Option configures an Interp.
type Option func(*Interp)

// WithEnv replaces the captured process environment with snap.
func WithEnv(snap *env.Snapshot) Option {
	return func(in *Interp) { in.env = snap }
}

// WithCwd sets the initial working directory.
func WithCwd(dir string) Option {
	return func(in *Interp) { in.cwd = dir }
}

// WithExitFunc replaces the process terminator used by exit/quit.
func WithExitFunc(fn func(code int)) Option {
	return func(in *Interp) { in.exit = fn }
}

// New returns an interpreter seeded from the calling process: its
// environment and working directory.
func New(opts ...Option) *Interp {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}
	in := &Interp{
		env:  env.Capture(os.Environ()),
		cwd:  cwd,
		exit: os.Exit,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.builtins = registerBuiltins()
	return in
}

// Env returns the interpreter's environment snapshot.
func (in *Interp) Env() *env.Snapshot { return in.env }

// Cwd returns the interpreter's tracked working directory.
func (in *Interp) Cwd() string { return in.cwd }

// fork returns an interpreter for a concurrent branch: same builtins and
// terminator, copied environment and working directory.
func (in *Interp) fork() *Interp {
	return &Interp{
		env:      in.env.Clone(),
		cwd:      in.cwd,
		builtins: in.builtins,
		exit:     in.exit,
	}
}

// Eval evaluates a command tree rooted at root and returns its exit status.
// The error return carries engine failures (malformed trees); command
// failures are reported through the status and the command's own stderr.
func (in *Interp) Eval(ctx context.Context, root *ast.Node, std Stdio) (int, error) {
	return in.eval(ctx, root, 0, nil, std)
}

// eval carries an explicit (depth, parent) pair: the root runs at depth 0
// with no parent, and every descent increments depth. The pair exists only
// to reject malformed trees; no depth limit is enforced.
func (in *Interp) eval(ctx context.Context, node *ast.Node, depth int, parent *ast.Node, std Stdio) (int, error) {
	switch {
	case node == nil:
		return 1, fmt.Errorf("%w: nil node at depth %d", ErrMalformedTree, depth)
	case depth > 0 && parent == nil:
		return 1, fmt.Errorf("%w: non-root node without a parent", ErrMalformedTree)
	}

	if node.Cmd != nil {
		return in.runSimple(ctx, node.Cmd, std)
	}
	if node.Left == nil || node.Right == nil {
		return 1, fmt.Errorf("%w: operator %q missing an operand", ErrMalformedTree, node.Op)
	}

	switch node.Op {
	case ast.OpSequential:
		// Left's status is discarded; an engine error on the left aborts
		// only that subtree.
		if _, err := in.eval(ctx, node.Left, depth+1, node, std); err != nil {
			fmt.Fprintf(std.Err, "treesh: %v\n", err)
		}
		return in.eval(ctx, node.Right, depth+1, node, std)

	case ast.OpAndThen:
		status, err := in.eval(ctx, node.Left, depth+1, node, std)
		if err != nil {
			return status, err
		}
		if status == 0 {
			return in.eval(ctx, node.Right, depth+1, node, std)
		}
		// A short-circuited chain reports success, not the left status.
		return 0, nil

	case ast.OpOrElse:
		status, err := in.eval(ctx, node.Left, depth+1, node, std)
		if err != nil {
			return status, err
		}
		if status != 0 {
			return in.eval(ctx, node.Right, depth+1, node, std)
		}
		return 0, nil

	case ast.OpParallel:
		return in.evalParallel(ctx, node, depth, std)

	case ast.OpPipe:
		return in.evalPipe(ctx, node, depth, std)

	default:
		return 1, fmt.Errorf("%w: unknown operator %d", ErrMalformedTree, int(node.Op))
	}
}

// evalParallel runs both subtrees concurrently in forked interpreters and
// joins them. It succeeds iff both evaluations completed without an engine
// error; the branches' exit statuses are not compared.
func (in *Interp) evalParallel(ctx context.Context, node *ast.Node, depth int, std Stdio) (int, error) {
	var (
		wg   sync.WaitGroup
		errs [2]error
	)

	for i, sub := range []*ast.Node{node.Left, node.Right} {
		i, sub := i, sub
		branch := in.fork()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = branch.eval(ctx, sub, depth+1, node, std)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs[0], errs[1]); err != nil {
		return 1, err
	}
	return 0, nil
}

// evalPipe connects left's stdout to right's stdin, runs both subtrees
// concurrently in forked interpreters, and joins them. The right stage's
// status is the pipeline's status. The writer is closed when the left stage
// finishes so the right stage sees EOF; the reader is closed when the right
// stage finishes so a still-writing left stage fails instead of blocking.
func (in *Interp) evalPipe(ctx context.Context, node *ast.Node, depth int, std Stdio) (int, error) {
	pr, pw := io.Pipe()
	left, right := in.fork(), in.fork()

	var (
		wg          sync.WaitGroup
		leftErr     error
		rightStatus int
		rightErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := left.eval(ctx, node.Left, depth+1, node, Stdio{In: std.In, Out: pw, Err: std.Err})
		pw.CloseWithError(err)
		leftErr = err
	}()
	go func() {
		defer wg.Done()
		rightStatus, rightErr = right.eval(ctx, node.Right, depth+1, node, Stdio{In: pr, Out: std.Out, Err: std.Err})
		pr.Close()
	}()
	wg.Wait()

	if leftErr != nil {
		fmt.Fprintf(std.Err, "treesh: pipe: %v\n", leftErr)
	}
	return rightStatus, rightErr
}

// sysCause classifies launch and open failures the way the diagnostics
// distinguish resource exhaustion from everything else.
func sysCause(err error) string {
	switch {
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.ENOMEM):
		return " (process resources exhausted)"
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return " (descriptor limit reached)"
	}
	return ""
}

// abs resolves path against the interpreter's tracked working directory.
func (in *Interp) abs(path string) string {
	if path == "" || filepath.IsAbs(path) || in.cwd == "" {
		return path
	}
	return filepath.Join(in.cwd, path)
}
