package interp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marcelocantos/treesh/internal/ast"
	"github.com/marcelocantos/treesh/internal/env"
)

func leaf(verb string, args ...string) *ast.Node {
	return ast.Simple(&ast.SimpleCommand{Verb: verb, Args: args})
}

func assign(name, value string) *ast.Node {
	return leaf(name + "=" + value)
}

// failingLeaf is a command that fails without spawning a process.
func failingLeaf() *ast.Node {
	return leaf("cd", "/definitely/not/a/real/directory")
}

func newStdio() (Stdio, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return Stdio{In: strings.NewReader(""), Out: &out, Err: &errOut}, &out, &errOut
}

func TestSequentialReturnsRightStatus(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	// true-ish ; failing: both run, right's status wins.
	tree := ast.Combine(ast.OpSequential, assign("SEQ_A", "1"), failingLeaf())
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status == 0 {
		t.Error("expected nonzero status from the right operand")
	}
	if got := in.Env().Get("SEQ_A"); got != "1" {
		t.Errorf("left operand did not run: SEQ_A = %q", got)
	}
}

func TestSequentialDiscardsLeftStatus(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpSequential, failingLeaf(), assign("SEQ_B", "2"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0 (left failure discarded)", status)
	}
	if got := in.Env().Get("SEQ_B"); got != "2" {
		t.Errorf("right operand did not run: SEQ_B = %q", got)
	}
}

func TestAndThenRunsRightOnSuccess(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpAndThen, assign("AND_A", "1"), assign("AND_B", "2"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if got := in.Env().Get("AND_B"); got != "2" {
		t.Errorf("right operand did not run: AND_B = %q", got)
	}
}

// The short-circuit paths deliberately report success rather than the left
// operand's status; this diverges from POSIX and is pinned here so it can't
// change silently.
func TestAndThenShortCircuitReturnsZero(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpAndThen, failingLeaf(), assign("AND_SKIP", "1"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0 on short-circuit", status)
	}
	if _, ok := in.Env().Lookup("AND_SKIP"); ok {
		t.Error("right operand ran despite the left operand failing")
	}
}

func TestOrElseRunsRightOnFailure(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpOrElse, failingLeaf(), assign("OR_B", "2"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if got := in.Env().Get("OR_B"); got != "2" {
		t.Errorf("right operand did not run: OR_B = %q", got)
	}
}

func TestOrElseShortCircuitReturnsZero(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpOrElse, assign("OR_A", "1"), assign("OR_SKIP", "2"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if _, ok := in.Env().Lookup("OR_SKIP"); ok {
		t.Error("right operand ran despite the left operand succeeding")
	}
}

func TestParallelBranchesAreIsolated(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpParallel, assign("PAR_A", "1"), assign("PAR_B", "2"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	// Branches run in forked interpreters; assignments never reach the
	// parent, same as a real fork.
	if _, ok := in.Env().Lookup("PAR_A"); ok {
		t.Error("parallel branch assignment leaked into the parent")
	}
	if _, ok := in.Env().Lookup("PAR_B"); ok {
		t.Error("parallel branch assignment leaked into the parent")
	}
}

func TestParallelIgnoresBranchStatuses(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	// One failing branch, one silent branch: both complete normally, so
	// the node reports success regardless of the failure status.
	tree := ast.Combine(ast.OpParallel, failingLeaf(), assign("PAR_OK", "1"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0 (branch statuses are not inspected)", status)
	}
}

func TestParallelPropagatesEngineErrors(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	malformed := &ast.Node{Op: ast.OpPipe, Left: leaf("a")} // missing right child
	tree := ast.Combine(ast.OpParallel, assign("PAR_X", "1"), malformed)
	status, err := in.Eval(context.Background(), tree, std)
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("err = %v, want ErrMalformedTree", err)
	}
	if status == 0 {
		t.Error("expected failure status for a malformed branch")
	}
}

func TestPipeExternal(t *testing.T) {
	in := New()
	std, out, _ := newStdio()

	tree := ast.Combine(ast.OpPipe, leaf("echo", "hello"), leaf("wc", "-c"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if got := strings.TrimSpace(out.String()); got != "6" {
		t.Errorf("wc -c = %q, want 6", got)
	}
}

func TestPipeStatusIsRightStage(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpPipe, leaf("echo", "x"), leaf("sh", "-c", "exit 7"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 7 {
		t.Errorf("status = %d, want 7 (final stage is authoritative)", status)
	}
}

func TestPipeBuiltinSource(t *testing.T) {
	dir := t.TempDir()
	in := New(WithCwd(dir))
	std, out, _ := newStdio()

	tree := ast.Combine(ast.OpPipe, leaf("pwd"), leaf("cat"))
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if got := strings.TrimSpace(out.String()); got != dir {
		t.Errorf("piped pwd = %q, want %q", got, dir)
	}
}

func TestPipeIsolatesEnvironment(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	tree := ast.Combine(ast.OpPipe, assign("PIPE_A", "1"), leaf("cat"))
	if _, err := in.Eval(context.Background(), tree, std); err != nil {
		t.Fatal(err)
	}
	if _, ok := in.Env().Lookup("PIPE_A"); ok {
		t.Error("pipe stage assignment leaked into the parent")
	}
}

func TestEvalNilNode(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	status, err := in.Eval(context.Background(), nil, std)
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("err = %v, want ErrMalformedTree", err)
	}
	if status == 0 {
		t.Error("expected failure status")
	}
}

func TestEvalOperatorMissingChild(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	status, err := in.Eval(context.Background(), &ast.Node{Op: ast.OpSequential, Left: leaf("a")}, std)
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("err = %v, want ErrMalformedTree", err)
	}
	if status == 0 {
		t.Error("expected failure status")
	}
}

func TestEvalNonRootRequiresParent(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	// Driving the internal walk directly: depth > 0 with no parent is a
	// structural violation.
	_, err := in.eval(context.Background(), leaf("pwd"), 1, nil, std)
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("err = %v, want ErrMalformedTree", err)
	}
}

func TestDeeplyNestedTree(t *testing.T) {
	in := New()
	std, _, _ := newStdio()

	// No depth limit is enforced.
	tree := assign("DEEP", "0")
	for i := 0; i < 200; i++ {
		tree = ast.Combine(ast.OpSequential, tree, assign("DEEP", "1"))
	}
	status, err := in.Eval(context.Background(), tree, std)
	if err != nil {
		t.Fatal(err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if got := in.Env().Get("DEEP"); got != "1" {
		t.Errorf("DEEP = %q, want 1", got)
	}
}

func TestForkIsolatesCwd(t *testing.T) {
	dir := t.TempDir()
	in := New(WithCwd(dir))

	branch := in.fork()
	branch.cwd = "/"
	if in.Cwd() != dir {
		t.Errorf("parent cwd changed to %q", in.Cwd())
	}
	branch.env.Set("FORK_ONLY", "1")
	if _, ok := in.Env().Lookup("FORK_ONLY"); ok {
		t.Error("fork environment leaked into parent")
	}
}

func TestWithEnvOption(t *testing.T) {
	snap := env.New()
	snap.Set("ONLY", "me")
	in := New(WithEnv(snap))
	if got := in.Env().Get("ONLY"); got != "me" {
		t.Errorf("ONLY = %q, want me", got)
	}
}
