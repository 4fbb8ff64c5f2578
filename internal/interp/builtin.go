package interp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/marcelocantos/treesh/internal/env"
)

// builtin is a command implemented inside the interpreter. Builtins run
// against a bound stdio triple, so they never disturb the caller's streams,
// and they report failures without terminating the shell (exit/quit being
// the deliberate exception).
type builtin interface {
	name() string
	run(ctx context.Context, in *Interp, args []string, std Stdio) int
}

func registerBuiltins() map[string]builtin {
	m := make(map[string]builtin)
	for _, b := range []builtin{
		cdBuiltin{},
		pwdBuiltin{},
		exitBuiltin{verb: "exit"},
		exitBuiltin{verb: "quit"},
	} {
		m[b.name()] = b
	}
	return m
}

// IsBuiltin reports whether verb names a builtin command.
func (in *Interp) IsBuiltin(verb string) bool {
	_, ok := in.builtins[verb]
	return ok
}

// cdBuiltin changes the interpreter's tracked working directory. The target
// is the quote-stripped first argument if non-empty, else $HOME.
type cdBuiltin struct{}

func (cdBuiltin) name() string { return "cd" }

func (cdBuiltin) run(_ context.Context, in *Interp, args []string, std Stdio) int {
	var target string
	if len(args) > 0 {
		target = env.StripQuotes(args[0])
	}
	if target == "" {
		target = in.env.Get("HOME")
		if target == "" {
			fmt.Fprintln(std.Err, "cd: HOME not set")
			return 1
		}
	}

	dest := filepath.Clean(in.abs(target))
	fi, err := os.Stat(dest)
	if err != nil || !fi.IsDir() {
		fmt.Fprintf(std.Err, "cd: %s: No such file or directory\n", target)
		return 1
	}
	// A directory without search permission stats fine but cannot be
	// entered; chdir would fail, so the tracked cwd must too.
	if err := unix.Access(dest, unix.X_OK); err != nil {
		fmt.Fprintf(std.Err, "cd: %s: Permission denied\n", target)
		return 1
	}
	in.cwd = dest
	return 0
}

// pwdBuiltin prints the tracked working directory.
type pwdBuiltin struct{}

func (pwdBuiltin) name() string { return "pwd" }

func (pwdBuiltin) run(_ context.Context, in *Interp, _ []string, std Stdio) int {
	wd := in.cwd
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			fmt.Fprintf(std.Err, "pwd: %v\n", err)
			return 1
		}
	}
	fmt.Fprintln(std.Out, wd)
	return 0
}

// exitBuiltin terminates the whole process with success status. It never
// returns under the default terminator, even inside a parallel branch.
type exitBuiltin struct {
	verb string
}

func (b exitBuiltin) name() string { return b.verb }

func (b exitBuiltin) run(_ context.Context, in *Interp, _ []string, _ Stdio) int {
	in.exit(0)
	return 0 // reachable only when the terminator was overridden
}
