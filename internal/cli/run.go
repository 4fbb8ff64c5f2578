package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/marcelocantos/treesh/internal/audit"
	"github.com/marcelocantos/treesh/internal/interp"
	"github.com/marcelocantos/treesh/internal/parse"
)

// RunLine parses and evaluates a single command line, returning its exit
// status. Parse errors are reported on std.Err and yield status 2; engine
// errors (malformed trees) likewise. A blank line is a no-op with status 0.
func RunLine(ctx context.Context, in *interp.Interp, logger *audit.Logger, line string, std interp.Stdio) int {
	tree, err := parse.Line(line)
	if err != nil {
		if errors.Is(err, parse.ErrEmpty) {
			return 0
		}
		fmt.Fprintf(std.Err, "treesh: %v\n", err)
		return 2
	}

	start := time.Now()
	status, evalErr := in.Eval(ctx, tree, std)
	duration := time.Since(start)

	errMsg := ""
	if evalErr != nil {
		fmt.Fprintf(std.Err, "treesh: %v\n", evalErr)
		errMsg = evalErr.Error()
		if status == 0 {
			status = 2
		}
	}

	logAudit(logger, strings.TrimSpace(line), tree.Verbs(), status, errMsg, duration, in.Cwd())

	return status
}

// RunScript evaluates r line by line, in order, and returns the status of
// the last line executed. A failing line does not stop the script.
func RunScript(ctx context.Context, in *interp.Interp, logger *audit.Logger, r io.Reader, std interp.Stdio) int {
	scanner := bufio.NewScanner(r)
	status := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return status
		}
		status = RunLine(ctx, in, logger, scanner.Text(), std)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(std.Err, "treesh: read script: %v\n", err)
		return 1
	}
	return status
}

// RunREPL reads command lines from std.In until EOF or context cancellation.
// The prompt is printed only when interactive is set, so piped input stays
// clean. The returned status is that of the last line executed.
func RunREPL(ctx context.Context, in *interp.Interp, logger *audit.Logger, prompt string, interactive bool, std interp.Stdio) int {
	promptColor := color.New(color.FgGreen, color.Bold)
	scanner := bufio.NewScanner(std.In)
	status := 0
	for {
		if ctx.Err() != nil {
			return status
		}
		if interactive {
			promptColor.Fprint(std.Out, prompt)
		}
		if !scanner.Scan() {
			break
		}
		status = RunLine(ctx, in, logger, scanner.Text(), std)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(std.Err, "treesh: read input: %v\n", err)
		return 1
	}
	if interactive {
		fmt.Fprintln(std.Out)
	}
	return status
}

func logAudit(logger *audit.Logger, command string, verbs []string, exitCode int, errMsg string, duration time.Duration, cwd string) {
	if logger == nil {
		return
	}
	// Best-effort audit logging — don't fail the command if audit fails.
	_ = logger.Log(command, verbs, exitCode, errMsg, duration, cwd)
}
