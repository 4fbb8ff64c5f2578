package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"

	"github.com/marcelocantos/treesh/internal/audit"
	"github.com/marcelocantos/treesh/internal/cli"
	"github.com/marcelocantos/treesh/internal/config"
	"github.com/marcelocantos/treesh/internal/interp"
)

var version = "dev"

const usage = `usage: treesh [-c <line>] [-audit <verify|show>] [-version] [script]

With no arguments, treesh reads command lines from standard input,
printing a prompt when attached to a terminal.`

func main() {
	os.Exit(run())
}

func run() int {
	// Load config.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "treesh: config: %v\n", err)
		return 1
	}

	// Set up the interpreter with config-provided variables layered over
	// the inherited environment.
	in := interp.New()
	cfg.ApplyEnv(in.Env())

	// Set up audit logger.
	var logger *audit.Logger
	if cfg.Audit.Enabled {
		logger, err = audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "treesh: audit: %v\n", err)
			// Continue without audit logging.
			logger = nil
		}
	}

	// Set up context with cancellation on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	std := interp.Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}

	if len(os.Args) < 2 {
		interactive := isatty.IsTerminal(os.Stdin.Fd())
		return cli.RunREPL(ctx, in, logger, cfg.Prompt, interactive, std)
	}

	switch os.Args[1] {
	case "-c":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "treesh: -c requires a command line")
			return 2
		}
		return cli.RunLine(ctx, in, logger, os.Args[2], std)
	case "-audit":
		return cli.RunAudit(os.Stdout, cfg.Audit.Path, os.Args[2:])
	case "-version":
		fmt.Printf("treesh %s\n", version)
		return 0
	case "-help":
		fmt.Println(usage)
		return 0
	default:
		// Everything else is a script file to execute line by line.
		f, err := os.Open(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "treesh: %v\n", err)
			return 1
		}
		defer f.Close()
		return cli.RunScript(ctx, in, logger, f, std)
	}
}
