// Package ast defines the command tree produced by the parser and consumed
// by the interpreter. A tree is built once per command line, is immutable
// during evaluation, and is discarded afterwards.
package ast

import "strings"

// Operator joins two command subtrees.
type Operator int

const (
	OpSequential Operator = iota // left ; right: run both, status of right
	OpParallel                   // left & right: run both concurrently
	OpAndThen                    // left && right: right only if left succeeded
	OpOrElse                     // left || right: right only if left failed
	OpPipe                       // left | right: left's stdout feeds right's stdin
)

func (op Operator) String() string {
	switch op {
	case OpSequential:
		return ";"
	case OpParallel:
		return "&"
	case OpAndThen:
		return "&&"
	case OpOrElse:
		return "||"
	case OpPipe:
		return "|"
	default:
		return "op(?)"
	}
}

// SimpleCommand is a single program invocation: a verb, its argument words,
// and optional redirect specs. Empty redirect specs mean "not present".
// The parser resolves argument quoting; redirect targets and directory
// arguments may still carry literal quote characters.
type SimpleCommand struct {
	Verb string
	Args []string

	In  string // stdin redirect target (< file)
	Out string // stdout redirect target (> / >> file)
	Err string // stderr redirect target (2> / 2>> file)

	AppendOut bool // >> rather than >
	AppendErr bool // 2>> rather than 2>
}

func (c *SimpleCommand) String() string {
	var b strings.Builder
	b.WriteString(c.Verb)
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	if c.In != "" {
		b.WriteString(" < " + c.In)
	}
	if c.Out != "" && c.Out == c.Err {
		b.WriteString(" &> " + c.Out)
	} else {
		if c.Out != "" {
			if c.AppendOut {
				b.WriteString(" >> " + c.Out)
			} else {
				b.WriteString(" > " + c.Out)
			}
		}
		if c.Err != "" {
			if c.AppendErr {
				b.WriteString(" 2>> " + c.Err)
			} else {
				b.WriteString(" 2> " + c.Err)
			}
		}
	}
	return b.String()
}

// Node is one command-tree node: either a simple leaf (Cmd non-nil) or an
// operator node owning exactly two children. A well-formed tree never mixes
// the two shapes.
type Node struct {
	Cmd *SimpleCommand // non-nil for a simple leaf

	Op    Operator
	Left  *Node
	Right *Node
}

// Simple returns a leaf node for cmd.
func Simple(cmd *SimpleCommand) *Node {
	return &Node{Cmd: cmd}
}

// Combine returns an operator node joining left and right.
func Combine(op Operator, left, right *Node) *Node {
	return &Node{Op: op, Left: left, Right: right}
}

// IsLeaf reports whether n is a simple leaf.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Cmd != nil
}

func (n *Node) String() string {
	if n == nil {
		return ""
	}
	if n.Cmd != nil {
		return n.Cmd.String()
	}
	return n.Left.String() + " " + n.Op.String() + " " + n.Right.String()
}

// Leaves returns the simple commands of the tree in left-to-right order.
func (n *Node) Leaves() []*SimpleCommand {
	if n == nil {
		return nil
	}
	if n.Cmd != nil {
		return []*SimpleCommand{n.Cmd}
	}
	return append(n.Left.Leaves(), n.Right.Leaves()...)
}

// Verbs returns the leaf verbs of the tree in left-to-right order.
func (n *Node) Verbs() []string {
	leaves := n.Leaves()
	verbs := make([]string, 0, len(leaves))
	for _, c := range leaves {
		verbs = append(verbs, c.Verb)
	}
	return verbs
}
