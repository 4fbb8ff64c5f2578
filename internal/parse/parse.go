// Package parse turns a command line into a command tree. Argument quoting
// is resolved here (posix tokenization); operators and redirect markers must
// be blank-delimited tokens. Precedence, loosest first: ';' then '&' then
// '&&'/'||' then '|'. Operators at the same level associate left.
package parse

import (
	"errors"
	"fmt"

	"github.com/anmitsu/go-shlex"

	"github.com/marcelocantos/treesh/internal/ast"
)

// ErrEmpty is returned for a line with no tokens (blank or comment-free
// whitespace). Callers typically treat it as "nothing to do".
var ErrEmpty = errors.New("empty command line")

// Line tokenizes and parses one command line into a tree.
func Line(line string) (*ast.Node, error) {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return Tokens(tokens)
}

// Tokens parses a pre-tokenized command line into a tree.
func Tokens(tokens []string) (*ast.Node, error) {
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}
	p := &parser{tokens: tokens}
	node, err := p.sequence()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, fmt.Errorf("unexpected token %q", tok)
	}
	return node, nil
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (string, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

// sequence: background (';' background)*
func (p *parser) sequence() (*ast.Node, error) {
	return p.binary(";", ast.OpSequential, p.background)
}

// background: andOr ('&' andOr)*
func (p *parser) background() (*ast.Node, error) {
	return p.binary("&", ast.OpParallel, p.andOr)
}

// andOr: pipeline (('&&' | '||') pipeline)*
func (p *parser) andOr() (*ast.Node, error) {
	left, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || (tok != "&&" && tok != "||") {
			return left, nil
		}
		p.pos++
		right, err := p.pipeline()
		if err != nil {
			return nil, fmt.Errorf("after %q: %w", tok, err)
		}
		op := ast.OpAndThen
		if tok == "||" {
			op = ast.OpOrElse
		}
		left = ast.Combine(op, left, right)
	}
}

// pipeline: simple ('|' simple)*
func (p *parser) pipeline() (*ast.Node, error) {
	return p.binary("|", ast.OpPipe, p.simple)
}

// binary parses sub (tok sub)* left-associatively.
func (p *parser) binary(tok string, op ast.Operator, sub func() (*ast.Node, error)) (*ast.Node, error) {
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		if t, ok := p.peek(); !ok || t != tok {
			return left, nil
		}
		p.pos++
		right, err := sub()
		if err != nil {
			return nil, fmt.Errorf("after %q: %w", tok, err)
		}
		left = ast.Combine(op, left, right)
	}
}

// simple collects words and redirect specs up to the next operator token.
func (p *parser) simple() (*ast.Node, error) {
	cmd := &ast.SimpleCommand{}
	for {
		tok, ok := p.peek()
		if !ok || isOperator(tok) {
			break
		}
		p.pos++

		switch tok {
		case "<":
			target, err := p.redirectTarget(tok)
			if err != nil {
				return nil, err
			}
			cmd.In = target
		case ">", ">>":
			target, err := p.redirectTarget(tok)
			if err != nil {
				return nil, err
			}
			cmd.Out = target
			cmd.AppendOut = tok == ">>"
		case "2>", "2>>":
			target, err := p.redirectTarget(tok)
			if err != nil {
				return nil, err
			}
			cmd.Err = target
			cmd.AppendErr = tok == "2>>"
		case "&>":
			target, err := p.redirectTarget(tok)
			if err != nil {
				return nil, err
			}
			cmd.Out = target
			cmd.Err = target
			cmd.AppendOut = false
			cmd.AppendErr = false
		default:
			if cmd.Verb == "" {
				cmd.Verb = tok
			} else {
				cmd.Args = append(cmd.Args, tok)
			}
		}
	}

	if cmd.Verb == "" {
		if tok, ok := p.peek(); ok {
			return nil, fmt.Errorf("missing command before %q", tok)
		}
		return nil, errors.New("missing command")
	}
	return ast.Simple(cmd), nil
}

func (p *parser) redirectTarget(op string) (string, error) {
	tok, ok := p.next()
	if !ok || isOperator(tok) || isRedirect(tok) {
		return "", fmt.Errorf("%s requires a file path", op)
	}
	return tok, nil
}

func isOperator(tok string) bool {
	switch tok {
	case ";", "&", "&&", "||", "|":
		return true
	}
	return false
}

func isRedirect(tok string) bool {
	switch tok {
	case "<", ">", ">>", "2>", "2>>", "&>":
		return true
	}
	return false
}
