// Package env holds the interpreter's environment table as an explicit
// snapshot. Branches that model a fork get a copy, so mutations never leak
// between siblings; external commands receive the snapshot via exec.Cmd.Env.
package env

import (
	"sort"
	"strings"
)

// Snapshot is a mutable set of environment variables owned by one
// interpreter. It is not safe for concurrent use; concurrent branches each
// get their own Clone.
type Snapshot struct {
	vars map[string]string
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{vars: make(map[string]string)}
}

// Capture builds a snapshot from a process-style "NAME=VALUE" list, such as
// os.Environ(). Malformed entries without '=' are skipped.
func Capture(environ []string) *Snapshot {
	s := New()
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			s.vars[name] = value
		}
	}
	return s
}

// Get returns the value of name, or "" if unset.
func (s *Snapshot) Get(name string) string {
	return s.vars[name]
}

// Lookup returns the value of name and whether it is set.
func (s *Snapshot) Lookup(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set assigns value to name.
func (s *Snapshot) Set(name, value string) {
	s.vars[name] = value
}

// Clone returns an independent copy of the snapshot. This is the
// copy-on-fork step: the clone and the original diverge freely afterwards.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{vars: make(map[string]string, len(s.vars))}
	for k, v := range s.vars {
		c.vars[k] = v
	}
	return c
}

// Environ renders the snapshot as a sorted "NAME=VALUE" list suitable for
// exec.Cmd.Env.
func (s *Snapshot) Environ() []string {
	out := make([]string, 0, len(s.vars))
	for k, v := range s.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of variables set.
func (s *Snapshot) Len() int {
	return len(s.vars)
}

// Expand substitutes every $NAME in in with the snapshot's value for NAME,
// where NAME is the maximal run of letters, digits and underscores after
// the '$'. Unset names substitute the empty string, and so does a '$' with
// no name after it (the '$' itself is always consumed). The output grows as
// needed.
func (s *Snapshot) Expand(in string) string {
	if !strings.ContainsRune(in, '$') {
		return in
	}

	var b strings.Builder
	b.Grow(len(in))
	for i := 0; i < len(in); {
		if in[i] != '$' {
			b.WriteByte(in[i])
			i++
			continue
		}

		j := i + 1
		for j < len(in) && isNameByte(in[j]) {
			j++
		}
		// An empty name (trailing '$', or '$' before a non-name byte)
		// substitutes the empty string like any other unset name.
		b.WriteString(s.vars[in[i+1:j]])
		i = j
	}
	return b.String()
}

func isNameByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}

// StripQuotes removes every single- and double-quote character from s,
// regardless of nesting or pairing. It is a literal character filter, not a
// tokenizer; it is applied only to redirect targets and directory arguments.
func StripQuotes(s string) string {
	if !strings.ContainsAny(s, `'"`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != '\'' && c != '"' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
