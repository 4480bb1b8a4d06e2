// Package parser turns Logica source text into the ast package's syntax
// trees.  Parsing never tokenizes: it splits spans on separators at the
// top bracket/string/comment nesting level and recurses, so every node
// keeps an exact heritage span into the source buffer.
package parser

import (
	"strings"

	"github.com/logica-lang/logica/compiler/srcfiles"
)

const stage = "Parsing"

var closeToOpen = map[byte]byte{
	')': '(',
	'}': '{',
	']': '[',
}

func isOpening(c byte) bool { return c == '(' || c == '{' || c == '[' }
func isClosing(c byte) bool { return c == ')' || c == '}' || c == ']' }

// Traverser walks a span yielding successive content indices together
// with the open-brackets/string/comment state.  Comment bytes are not
// content and are skipped entirely.
//
// The state is a stack of context bytes: brackets '(', '{', '[' plus
// '#' (line comment), '"' (string), '`' (backtick), '3' (triple-quoted
// string) and '/' (block comment).
type Traverser struct {
	span    srcfiles.Span
	idx     int
	pending int // Remaining bytes of a multi-byte token to yield raw.
	state   []byte
	err     *srcfiles.Error
}

func NewTraverser(span srcfiles.Span) *Traverser {
	return &Traverser{span: span, idx: -1}
}

func (t *Traverser) top() byte {
	if len(t.state) == 0 {
		return 0
	}
	return t.state[len(t.state)-1]
}

func (t *Traverser) pop()        { t.state = t.state[:len(t.state)-1] }
func (t *Traverser) push(c byte) { t.state = append(t.state, c) }

// TopLevel reports whether the state stack is empty at the current
// content index.
func (t *Traverser) TopLevel() bool { return len(t.state) == 0 }

// InSingleParen reports whether the state is exactly one open paren.
func (t *Traverser) InSingleParen() bool {
	return len(t.state) == 1 && t.state[0] == '('
}

// State returns the raw state stack.  Callers must not retain it.
func (t *Traverser) State() []byte { return t.state }

func (t *Traverser) Err() error {
	if t.err == nil {
		return nil
	}
	return t.err
}

func (t *Traverser) fail(kind string, span srcfiles.Span) {
	t.err = srcfiles.ErrorAt(stage, span, "%s", kind)
}

// Next advances to the next content index.  It returns false at the end
// of the span or on error; check Err after the loop.
func (t *Traverser) Next() (int, bool) {
	s := t.span
	if t.pending > 0 && t.idx+1 < s.Len() {
		t.pending--
		t.idx++
		return t.idx, true
	}
	for t.idx+1 < s.Len() {
		t.idx++
		idx := t.idx
		c := s.At(idx)
		two := peek(s, idx, 2)
		three := peek(s, idx, 3)

		trackBrackets := true
		switch t.top() {
		case '#':
			trackBrackets = false
			if c == '\n' {
				t.pop()
			} else {
				continue // Comments are invisible to the compiler.
			}
		case '"':
			trackBrackets = false
			if c == '\n' {
				t.fail("end of line in string", s.Sub(idx, idx))
				return 0, false
			}
			if c == '"' {
				t.pop()
			}
		case '`':
			trackBrackets = false
			if c == '`' {
				t.pop()
			}
		case '3':
			trackBrackets = false
			if three == `"""` {
				t.pop()
				t.pending = 2
				return idx, true
			}
		case '/':
			trackBrackets = false
			if two == "*/" {
				t.pop()
				t.idx++
			}
			continue // Comments are invisible to the compiler.
		default:
			switch {
			case c == '#':
				t.push('#')
				continue
			case three == `"""`:
				t.push('3')
				t.pending = 2
				return idx, true
			case c == '"':
				t.push('"')
			case c == '`':
				t.push('`')
			case two == "/*":
				t.push('/')
				t.idx++
				continue
			}
		}

		if trackBrackets {
			if isOpening(c) {
				t.push(c)
			} else if isClosing(c) {
				if len(t.state) > 0 && t.top() == closeToOpen[c] {
					t.pop()
				} else {
					t.fail("parenthesis matches nothing", s.Sub(idx, idx+1))
					return 0, false
				}
			}
		}
		return idx, true
	}
	return 0, false
}

func peek(s srcfiles.Span, idx, n int) string {
	end := idx + n
	if end > s.Len() {
		end = s.Len()
	}
	return s.Sub(idx, end).Str()
}

// IsWhole reports whether the span traverses to the end with an empty
// bracket/string/comment state.  This is the fundamental predicate used
// throughout parsing.
func IsWhole(span srcfiles.Span) bool {
	t := NewTraverser(span)
	for {
		if _, ok := t.Next(); !ok {
			break
		}
	}
	return t.err == nil && t.TopLevel()
}

// RemoveComments builds a new Source whose text is the program with all
// comments elided.  All downstream spans reference the comment-free
// buffer, which keeps heritage substrings exact.
func RemoveComments(name, text string) (*srcfiles.Source, error) {
	src := srcfiles.NewSource(name, text)
	span := src.Whole()
	t := NewTraverser(span)
	var b strings.Builder
	for {
		idx, ok := t.Next()
		if !ok {
			break
		}
		b.WriteByte(span.At(idx))
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return srcfiles.NewSource(name, b.String()), nil
}
