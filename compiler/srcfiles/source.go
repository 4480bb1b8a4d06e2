// Package srcfiles tracks source text and byte spans so that every AST
// node and diagnostic can be traced back to a substring of the original
// program.
package srcfiles

import (
	"sort"
)

// Source holds the text of one Logica file.
type Source struct {
	Name  string
	Text  string
	lines []int
}

func NewSource(name, text string) *Source {
	var lines []int
	line := 0
	for offset, b := range []byte(text) {
		if line >= 0 {
			lines = append(lines, line)
		}
		line = -1
		if b == '\n' {
			line = offset + 1
		}
	}
	if line >= 0 {
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = []int{0}
	}
	return &Source{Name: name, Text: text, lines: lines}
}

// Whole returns a Span covering the entire source.
func (s *Source) Whole() Span {
	return Span{Source: s, Pos: 0, End: len(s.Text)}
}

func (s *Source) Position(pos int) Position {
	if pos < 0 || pos > len(s.Text) {
		return Position{-1, -1, -1}
	}
	i := searchLine(s.lines, pos)
	return Position{
		Pos:    pos,
		Line:   i + 1,
		Column: pos - s.lines[i] + 1,
	}
}

// LineOf returns the full text of the line containing pos, without the
// trailing newline.
func (s *Source) LineOf(pos int) string {
	i := searchLine(s.lines, pos)
	start := s.lines[i]
	end := len(s.Text)
	if i+1 < len(s.lines) {
		end = s.lines[i+1]
	}
	b := s.Text[start:end]
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b
}

func searchLine(lines []int, offset int) int {
	i := sort.Search(len(lines), func(i int) bool { return lines[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i
}

type Position struct {
	Pos    int `json:"pos"`    // Byte offset in Source.Text.
	Line   int `json:"line"`   // 1-based line number.
	Column int `json:"column"` // 1-based column number.
}

func (p Position) IsValid() bool { return p.Pos >= 0 }
