package parser

import (
	"github.com/logica-lang/logica/compiler/srcfiles"
)

func isAlnumByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_'
}

func isWordSeparator(sep string) bool {
	for i := 0; i < len(sep); i++ {
		if !(sep[i] >= 'a' && sep[i] <= 'z' || sep[i] == ' ') {
			return false
		}
	}
	return len(sep) > 0
}

// SplitRaw splits the span on the separator, respecting parentheses,
// strings and comments.  This is the cornerstone of parsing.
//
// Two disambiguation rules apply:
//   - "|" does not split when adjacent to another "|" (so "||" stays an
//     operator);
//   - word separators like "in", "as" or "distinct" only split when both
//     neighbors are non-alphanumeric.
func SplitRaw(s srcfiles.Span, sep string) ([]srcfiles.Span, error) {
	var parts []srcfiles.Span
	l := len(sep)
	word := isWordSeparator(sep)
	t := NewTraverser(s)
	partStart := 0
	for {
		idx, ok := t.Next()
		if !ok {
			break
		}
		if !t.TopLevel() {
			continue
		}
		if s.Sub(idx, idx+l).Str() != sep {
			continue
		}
		if idx+l < s.Len() && s.At(idx+l) == '|' || idx > 0 && s.At(idx-1) == '|' {
			continue
		}
		if word {
			if idx > 0 && isAlnumByte(s.At(idx-1)) {
				continue
			}
			if idx+l < s.Len() && isAlnumByte(s.At(idx+l)) {
				continue
			}
		}
		parts = append(parts, s.Sub(partStart, idx))
		last := idx
		for range l - 1 {
			next, ok := t.Next()
			if !ok {
				break
			}
			last = next
		}
		partStart = last + 1
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	parts = append(parts, s.SubFrom(partStart))
	return parts, nil
}

// Split splits on the separator and strips each part of outer whitespace
// and redundant parentheses.
func Split(s srcfiles.Span, sep string) ([]srcfiles.Span, error) {
	parts, err := SplitRaw(s, sep)
	if err != nil {
		return nil, err
	}
	for i, p := range parts {
		parts[i] = Strip(p)
	}
	return parts, nil
}

// SplitInTwo splits the span by the separator into exactly two parts.
func SplitInTwo(s srcfiles.Span, sep string) (srcfiles.Span, srcfiles.Span, error) {
	parts, err := Split(s, sep)
	if err != nil {
		return srcfiles.Span{}, srcfiles.Span{}, err
	}
	if len(parts) != 2 {
		return srcfiles.Span{}, srcfiles.Span{},
			srcfiles.ErrorAt(stage, s, "expected string to be split by %q in two", sep)
	}
	return parts[0], parts[1], nil
}

// SplitInOneOrTwo splits into one or two parts; two reports whether the
// separator was present.
func SplitInOneOrTwo(s srcfiles.Span, sep string) (first, second srcfiles.Span, two bool, err error) {
	parts, err := Split(s, sep)
	if err != nil {
		return srcfiles.Span{}, srcfiles.Span{}, false, err
	}
	switch len(parts) {
	case 1:
		return parts[0], srcfiles.Span{}, false, nil
	case 2:
		return parts[0], parts[1], true, nil
	}
	return srcfiles.Span{}, srcfiles.Span{}, false,
		srcfiles.ErrorAt(stage, s, "string should have been split by %q in 1 or 2 pieces", sep)
}

// SplitMany splits each span in the list by the separator, flattening
// the result.
func SplitMany(ss []srcfiles.Span, sep string) ([]srcfiles.Span, error) {
	var result []srcfiles.Span
	for _, s := range ss {
		parts, err := Split(s, sep)
		if err != nil {
			return nil, err
		}
		result = append(result, parts...)
	}
	return result, nil
}

// SplitOnWhitespace splits the span by whitespace, respecting strings
// and parentheses, returning only non-empty parts.
func SplitOnWhitespace(s srcfiles.Span) ([]srcfiles.Span, error) {
	ss := []srcfiles.Span{s}
	for _, sep := range []string{" ", "\n", "\t"} {
		var err error
		ss, err = SplitMany(ss, sep)
		if err != nil {
			return nil, err
		}
	}
	var chunks []srcfiles.Span
	for _, chunk := range ss {
		if !chunk.IsEmpty() {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// StripSpaces trims outer whitespace from the span.
func StripSpaces(s srcfiles.Span) srcfiles.Span {
	left, right := 0, s.Len()
	for left < right && isSpaceByte(s.At(left)) {
		left++
	}
	for right > left && isSpaceByte(s.At(right-1)) {
		right--
	}
	return s.Sub(left, right)
}

// Strip removes outer whitespace and redundant matched parentheses.
func Strip(s srcfiles.Span) srcfiles.Span {
	for {
		s = StripSpaces(s)
		if s.Len() >= 2 && s.At(0) == '(' && s.At(s.Len()-1) == ')' &&
			IsWhole(s.Sub(1, s.Len()-1)) {
			s = s.Sub(1, s.Len()-1)
			continue
		}
		return s
	}
}
