package srcfiles

// Span is an immutable view into a Source's text.  Parsing never copies
// program text; it slices Spans, so the heritage of every fragment is the
// pair of offsets into the original buffer.
type Span struct {
	Source *Source
	Pos    int // Offset of the first byte.
	End    int // Offset one past the last byte.
}

func (s Span) Str() string {
	if s.Source == nil {
		return ""
	}
	return s.Source.Text[s.Pos:s.End]
}

func (s Span) Len() int { return s.End - s.Pos }

func (s Span) IsEmpty() bool { return s.End <= s.Pos }

// At returns the byte at relative offset i.
func (s Span) At(i int) byte { return s.Source.Text[s.Pos+i] }

// Sub returns the subspan [start:stop] in span-relative offsets, clamped
// to the span's bounds.
func (s Span) Sub(start, stop int) Span {
	if start < 0 {
		start = 0
	}
	if stop > s.Len() {
		stop = s.Len()
	}
	if stop < start {
		stop = start
	}
	return Span{Source: s.Source, Pos: s.Pos + start, End: s.Pos + stop}
}

// SubFrom returns the suffix subspan starting at relative offset start.
func (s Span) SubFrom(start int) Span { return s.Sub(start, s.Len()) }

// Pieces splits the backing buffer into the text before, inside, and
// after the span.  Used by diagnostics.
func (s Span) Pieces() (before, mid, after string) {
	if s.Source == nil {
		return "", "", ""
	}
	t := s.Source.Text
	return t[:s.Pos], t[s.Pos:s.End], t[s.End:]
}

// HasPrefix reports whether the span's text starts with prefix.
func (s Span) HasPrefix(prefix string) bool {
	if s.Len() < len(prefix) {
		return false
	}
	return s.Source.Text[s.Pos:s.Pos+len(prefix)] == prefix
}
