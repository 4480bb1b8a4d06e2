package srcfiles

import (
	"fmt"
	"strings"
)

// contextLimit bounds how much surrounding program text a diagnostic
// shows on either side of the offending span.
const contextLimit = 300

// Error is a diagnostic anchored to a Span.  Stage names the phase that
// produced it ("Parsing", "Compiling", "Making").
type Error struct {
	Stage string
	Msg   string
	Span  Span
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		fmt.Fprintf(&b, "%s: ", e.Stage)
	}
	b.WriteString(e.Msg)
	if e.Span.Source == nil {
		return b.String()
	}
	if e.Span.Source.Name != "" {
		fmt.Fprintf(&b, " in %s", e.Span.Source.Name)
	}
	start := e.Span.Source.Position(e.Span.Pos)
	fmt.Fprintf(&b, " at line %d, column %d:\n", start.Line, start.Column)
	b.WriteString(e.Context())
	return b.String()
}

// Context renders up to contextLimit characters before and after the
// offending substring, with the substring bracketed.
func (e *Error) Context() string {
	before, mid, after := e.Span.Pieces()
	if len(before) > contextLimit {
		before = before[len(before)-contextLimit:]
	}
	if len(after) > contextLimit {
		after = after[:contextLimit]
	}
	if mid == "" {
		mid = "<EMPTY>"
	}
	return before + ">>" + mid + "<<" + after
}

// ErrorAt builds an Error for a stage, span and formatted message.
func ErrorAt(stage string, span Span, format string, args ...any) *Error {
	return &Error{Stage: stage, Msg: fmt.Sprintf(format, args...), Span: span}
}
