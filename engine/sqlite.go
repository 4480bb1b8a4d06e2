// Package engine runs compiled SQL on a local SQLite database with the
// Logica runtime functions registered.  It is a collaborator of the
// compiler core: SQL goes in, rows come out, errors are surfaced
// verbatim.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const driverName = "logica-sqlite"

var registerOnce sync.Once

// argExtreme implements the ArgMin/ArgMax aggregates: it returns the
// JSON array of arguments attached to the smallest (or largest) values
// seen, up to a limit; a null limit keeps every argument.
type argExtreme struct {
	max   bool
	pairs []argPair
	limit int64
}

type argPair struct {
	arg   any
	value any
}

func newArgMin() *argExtreme { return &argExtreme{} }
func newArgMax() *argExtreme { return &argExtreme{max: true} }

func (a *argExtreme) Step(arg, value any, limit any) {
	switch l := limit.(type) {
	case int64:
		a.limit = l
	case nil:
		a.limit = math.MaxInt64
	}
	a.pairs = append(a.pairs, argPair{arg: arg, value: value})
}

func (a *argExtreme) Done() (string, error) {
	sort.SliceStable(a.pairs, func(i, j int) bool {
		c := compareValues(a.pairs[i].value, a.pairs[j].value)
		if a.max {
			return c > 0
		}
		return c < 0
	})
	limit := a.limit
	if limit <= 0 {
		limit = math.MaxInt64
	}
	var args []any
	for i, p := range a.pairs {
		if int64(i) >= limit {
			break
		}
		args = append(args, p.arg)
	}
	encoded, err := json.Marshal(args)
	return string(encoded), err
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// distinctListAgg aggregates distinct values into a JSON array,
// preserving first-seen order.
type distinctListAgg struct {
	seen  map[string]bool
	items []any
}

func newDistinctListAgg() *distinctListAgg {
	return &distinctListAgg{seen: map[string]bool{}}
}

func (d *distinctListAgg) Step(v any) {
	key := fmt.Sprintf("%T:%v", v, v)
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.items = append(d.items, v)
}

func (d *distinctListAgg) Done() (string, error) {
	encoded, err := json.Marshal(d.items)
	return string(encoded), err
}

func registerDriver() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			pure := true
			if err := conn.RegisterFunc("MagicalEntangle",
				func(x, y any) any { return x }, pure); err != nil {
				return err
			}
			if err := conn.RegisterFunc("JOIN_STRINGS",
				func(list string, separator string) (string, error) {
					var items []any
					if err := json.Unmarshal([]byte(list), &items); err != nil {
						return "", err
					}
					parts := make([]string, len(items))
					for i, item := range items {
						parts[i] = fmt.Sprintf("%v", item)
					}
					return strings.Join(parts, separator), nil
				}, pure); err != nil {
				return err
			}
			if err := conn.RegisterFunc("ARRAY_CONCAT",
				func(a, b string) (string, error) {
					var left, right []any
					if err := json.Unmarshal([]byte(a), &left); err != nil {
						return "", err
					}
					if err := json.Unmarshal([]byte(b), &right); err != nil {
						return "", err
					}
					encoded, err := json.Marshal(append(left, right...))
					return string(encoded), err
				}, pure); err != nil {
				return err
			}
			if err := conn.RegisterFunc("IN_LIST",
				func(item any, list string) (bool, error) {
					var items []any
					if err := json.Unmarshal([]byte(list), &items); err != nil {
						return false, err
					}
					for _, candidate := range items {
						if fmt.Sprintf("%v", candidate) == fmt.Sprintf("%v", item) {
							return true, nil
						}
					}
					return false, nil
				}, pure); err != nil {
				return err
			}
			if err := conn.RegisterFunc("SortList",
				func(list string) (string, error) {
					var items []any
					if err := json.Unmarshal([]byte(list), &items); err != nil {
						return "", err
					}
					sort.SliceStable(items, func(i, j int) bool {
						return compareValues(items[i], items[j]) < 0
					})
					encoded, err := json.Marshal(items)
					return string(encoded), err
				}, pure); err != nil {
				return err
			}
			if err := conn.RegisterFunc("PrintToConsole",
				func(message any) int64 {
					fmt.Fprintln(os.Stderr, message)
					return 1
				}, false); err != nil {
				return err
			}
			if err := conn.RegisterFunc("POW",
				func(x, p float64) float64 { return math.Pow(x, p) }, pure); err != nil {
				return err
			}
			if err := conn.RegisterFunc("SQRT", math.Sqrt, pure); err != nil {
				return err
			}
			for name, f := range map[string]func(float64) float64{
				"Exp": math.Exp, "Log": math.Log, "Sin": math.Sin, "Cos": math.Cos,
			} {
				if err := conn.RegisterFunc(name, f, pure); err != nil {
					return err
				}
			}
			if err := conn.RegisterFunc("Fingerprint",
				func(s string) int64 {
					var h int64 = 1125899906842597
					for i := 0; i < len(s); i++ {
						h = 31*h + int64(s[i])
					}
					return h
				}, pure); err != nil {
				return err
			}
			if err := conn.RegisterAggregator(
				"ArgMin", newArgMin, pure); err != nil {
				return err
			}
			if err := conn.RegisterAggregator(
				"ArgMax", newArgMax, pure); err != nil {
				return err
			}
			return conn.RegisterAggregator(
				"DistinctListAgg", newDistinctListAgg, pure)
		},
	})
}

// Open opens a SQLite database with the Logica functions registered.
// Use ":memory:" for a transient database.
func Open(path string) (*sql.DB, error) {
	registerOnce.Do(registerDriver)
	return sql.Open(driverName, path)
}

// Result is the outcome of running a query.
type Result struct {
	Columns []string
	Rows    [][]string
}

// Run executes a compiled SQL script: every statement but the last is
// executed for effect, the last one is queried for rows.
func Run(ctx context.Context, db *sql.DB, script string) (*Result, error) {
	statements := SplitStatements(script)
	if len(statements) == 0 {
		return &Result{}, nil
	}
	for _, statement := range statements[:len(statements)-1] {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return nil, fmt.Errorf("%s: %w", firstLine(statement), err)
		}
	}
	last := statements[len(statements)-1]
	rows, err := db.QueryContext(ctx, last)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", firstLine(last), err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// SplitStatements splits a SQL script on top-level semicolons,
// respecting single-quoted strings, double-quoted identifiers and
// parentheses.
func SplitStatements(script string) []string {
	var statements []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(script); i++ {
		c := script[i]
		if quote != 0 {
			if c == quote {
				// Doubled quotes stay inside the literal.
				if i+1 < len(script) && script[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case ';':
			if depth == 0 {
				statement := strings.TrimSpace(script[start:i])
				if statement != "" && !isCommentOnly(statement) {
					statements = append(statements, statement)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(script[start:]); tail != "" && !isCommentOnly(tail) {
		statements = append(statements, tail)
	}
	return statements
}

func isCommentOnly(statement string) bool {
	for _, line := range strings.Split(statement, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
