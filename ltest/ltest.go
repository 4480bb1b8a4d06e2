// Package ltest runs formulaic tests ("ltests") defined in YAML files.
//
// An ltest compiles a Logica program for a predicate and checks the
// generated SQL, the executed result, or both:
//
//	program: |
//	  @Engine("sqlite");
//	  Greeting("Hello world!");
//	predicate: Greeting
//	output: |
//	  col0
//	  Hello world!
//
// Fields:
//
//	program    Logica source text (required)
//	predicate  predicate to compile (required)
//	engine     engine override; defaults to the program's @Engine
//	sql        expected SQL text (optional)
//	output     expected result table as header plus rows, one line
//	           each, columns joined by ",".  Execution uses in-memory
//	           SQLite and is only supported for the sqlite engine.
//	error      substring expected in the compilation error
package ltest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/logica-lang/logica/compiler"
	"github.com/logica-lang/logica/engine"
)

// Ltest is one scenario.
type Ltest struct {
	Name      string `yaml:"name"`
	Program   string `yaml:"program"`
	Predicate string `yaml:"predicate"`
	Engine    string `yaml:"engine"`
	SQL       string `yaml:"sql"`
	Output    string `yaml:"output"`
	Error     string `yaml:"error"`
}

// FromYAMLFile loads the scenarios of one YAML file (a multi-document
// stream of Ltest objects).
func FromYAMLFile(path string) ([]*Ltest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(content)))
	var tests []*Ltest
	for {
		var t Ltest
		if err := decoder.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		tests = append(tests, &t)
	}
	return tests, nil
}

// Run executes the scenario against the compiler and, when output is
// expected, against in-memory SQLite.
func (lt *Ltest) Run(t *testing.T) {
	t.Helper()
	sql, err := compiler.CompilePredicate(lt.Program, lt.Predicate,
		compiler.Options{Engine: lt.Engine})
	if lt.Error != "" {
		if err == nil {
			t.Fatalf("expected error containing %q, got SQL:\n%s", lt.Error, sql)
		}
		if !strings.Contains(err.Error(), lt.Error) {
			t.Fatalf("expected error containing %q, got: %v", lt.Error, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("compiling %s: %v", lt.Predicate, err)
	}
	if lt.SQL != "" && strings.TrimSpace(lt.SQL) != strings.TrimSpace(sql) {
		t.Fatalf("SQL mismatch:\n%s", diff(lt.SQL, sql))
	}
	if lt.Output == "" {
		return
	}
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	defer db.Close()
	result, err := engine.Run(context.Background(), db, sql)
	if err != nil {
		t.Fatalf("running %s: %v\nSQL:\n%s", lt.Predicate, err, sql)
	}
	got := renderResult(result)
	if strings.TrimSpace(got) != strings.TrimSpace(lt.Output) {
		t.Fatalf("output mismatch:\n%s\nSQL:\n%s", diff(lt.Output, got), sql)
	}
}

// RunFile runs every scenario of the YAML file as a subtest.
func RunFile(t *testing.T, path string) {
	t.Helper()
	tests, err := FromYAMLFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i, lt := range tests {
		name := lt.Name
		if name == "" {
			name = fmt.Sprintf("case%d", i)
		}
		t.Run(name, func(t *testing.T) { lt.Run(t) })
	}
}

func renderResult(result *engine.Result) string {
	var lines []string
	lines = append(lines, strings.Join(result.Columns, ","))
	for _, row := range result.Rows {
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n")
}

func diff(expected, actual string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.TrimSpace(expected) + "\n"),
		B:        difflib.SplitLines(strings.TrimSpace(actual) + "\n"),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("expected:\n%s\nactual:\n%s", expected, actual)
	}
	return text
}
