// Package universe assembles a parsed Logica program into a compilable
// form: it indexes rules by predicate, interprets annotations, runs
// functor instantiation and recursion unfolding, performs injection of
// inlinable predicates and emits the final SQL for a requested
// predicate.
package universe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/functors"
	"github.com/logica-lang/logica/compiler/sqlgen"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// annotatingPredicates enumerates the recognized annotations.
var annotatingPredicates = []string{
	"@Limit", "@OrderBy", "@Ground", "@DefineFlag", "@ResetFlagValue",
	"@NoInject", "@Make", "@With", "@NoWith", "@CompileAsUdf",
	"@Dataset", "@AttachDatabase", "@Engine", "@Recursive",
}

// annotation is the parsed argument record of one annotation rule:
// positional arguments under keys "1", "2", ... plus named arguments.
type annotation struct {
	fields   map[string]any
	ruleText srcfiles.Span
}

func (a *annotation) get(key string) (any, bool) {
	v, ok := a.fields[key]
	return v, ok
}

// Ground describes the physical table bound to a predicate.
type Ground struct {
	TableName string
	Overwrite bool
}

// Annotations parses and retrieves predicate annotations.
//
// The per-annotation subject maps preserve insertion order: flag
// defaults and WITH emission depend on first-seen order.
type Annotations struct {
	// byName maps annotation name to a subject -> *annotation map.
	byName     map[string]*linkedhashmap.Map
	userFlags  map[string]string
	FlagValues map[string]string
}

func NewAnnotations(rules []*ast.Rule, userFlags map[string]string) (*Annotations, error) {
	a := &Annotations{userFlags: userFlags}
	// DefineFlags are extracted first so flags can be used in @Ground
	// annotations.
	var err error
	a.byName, err = extractAnnotations(rules,
		map[string]bool{"@DefineFlag": true, "@ResetFlagValue": true}, nil)
	if err != nil {
		return nil, err
	}
	if err := a.buildFlagValues(); err != nil {
		return nil, err
	}
	full, err := extractAnnotations(rules, nil, a.FlagValues)
	if err != nil {
		return nil, err
	}
	a.byName = full
	if err := a.checkAnnotatedObjects(rules); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Annotations) of(name string) *linkedhashmap.Map {
	if m, ok := a.byName[name]; ok {
		return m
	}
	return linkedhashmap.New()
}

func (a *Annotations) lookup(name, subject string) (*annotation, bool) {
	v, ok := a.of(name).Get(subject)
	if !ok {
		return nil, false
	}
	return v.(*annotation), true
}

func (a *Annotations) buildFlagValues() error {
	defaults := map[string]string{}
	it := a.of("@DefineFlag").Iterator()
	for it.Next() {
		flag := it.Key().(string)
		defaults[flag] = flagDefault(it.Value().(*annotation), flag)
	}
	var undefined []string
	for flag := range a.userFlags {
		if _, ok := defaults[flag]; !ok {
			undefined = append(undefined, flag)
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return annotationError(srcfiles.Span{},
			"undefined flags used: %s", strings.Join(undefined, ", "))
	}
	it = a.of("@ResetFlagValue").Iterator()
	for it.Next() {
		flag := it.Key().(string)
		defaults[flag] = flagDefault(it.Value().(*annotation), flag)
	}
	for flag, value := range a.userFlags {
		defaults[flag] = value
	}
	a.FlagValues = defaults
	return nil
}

func flagDefault(ann *annotation, flag string) string {
	if v, ok := ann.get("1"); ok {
		return fmt.Sprintf("%v", v)
	}
	return "${" + flag + "}"
}

// NoInject reports whether injection of the predicate is forbidden.
func (a *Annotations) NoInject(predicateName string) bool {
	_, ok := a.lookup("@NoInject", predicateName)
	return ok
}

// OkInjection reports whether current annotations leave the predicate
// injectable.
func (a *Annotations) OkInjection(predicateName string) bool {
	if a.OrderBy(predicateName) != nil ||
		a.LimitOf(predicateName) != nil ||
		a.GroundOf(predicateName) != nil ||
		a.NoInject(predicateName) ||
		a.ForceWith(predicateName) {
		return false
	}
	return true
}

// AttachedDatabases maps database aliases to file names.
func (a *Annotations) AttachedDatabases() (map[string]string, []string, error) {
	result := map[string]string{}
	var order []string
	it := a.of("@AttachDatabase").Iterator()
	for it.Next() {
		alias := it.Key().(string)
		ann := it.Value().(*annotation)
		v, ok := ann.get("1")
		if !ok {
			return nil, nil, annotationError(ann.ruleText,
				"@AttachDatabase must have a single argument")
		}
		result[alias] = fmt.Sprintf("%v", v)
		order = append(order, alias)
	}
	return result, order, nil
}

// CompileAsUdf reports whether the predicate compiles to a SQL function.
func (a *Annotations) CompileAsUdf(predicateName string) bool {
	_, ok := a.lookup("@CompileAsUdf", predicateName)
	return ok
}

// UdfNames lists predicates annotated @CompileAsUdf in order.
func (a *Annotations) UdfNames() []string {
	var names []string
	it := a.of("@CompileAsUdf").Iterator()
	for it.Next() {
		names = append(names, it.Key().(string))
	}
	return names
}

// LimitOf returns the @Limit of the predicate, or nil.
func (a *Annotations) LimitOf(predicateName string) *int {
	ann, ok := a.lookup("@Limit", predicateName)
	if !ok {
		return nil
	}
	values := positionalValues(ann)
	if len(values) != 1 {
		return nil
	}
	f, ok := values[0].(float64)
	if !ok || f != float64(int(f)) {
		return nil
	}
	n := int(f)
	return &n
}

// OrderBy returns the @OrderBy column list of the predicate, or nil.
func (a *Annotations) OrderBy(predicateName string) []string {
	ann, ok := a.lookup("@OrderBy", predicateName)
	if !ok {
		return nil
	}
	var result []string
	for _, v := range positionalValues(ann) {
		result = append(result, fmt.Sprintf("%v", v))
	}
	return result
}

// RecursionDepths maps @Recursive subjects to their unroll depths.
func (a *Annotations) RecursionDepths() map[string]int {
	result := map[string]int{}
	it := a.of("@Recursive").Iterator()
	for it.Next() {
		name := it.Key().(string)
		depth := functors.DefaultRecursionDepth
		if v, ok := it.Value().(*annotation).get("1"); ok {
			if f, isNum := v.(float64); isNum {
				depth = int(f)
			}
		}
		result[name] = depth
	}
	return result
}

// Dataset is the default dataset of grounded tables.
func (a *Annotations) Dataset() (string, error) {
	return a.extractSingleton("@Dataset", "logica_test")
}

// Engine returns the configured engine name.
func (a *Annotations) Engine() (string, error) {
	engine, err := a.extractSingleton("@Engine", "bigquery")
	if err != nil {
		return "", err
	}
	if _, err := sqlgen.Get(engine); err != nil {
		ann, _ := a.lookup("@Engine", engine)
		var span srcfiles.Span
		if ann != nil {
			span = ann.ruleText
		}
		return "", annotationError(span, "unrecognized engine: %s", engine)
	}
	return engine, nil
}

func (a *Annotations) extractSingleton(name, defaultValue string) (string, error) {
	m := a.of(name)
	if m.Size() == 0 {
		return defaultValue, nil
	}
	if m.Size() > 1 {
		keys := make([]string, 0, m.Size())
		it := m.Iterator()
		for it.Next() {
			keys = append(keys, it.Key().(string))
		}
		first, _ := a.lookup(name, keys[0])
		return "", annotationError(first.ruleText,
			"single %s must be provided; provided: %s", name, strings.Join(keys, ", "))
	}
	it := m.Iterator()
	it.Next()
	return it.Key().(string), nil
}

// GroundOf returns the physical table bound to the predicate, or nil.
func (a *Annotations) GroundOf(predicateName string) *Ground {
	ann, ok := a.lookup("@Ground", predicateName)
	if !ok {
		return nil
	}
	dataset, err := a.Dataset()
	if err != nil {
		dataset = "logica_test"
	}
	ground := &Ground{TableName: dataset + "." + predicateName, Overwrite: true}
	if v, ok := ann.get("1"); ok {
		ground.TableName = fmt.Sprintf("%v", v)
	}
	if v, ok := ann.get("overwrite"); ok {
		if b, isBool := v.(bool); isBool {
			ground.Overwrite = b
		}
	}
	return ground
}

// ForceWith reports whether the predicate is explicitly marked @With.
func (a *Annotations) ForceWith(predicateName string) bool {
	_, ok := a.lookup("@With", predicateName)
	return ok
}

// ForceNoWith reports whether the predicate is explicitly marked @NoWith.
func (a *Annotations) ForceNoWith(predicateName string) bool {
	_, ok := a.lookup("@NoWith", predicateName)
	return ok
}

// With reports whether the predicate should be compiled to a WITH table
// if it is not inlined earlier in the flow.
func (a *Annotations) With(predicateName string) (bool, error) {
	isWith := a.ForceWith(predicateName)
	isNoWith := a.ForceNoWith(predicateName)
	if isWith && isNoWith {
		return false, annotationError(srcfiles.Span{},
			"predicate %s is annotated both with @With and @NoWith", predicateName)
	}
	if isWith {
		return true, nil
	}
	if isNoWith || a.GroundOf(predicateName) != nil {
		return false, nil
	}
	return true, nil
}

// LimitClause renders " LIMIT n" for the predicate, or "".
func (a *Annotations) LimitClause(predicateName string) string {
	if limit := a.LimitOf(predicateName); limit != nil {
		return fmt.Sprintf(" LIMIT %d", *limit)
	}
	return ""
}

// OrderByClause renders " ORDER BY ..." for the predicate, or "".
// "DESC" entries attach to the preceding column.
func (a *Annotations) OrderByClause(predicateName string) string {
	orderBy := a.OrderBy(predicateName)
	if len(orderBy) == 0 {
		return ""
	}
	var parts []string
	for i := 0; i < len(orderBy)-1; i++ {
		if orderBy[i+1] != "DESC" {
			parts = append(parts, orderBy[i]+",")
		} else {
			parts = append(parts, orderBy[i])
		}
	}
	parts = append(parts, orderBy[len(orderBy)-1])
	return " ORDER BY " + strings.Join(parts, " ")
}

// Preamble renders the query preamble driven by annotations.
func (a *Annotations) Preamble(engine string) (string, error) {
	preamble := ""
	attached, order, err := a.AttachedDatabases()
	if err != nil {
		return "", err
	}
	if len(order) > 0 {
		var statements []string
		for _, alias := range order {
			statements = append(statements,
				fmt.Sprintf("ATTACH DATABASE '%s' AS %s;", attached[alias], alias))
		}
		preamble += strings.Join(statements, "\n") + "\n\n"
	}
	if engine == "psql" {
		preamble += "-- Initializing PostgreSQL environment.\n" +
			"set client_min_messages to warning;\n" +
			"drop type if exists logica_arrow;\n" +
			"create type logica_arrow as (arg decimal, value decimal);\n" +
			"create schema if not exists logica_test;\n\n"
	}
	return preamble, nil
}

// checkAnnotatedObjects verifies annotations are applied to existing
// predicates.
func (a *Annotations) checkAnnotatedObjects(rules []*ast.Rule) error {
	all := ast.VarSet{}
	for _, rule := range rules {
		all[rule.Head.PredicateName] = true
	}
	it := a.of("@Ground").Iterator()
	for it.Next() {
		all[it.Key().(string)] = true
	}
	it = a.of("@Make").Iterator()
	for it.Next() {
		all[it.Key().(string)] = true
	}
	for _, name := range []string{"@Limit", "@OrderBy", "@NoInject",
		"@With", "@NoWith", "@CompileAsUdf", "@Recursive"} {
		it := a.of(name).Iterator()
		for it.Next() {
			subject := it.Key().(string)
			if !all[subject] {
				return annotationError(it.Value().(*annotation).ruleText,
					"annotation %s must be applied to an existing predicate, "+
						"but it was applied to a non-existing predicate %s",
					name, subject)
			}
		}
	}
	return nil
}

// extractAnnotations reads annotation rules into per-annotation subject
// maps.  Annotation arguments are evaluated to JSON, which keeps them
// plain data.
func extractAnnotations(rules []*ast.Rule, restrictTo map[string]bool,
	flagValues map[string]string) (map[string]*linkedhashmap.Map, error) {
	result := map[string]*linkedhashmap.Map{}
	recognized := map[string]bool{}
	for _, p := range annotatingPredicates {
		result[p] = linkedhashmap.New()
		recognized[p] = true
	}
	for _, rule := range rules {
		name := rule.Head.PredicateName
		if restrictTo != nil && !restrictTo[name] {
			continue
		}
		if !strings.HasPrefix(name, "@") {
			continue
		}
		if !recognized[name] {
			return nil, annotationError(rule.FullText,
				"only %s special predicates are allowed",
				strings.Join(annotatingPredicates, ", "))
		}
		fields, err := annotationFieldValues(rule, flagValues)
		if err != nil {
			return nil, err
		}
		subjectValue, ok := fields["0"]
		if !ok {
			return nil, annotationError(rule.FullText, "can not understand annotation")
		}
		subject := annotationSubject(subjectValue)
		delete(fields, "0")
		if name == "@Limit" && len(positionalFields(fields)) != 1 {
			return nil, annotationError(rule.FullText,
				"annotation @Limit must have exactly two arguments: predicate and limit")
		}
		if existing, ok := result[name].Get(subject); ok {
			return nil, annotationError(rule.FullText,
				"%s annotates %s more than once: %s, %s",
				name, subject, existing.(*annotation).ruleText.Str(), rule.FullText.Str())
		}
		result[name].Put(subject, &annotation{fields: fields, ruleText: rule.FullText})
	}
	return result, nil
}

func annotationSubject(v any) string {
	if m, ok := v.(map[string]any); ok {
		if p, ok := m["predicate_name"]; ok {
			return fmt.Sprintf("%v", p)
		}
	}
	if f, ok := v.(float64); ok && f == float64(int(f)) {
		return fmt.Sprintf("%d", int(f))
	}
	return fmt.Sprintf("%v", v)
}

// annotationFieldValues evaluates the annotation head record to plain
// JSON values keyed by "0", "1", ... for positional and by name for
// named arguments.
func annotationFieldValues(rule *ast.Rule,
	flagValues map[string]string) (map[string]any, error) {
	ql := sqlgen.NewQL(nil, nil,
		func(format string, args ...any) error {
			return annotationError(rule.FullText, format, args...)
		},
		flagValues, nil, nil)
	ql.ConvertToJSON = true
	parts := make([]string, 0, len(rule.Head.Record.FieldValues))
	for _, fv := range rule.Head.Record.FieldValues {
		if fv.Value.Expression == nil {
			return nil, annotationError(rule.FullText, "can not understand annotation")
		}
		value, err := ql.ConvertToSql(fv.Value.Expression)
		if err != nil {
			return nil, err
		}
		var key string
		if fv.Field.IsPositional() {
			key = fmt.Sprintf("%d", fv.Field.Ordinal)
		} else {
			key = fv.Field.Name
		}
		parts = append(parts, fmt.Sprintf("%q: %s", key, value))
	}
	document := "{" + strings.Join(parts, ", ") + "}"
	var fields map[string]any
	if err := json.Unmarshal([]byte(document), &fields); err != nil {
		return nil, annotationError(rule.FullText,
			"could not understand arguments of annotation")
	}
	return fields, nil
}

func positionalFields(fields map[string]any) []any {
	var result []any
	for i := 1; ; i++ {
		v, ok := fields[fmt.Sprintf("%d", i)]
		if !ok {
			break
		}
		result = append(result, v)
	}
	return result
}

func positionalValues(ann *annotation) []any {
	return positionalFields(ann.fields)
}

func annotationError(span srcfiles.Span, format string, args ...any) error {
	return srcfiles.ErrorAt("Compiling", span, format, args...)
}
