package universe

import (
	"sort"
	"strings"
)

// initializeExecution resets the per-compilation state.
func (p *Program) initializeExecution(mainPredicate string) {
	preamble, _ := p.annotations.Preamble(p.engine)
	p.execution = newExecution(mainPredicate, preamble, p.NewNamesAllocator())
	used := sortedVarSet(p.functors.ArgsOf(mainPredicate))
	p.execution.usedPredicates = used
}

// FormattedPredicateSql prints the final SQL statement for the
// predicate, including the preamble, UDF definitions, exports of
// grounded tables and the WITH clause.
func (p *Program) FormattedPredicateSql(name string) (string, error) {
	p.initializeExecution(name)
	allocator := p.NewNamesAllocator()
	var sql string
	var err error
	if p.annotations.CompileAsUdf(name) {
		p.execution.compilingUdf = true
		sql, err = p.FunctionSql(name, allocator)
	} else {
		sql, err = p.PredicateSql(name, allocator, nil)
	}
	if err != nil {
		return "", err
	}
	if withSignature := p.generateWithClauses(name); withSignature != "" {
		sql = withSignature + "\n" + sql
	}
	p.execution.tableToExportMap[name] = sql

	definesAndExports := p.execution.preamble
	if udfDefinitions := p.neededUdfDefinitions(); len(udfDefinitions) > 0 {
		definesAndExports += strings.Join(udfDefinitions, "\n\n") + "\n\n"
	}
	if len(p.execution.definesAndExports) > 0 {
		definesAndExports += strings.Join(p.execution.definesAndExports, "\n\n") + "\n\n"
	}
	if !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	return p.useFlagsAsParametersChecked(definesAndExports + sql)
}

func sortedVarSet(s map[string]bool) []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
