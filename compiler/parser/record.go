package parser

import (
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/srcfiles"
)

// parseRecord recognizes a record literal "{...}".
func parseRecord(s srcfiles.Span) (ast.Expr, error) {
	stripped := Strip(s)
	if stripped.Len() < 2 || stripped.At(0) != '{' ||
		stripped.At(stripped.Len()-1) != '}' ||
		!IsWhole(stripped.Sub(1, stripped.Len()-1)) {
		return nil, nil
	}
	record, err := parseRecordInternals(stripped.Sub(1, stripped.Len()-1), true)
	if err != nil {
		return nil, err
	}
	return &ast.RecordExpr{Record: record, Heritage: ast.NewHeritage(s)}, nil
}

// parseRecordInternals parses the inside of "(...)" or "{...}".
// Supported field forms: positional "expr", named "name: expr",
// shorthand "name:", aggregating "name? Op= expr" and the rest-of splat
// "..var" (which must go last).
func parseRecordInternals(s srcfiles.Span, isRecordLiteral bool) (*ast.Record, error) {
	s = Strip(s)
	if parts, err := Split(s, ":-"); err != nil {
		return nil, err
	} else if len(parts) > 1 {
		return nil, srcfiles.ErrorAt(stage, s,
			"unexpected \":-\" in record internals; if you apply a function to "+
				"a \"combine\" statement, place it in an auxiliary variable first")
	}
	record := &ast.Record{}
	if s.IsEmpty() {
		return record, nil
	}
	if !IsWhole(s) {
		return record, nil
	}
	fieldValues, err := Split(s, ",")
	if err != nil {
		return nil, err
	}
	hadRestOf := false
	positionalOK := true
	var observedFields []string
	for idx, fieldValue := range fieldValues {
		if hadRestOf {
			return nil, srcfiles.ErrorAt(stage, fieldValue,
				"field \"..<rest_of>\" must go last")
		}
		var observedField string
		if fieldValue.HasPrefix("..") {
			if isRecordLiteral {
				return nil, srcfiles.ErrorAt(stage, fieldValue,
					"field \"..<rest_of>\" is not supported in record literals")
			}
			expr, err := ParseExpression(Strip(fieldValue.SubFrom(2)))
			if err != nil {
				return nil, err
			}
			fv := &ast.FieldValue{
				Field: ast.Named("*"),
				Value: &ast.Value{Expression: expr},
			}
			if len(observedFields) > 0 {
				fv.Except = append([]string(nil), observedFields...)
			}
			record.FieldValues = append(record.FieldValues, fv)
			hadRestOf = true
			positionalOK = false
			continue
		}
		field, value, hasColon, err := SplitInOneOrTwo(fieldValue, ":")
		if err != nil {
			return nil, err
		}
		if hasColon {
			positionalOK = false
			observedField = field.Str()
			if value.IsEmpty() {
				if !field.IsEmpty() && isUpperByte(field.At(0)) {
					return nil, srcfiles.ErrorAt(stage, field,
						"record fields may not start with a capital letter, as it is "+
							"reserved for predicate literals; backtick the field name if "+
							"you need it capitalized, e.g. \"Q(`A`: 1)\"")
				}
				if !field.IsEmpty() && field.At(0) == '`' {
					return nil, srcfiles.ErrorAt(stage, field,
						"backticks in variable names are disallowed; please give an "+
							"explicit variable for the value of the column")
				}
				value = field
			}
			expr, err := ParseExpression(value)
			if err != nil {
				return nil, err
			}
			record.FieldValues = append(record.FieldValues, &ast.FieldValue{
				Field: ast.Named(fieldName(field)),
				Value: &ast.Value{Expression: expr},
			})
		} else {
			field, value, hasQuestion, err := SplitInOneOrTwo(fieldValue, "?")
			if err != nil {
				return nil, err
			}
			if hasQuestion {
				positionalOK = false
				if field.IsEmpty() {
					return nil, srcfiles.ErrorAt(stage, fieldValue,
						"aggregated fields have to be named")
				}
				observedField = field.Str()
				operator, expression, err := SplitInTwo(value, "=")
				if err != nil {
					return nil, err
				}
				argument, err := ParseExpression(expression)
				if err != nil {
					return nil, err
				}
				record.FieldValues = append(record.FieldValues, &ast.FieldValue{
					Field: ast.Named(fieldName(field)),
					Value: &ast.Value{Aggregation: &ast.Aggregation{
						Operator: Strip(operator).Str(),
						Argument: argument,
					}},
				})
			} else {
				if !positionalOK {
					return nil, srcfiles.ErrorAt(stage, fieldValue,
						"positional argument can not go after non-positional arguments")
				}
				expr, err := ParseExpression(fieldValue)
				if err != nil {
					return nil, err
				}
				record.FieldValues = append(record.FieldValues, &ast.FieldValue{
					Field: ast.Positional(idx),
					Value: &ast.Value{Expression: expr},
				})
				observedField = ast.Positional(idx).SqlName()
			}
		}
		observedFields = append(observedFields, observedField)
	}
	return record, nil
}

// fieldName unquotes a backticked field name.
func fieldName(s srcfiles.Span) string {
	text := s.Str()
	if len(text) >= 2 && text[0] == '`' && text[len(text)-1] == '`' {
		return text[1 : len(text)-1]
	}
	return text
}
