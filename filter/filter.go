// Package filter compiles row filter expressions using expr-lang/expr.
// A filter decides which output rows are emitted; filtered rows still merge
// into cumulative state so later rows stay correct.
package filter

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"
)

// Row is the expression environment: the record timestamp, its UTC datecode,
// and the projected field values by name.
//
// Examples:
//
//	num(fields["Temperatur Sensor 1"]) > 60
//	date == "20210601" and fields["Drehzahl Relais 1"] != "0"
type Row struct {
	Time   float64           `expr:"time"`   // unix seconds
	Date   string            `expr:"date"`   // YYYYMMDD, UTC
	Fields map[string]string `expr:"fields"` // raw formatted values
}

// Compile compiles a filter expression into a row predicate. Evaluation
// errors make the row fail the filter rather than aborting conversion.
func Compile(src string) (func(Row) bool, error) {
	program, err := expr.Compile(src,
		expr.Env(Row{}),
		expr.AsBool(),
		expr.Function("num", runNum, new(func(string) float64)),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}

	return func(row Row) bool {
		out, err := expr.Run(program, row)
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}, nil
}

// runNum converts a raw formatted field value to a float. Empty or
// unparseable values (absent sensors) become 0.
func runNum(params ...any) (any, error) {
	s, _ := params[0].(string)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0, nil
	}
	return v, nil
}
