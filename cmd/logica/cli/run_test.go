package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logica-lang/logica/engine"
)

func TestFormatTable(t *testing.T) {
	result := &engine.Result{
		Columns: []string{"name", "n"},
		Rows:    [][]string{{"apple", "2"}, {"pineapple", "10"}},
	}
	assert.Equal(t,
		"+-----------+----+\n"+
			"| name      | n  |\n"+
			"+-----------+----+\n"+
			"| apple     | 2  |\n"+
			"| pineapple | 10 |\n"+
			"+-----------+----+\n",
		FormatTable(result))
}
