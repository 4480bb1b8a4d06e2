package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logica-lang/logica/compiler"
	"github.com/logica-lang/logica/engine"
)

// NewRunCommand creates "logica run <file> <predicate>".  Execution is
// supported for the sqlite engine.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "run <file> <predicate>",
		Short: "Compile a predicate and execute it on SQLite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, predicate := args[0], args[1]
			program, err := ReadProgram(file)
			if err != nil {
				return err
			}
			compilerOpts := opts.CompilerOptions()
			p, err := compiler.NewProgram(program, compilerOpts)
			if err != nil {
				return err
			}
			if p.Engine() != "sqlite" {
				return fmt.Errorf(
					"run supports the sqlite engine; engine %s compiles only",
					p.Engine())
			}
			sql, err := p.FormattedPredicateSql(predicate)
			if err != nil {
				return err
			}
			opts.Logger().Debug("running", zap.String("predicate", predicate))
			db, err := engine.Open(database)
			if err != nil {
				return err
			}
			defer db.Close()
			result, err := engine.Run(cmd.Context(), db, sql)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "db", ":memory:",
		"SQLite database file")
	return cmd
}

// FormatTable renders a result as an aligned text table.
func FormatTable(result *engine.Result) string {
	widths := make([]int, len(result.Columns))
	for i, c := range result.Columns {
		widths[i] = len(c)
	}
	for _, row := range result.Rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	separator := "+"
	for _, w := range widths {
		separator += strings.Repeat("-", w+2) + "+"
	}
	b.WriteString(separator + "\n")
	writeRow(result.Columns)
	b.WriteString(separator + "\n")
	for _, row := range result.Rows {
		writeRow(row)
	}
	b.WriteString(separator + "\n")
	return b.String()
}
