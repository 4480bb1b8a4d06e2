package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logica-lang/logica/compiler"
)

// NewParseCommand creates "logica parse <file>", printing the AST as
// JSON.
func NewParseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a program and print its syntax tree as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := ReadProgram(args[0])
			if err != nil {
				return err
			}
			document, err := compiler.ParseToJSON(program, args[0],
				opts.CompilerOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(document))
			return nil
		},
	}
}
