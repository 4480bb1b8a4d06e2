package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logica-lang/logica/compiler"
)

// NewCompileCommand creates "logica compile <file> <predicate>".
func NewCompileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file> <predicate>",
		Short: "Compile a predicate to SQL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, predicate := args[0], args[1]
			program, err := ReadProgram(file)
			if err != nil {
				return err
			}
			logger := opts.Logger()
			logger.Debug("compiling", zap.String("file", file),
				zap.String("predicate", predicate))
			sql, err := compiler.CompilePredicate(program, predicate,
				opts.CompilerOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}
}
