package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/logica-lang/logica/compiler"
	"github.com/logica-lang/logica/engine"
)

const shellHelp = `Enter Logica statements terminated by ";".
Commands:
  sql <Predicate>   print the SQL of a predicate
  run <Predicate>   compile and execute on in-memory SQLite
  show              print the accumulated program
  clear             discard the accumulated program
  exit              leave the shell
`

// NewShellCommand creates "logica shell", an interactive session that
// accumulates statements and compiles or runs predicates on demand.
func NewShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive Logica shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			var program strings.Builder
			var pending strings.Builder
			fmt.Fprint(cmd.OutOrStdout(), shellHelp)
			for {
				prompt := "logica> "
				if pending.Len() > 0 {
					prompt = "     .. "
				}
				input, err := line.Prompt(prompt)
				if err == liner.ErrPromptAborted || err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				line.AppendHistory(input)
				trimmed := strings.TrimSpace(input)
				if pending.Len() == 0 {
					switch {
					case trimmed == "exit" || trimmed == "quit":
						return nil
					case trimmed == "show":
						fmt.Fprintln(cmd.OutOrStdout(), program.String())
						continue
					case trimmed == "clear":
						program.Reset()
						continue
					case strings.HasPrefix(trimmed, "sql "):
						shellCompile(cmd, opts, program.String(),
							strings.TrimSpace(trimmed[4:]), false)
						continue
					case strings.HasPrefix(trimmed, "run "):
						shellCompile(cmd, opts, program.String(),
							strings.TrimSpace(trimmed[4:]), true)
						continue
					}
				}
				pending.WriteString(input)
				pending.WriteString("\n")
				if strings.HasSuffix(trimmed, ";") {
					program.WriteString(pending.String())
					pending.Reset()
				}
			}
		},
	}
}

func shellCompile(cmd *cobra.Command, opts *RootOptions, program,
	predicate string, execute bool) {
	compilerOpts := opts.CompilerOptions()
	if execute && compilerOpts.Engine == "" {
		compilerOpts.Engine = "sqlite"
	}
	sql, err := compiler.CompilePredicate(program, predicate, compilerOpts)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return
	}
	if !execute {
		fmt.Fprintln(cmd.OutOrStdout(), sql)
		return
	}
	db, err := engine.Open(":memory:")
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return
	}
	defer db.Close()
	result, err := engine.Run(cmd.Context(), db, sql)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return
	}
	fmt.Fprint(cmd.OutOrStdout(), FormatTable(result))
}
