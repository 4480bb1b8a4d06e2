// Package cli implements the logica command line tool.
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/logica-lang/logica/compiler"
	"github.com/logica-lang/logica/compiler/parser"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Engine     string
	ImportRoot string
	Flags      []string
	Verbose    bool

	logger *zap.Logger
}

// Logger returns the CLI logger, honoring --verbose.
func (o *RootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		config := zap.NewDevelopmentConfig()
		if !o.Verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		logger, err := config.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		o.logger = logger
	}
	return o.logger
}

// CompilerOptions builds compiler options from the global flags.
func (o *RootOptions) CompilerOptions() compiler.Options {
	userFlags := map[string]string{}
	for _, f := range o.Flags {
		if name, value, ok := strings.Cut(f, "="); ok {
			userFlags[name] = value
		}
	}
	return compiler.Options{
		Engine:      o.Engine,
		ImportRoots: parser.RootsFromEnv(o.ImportRoot),
		UserFlags:   userFlags,
	}
}

// ReadProgram reads the program text from the file, or stdin for "-".
func ReadProgram(path string) (string, error) {
	if path == "-" {
		content, err := os.ReadFile("/dev/stdin")
		return string(content), err
	}
	content, err := os.ReadFile(path)
	return string(content), err
}

// NewRootCommand creates the root command for the logica CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "logica",
		Short:         "Logica: a logic programming language compiled to SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", "",
		"target engine (sqlite|psql|bigquery|duckdb); overrides @Engine")
	cmd.PersistentFlags().StringVar(&opts.ImportRoot, "import-root", "",
		"colon-separated import search path; defaults to LOGICAPATH")
	cmd.PersistentFlags().StringArrayVar(&opts.Flags, "flag", nil,
		"program flag value as name=value; repeatable")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"verbose compiler logging")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}
