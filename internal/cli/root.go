package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cypherq/internal/config"
	"github.com/roach88/cypherq/internal/neo4jrun"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is loaded before any subcommand runs.
	Config *config.Config

	// connect opens the Neo4j service. Tests replace it.
	connect func(ctx context.Context, cfg config.Neo4jConfig) (neo4jrun.Service, func(), error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cypherq CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{connect: connectNeo4j})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cypherq",
		Short: "cypherq - typed Cypher query compiler",
		Long:  "Compile expression scenarios into Cypher statements against a CUE schema.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if opts.Verbose {
				cfg.Log.Level = "debug"
			}
			opts.Config = cfg
			slog.SetDefault(slog.New(cfg.Log.Handler(cmd.ErrOrStderr())))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (YAML)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func connectNeo4j(ctx context.Context, cfg config.Neo4jConfig) (neo4jrun.Service, func(), error) {
	svc, err := neo4jrun.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { svc.Close(context.Background()) }, nil
}
