package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cypherq/internal/catalog"
	"github.com/roach88/cypherq/internal/neo4jrun"
)

// CatalogOptions holds flags shared by the catalog subcommands.
type CatalogOptions struct {
	*RootOptions
	DBPath string // overrides catalog.path
}

// NewCatalogCommand creates the catalog command and its subcommands.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and replay cataloged statements",
		Long: `Inspect the SQLite catalog of compiled statements.

Statements are recorded by "cypherq compile --record" and keyed by the
fingerprint of their text and parameters.`,
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "catalog database (default: catalog.path from config)")

	cmd.AddCommand(newCatalogListCommand(opts))
	cmd.AddCommand(newCatalogShowCommand(opts))
	cmd.AddCommand(newCatalogRunCommand(opts))
	return cmd
}

func newCatalogListCommand(opts *CatalogOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged statements in recording order",
		Example: `  cypherq catalog list
  cypherq catalog list --name where_params --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.open()
			if err != nil {
				return err
			}
			defer cat.Close()

			entries, err := cat.List(cmd.Context(), name)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list statements", err)
			}
			if opts.Format == "json" {
				return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(entries)
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No statements found.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%d %s %s hits=%d\n  %s\n", e.Seq, shortFingerprint(e.Fingerprint), e.Name, e.Hits, e.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "only statements recorded under this scenario name")
	return cmd
}

func newCatalogShowCommand(opts *CatalogOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <fingerprint>",
		Short:         "Print one cataloged statement",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.open()
			if err != nil {
				return err
			}
			defer cat.Close()

			entry, err := opts.get(cmd, cat, args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(entry)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "fingerprint: %s\n", entry.Fingerprint)
			fmt.Fprintf(w, "name: %s\n", entry.Name)
			fmt.Fprintf(w, "build: %s\n", entry.BuildID)
			fmt.Fprintf(w, "strategy: %s\n", entry.Strategy)
			fmt.Fprintf(w, "hits: %d\n", entry.Hits)
			fmt.Fprintf(w, "text: %s\n", entry.Text)
			for _, k := range slices.Sorted(maps.Keys(entry.Params)) {
				fmt.Fprintf(w, "param %s: %v\n", k, entry.Params[k])
			}
			return nil
		},
	}
}

func newCatalogRunCommand(opts *CatalogOptions) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:           "run <fingerprint>",
		Short:         "Execute a cataloged statement against Neo4j",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := opts.open()
			if err != nil {
				return err
			}
			defer cat.Close()

			entry, err := opts.get(cmd, cat, args[0])
			if err != nil {
				return err
			}

			svc, closeFn, err := opts.connect(ctx, opts.Config.Neo4j)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to neo4j", err)
			}
			defer closeFn()

			mode := neo4jrun.Read
			if write {
				mode = neo4jrun.Write
			}
			rows, err := neo4jrun.NewRunner(svc, opts.Config.Neo4j.Timeout).Run(ctx, mode, entry.Statement())
			if err != nil {
				return WrapExitError(ExitFailure, "statement failed", err)
			}
			if opts.Format == "json" {
				return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(rows)
			}
			w := cmd.OutOrStdout()
			for _, row := range rows {
				fmt.Fprintln(w, row)
			}
			fmt.Fprintf(w, "%d rows\n", len(rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "execute with write routing")
	return cmd
}

// open opens an existing catalog. Reading commands never create one.
func (o *CatalogOptions) open() (*catalog.Catalog, error) {
	path := o.DBPath
	if path == "" {
		path = o.Config.Catalog.Path
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("catalog not found: %s", path))
	}
	cat, err := catalog.Open(path, catalog.ReadOnly())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	return cat, nil
}

func (o *CatalogOptions) get(cmd *cobra.Command, cat *catalog.Catalog, fingerprint string) (catalog.Entry, error) {
	entry, err := cat.Get(cmd.Context(), fingerprint)
	if errors.Is(err, catalog.ErrNotFound) {
		f := newFormatter(o.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		f.Error("E_NOT_FOUND", fmt.Sprintf("no statement with fingerprint %s", fingerprint), nil)
		return catalog.Entry{}, WrapExitError(ExitFailure, "statement not found", err)
	}
	if err != nil {
		return catalog.Entry{}, WrapExitError(ExitFailure, "failed to read statement", err)
	}
	return entry, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
