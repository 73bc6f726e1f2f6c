package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cypherq/internal/builderr"
	"github.com/roach88/cypherq/internal/schema"
)

// TypeView is the printed form of one registered type.
type TypeView struct {
	Name    string       `json:"name"`
	Kind    string       `json:"kind"`
	Labels  []string     `json:"labels,omitempty"`
	Base    string       `json:"base,omitempty"`
	Members []MemberView `json:"members"`
}

// MemberView is the printed form of one member.
type MemberView struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Wire      string `json:"wire,omitempty"`
	Rel       string `json:"rel,omitempty"`
	Key       string `json:"fk,omitempty"`
	Inverse   string `json:"inverse,omitempty"`
	Direction string `json:"dir,omitempty"`
	Pointer   bool   `json:"pointer,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [dir...]",
		Short: "Load CUE schemas and print the registered types",
		Long: `Load CUE schema directories into one registry and print every
registered type with its members.

Without arguments the directories listed under schema.paths in the
config are loaded.

Examples:
  cypherq schema ./testdata/schema
  cypherq schema --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args, cmd)
		},
	}
}

func runSchema(opts *RootOptions, dirs []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if len(dirs) == 0 {
		dirs = opts.Config.Schema.Paths
	}
	if len(dirs) == 0 {
		return NewExitError(ExitCommandError, "no schema directories given and schema.paths is empty")
	}

	reg := schema.NewRegistry()
	for _, dir := range dirs {
		names, err := schema.LoadCUE(reg, dir)
		if err != nil {
			code := string(builderr.CodeOf(err))
			if code == "" {
				code = "E_SCHEMA"
			}
			f.Error(code, err.Error(), map[string]string{"dir": dir})
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to load schema %s", dir), err)
		}
		f.VerboseLog("loaded %d types from %s", len(names), dir)
	}

	views := make([]TypeView, 0)
	for _, name := range reg.Names() {
		info, _ := reg.EntityInfo(name)
		views = append(views, typeView(info))
	}

	if opts.Format == "json" {
		return f.Success(views)
	}
	w := cmd.OutOrStdout()
	for _, v := range views {
		fmt.Fprintln(w, v.header())
		for _, m := range v.Members {
			fmt.Fprintf(w, "  %s\n", m.line())
		}
	}
	fmt.Fprintf(w, "\n%d types\n", len(views))
	return nil
}

func typeView(info *schema.EntityTypeInfo) TypeView {
	v := TypeView{
		Name:    info.Name,
		Kind:    info.Kind.String(),
		Labels:  info.Labels,
		Base:    info.Base,
		Members: make([]MemberView, len(info.Members)),
	}
	for i, m := range info.Members {
		mv := MemberView{
			Name:    m.Name,
			Type:    m.Type,
			Wire:    m.Wire,
			Rel:     m.Rel,
			Key:     m.Key,
			Inverse: m.Inverse,
			Pointer: m.Pointer,
		}
		if m.Navigation {
			mv.Direction = m.Direction.String()
		}
		v.Members[i] = mv
	}
	return v
}

func (v TypeView) header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", v.Name, v.Kind)
	if len(v.Labels) > 0 {
		fmt.Fprintf(&b, " labels=%s", strings.Join(v.Labels, ":"))
	}
	if v.Base != "" {
		fmt.Fprintf(&b, " base=%s", v.Base)
	}
	return b.String()
}

func (m MemberView) line() string {
	parts := []string{m.Name, m.Type}
	for _, kv := range [][2]string{
		{"wire", m.Wire},
		{"rel", m.Rel},
		{"fk", m.Key},
		{"inverse", m.Inverse},
		{"dir", m.Direction},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if m.Pointer {
		parts = append(parts, "pointer")
	}
	return strings.Join(parts, " ")
}
