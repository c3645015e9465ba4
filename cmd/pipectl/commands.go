package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipeweave/core/internal/graph"
	"github.com/pipeweave/core/internal/models"
	"github.com/pipeweave/core/internal/parser"
	"github.com/pipeweave/core/internal/submit"
)

var (
	errAuditFailed  = errors.New("pipeline has integrity problems")
	errNodeNotFound = errors.New("node not found")
	errNotProvider  = errors.New("node is not a named provider")
)

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count nodes and edges and check the pipeline is acyclic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), parser.SummarizeGraph(m.Snapshot()))
		},
	}
}

func (a *app) auditCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check that references and connections agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}

			if fix {
				added, dropped := m.Repair()
				if added+dropped > 0 {
					if err := a.save(cmd.Context(), m); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "repaired: %d added, %d dropped\n", added, dropped)
			}

			report := m.Audit()
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return errAuditFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "add missing and drop dangling connections")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Place a node of the given kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.reg.Kind(args[0]); !ok {
				return fmt.Errorf("unknown node kind %q", args[0])
			}

			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}

			node, err := m.AddNode(models.Node{ID: id, Type: args[0]})
			if err != nil {
				return err
			}
			if err := a.save(cmd.Context(), m); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), node)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "node id (generated when empty)")
	return cmd
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <node-id> <name>",
		Short: "Rename a provider and every reference to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			node, ok := m.State().Node(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", errNodeNotFound, args[0])
			}
			if p, ok := a.reg.Provider(node.Type); !ok || p.Addressing != graph.ByName {
				return fmt.Errorf("%w: %s", errNotProvider, args[0])
			}

			check := m.RenameProvider(args[0], args[1])
			if check.Invalid {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %q is not a valid identifier, references were not updated\n", args[1])
			}
			if check.Duplicate {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %q is used by another provider\n", args[1])
			}
			return a.save(cmd.Context(), m)
		},
	}
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <node-id>",
		Short: "Remove a node, its connections and references to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if !m.RemoveNode(args[0]) {
				return fmt.Errorf("%w: %s", errNodeNotFound, args[0])
			}
			return a.save(cmd.Context(), m)
		},
	}
}

func (a *app) setKindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-kind <node-id> <option>",
		Short: "Change the output kind of a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			node, ok := m.State().Node(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", errNodeNotFound, args[0])
			}
			p, ok := a.reg.Provider(node.Type)
			if !ok || p.KindField == "" {
				return fmt.Errorf("%w: %s", errNotProvider, args[0])
			}
			if _, known := p.Kinds[args[1]]; !known {
				return fmt.Errorf("unknown kind option %q for %s", args[1], node.Type)
			}

			m.ChangeProviderKind(args[0], args[1])
			return a.save(cmd.Context(), m)
		},
	}
}

func (a *app) submitCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send the pipeline to the validation service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if url == "" {
				url = a.cfg.Validator.URL
			}

			summary, err := submit.New(url, submit.WithLogger(a.logger)).Submit(cmd.Context(), m.Snapshot())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "validation endpoint (defaults to validator.url)")
	return cmd
}
