package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/playbook"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

func newPlaybookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Inspect and drive the playbook lifecycle",
		Long:  "Playbook talks to the graph store directly, so the commands work whether or not the server is running.",
	}
	cmd.AddCommand(
		newPlaybookListCmd(a),
		newPlaybookShowCmd(a),
		newPlaybookTransitionCmd(a, "approve", "Activate a pending playbook", models.PlaybookActive),
		newPlaybookTransitionCmd(a, "reject", "Archive a pending playbook", models.PlaybookArchived),
		newPlaybookTransitionCmd(a, "deprecate", "Deprecate an active playbook", models.PlaybookDeprecated),
	)
	return cmd
}

func newPlaybookListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List playbooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPlaybookStore(cmd.Context(), func(ctx context.Context, store *playbook.Store) error {
				playbooks, err := store.List(ctx, models.PlaybookStatus(strings.ToUpper(status)))
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tVERSION\tSTATUS\tRUNS\tSUCCESS")
				for _, p := range playbooks {
					rate := "-"
					if p.Stats.TotalExecutions > 0 {
						rate = fmt.Sprintf("%.0f%%", 100*float64(p.Stats.SuccessCount)/float64(p.Stats.TotalExecutions))
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
						p.ID, p.Title, p.Version, p.Status, p.Stats.TotalExecutions, rate)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by lifecycle state (DRAFT, PENDING_REVIEW, ACTIVE, DEPRECATED, ARCHIVED)")
	return cmd
}

func newPlaybookShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one playbook as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPlaybookStore(cmd.Context(), func(ctx context.Context, store *playbook.Store) error {
				p, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(out))
				return nil
			})
		},
	}
}

func newPlaybookTransitionCmd(a *app, verb, short string, to models.PlaybookStatus) *cobra.Command {
	var actor, note string
	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPlaybookStore(cmd.Context(), func(ctx context.Context, store *playbook.Store) error {
				p, err := store.Transition(ctx, args[0], to, actor, note)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s %s version %s is now %s\n", p.ID, p.Title, p.Version, p.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", defaultActor(), "who performs the transition, recorded on the playbook")
	cmd.Flags().StringVar(&note, "note", "", "free-form note recorded with the transition")
	return cmd
}

// withPlaybookStore connects the graph store, runs fn against a playbook
// store on top of it, and closes the connection.
func (a *app) withPlaybookStore(ctx context.Context, fn func(context.Context, *playbook.Store) error) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := a.newLogger(cfg.System)

	g, err := graph.NewStore(cfg.Graph, resilience.NewExecutor("neo4j", cfg.Resilience("neo4j"), logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Close(context.Background()); err != nil {
			logger.Error("Error closing graph store", "error", err)
		}
	}()
	if err := g.Ping(ctx); err != nil {
		return err
	}

	return fn(ctx, playbook.NewStore(g, logger))
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}
