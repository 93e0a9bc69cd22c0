package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newValidateConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration, then print a summary",
		Long:  "Validate-config resolves the configuration the same way run does: YAML from the config directory merged with environment overrides, then validated. It connects to nothing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			enabled := 0
			for _, p := range cfg.Providers {
				if p.Enabled {
					enabled++
				}
			}

			fmt.Fprintln(a.stdout, "Configuration valid")
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  providers:\t%d declared, %d enabled\n", len(cfg.Providers), enabled)
			for _, p := range cfg.Providers {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(w, "    %s:\t%s, priority %d, %s\n", p.Name, p.Kind, p.Priority, state)
			}
			fmt.Fprintf(w, "  graph:\t%s\n", cfg.Graph.URI)
			fmt.Fprintf(w, "  vector:\t%s:%d (collection %s, dimension %d)\n",
				cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection, cfg.Vector.Dimension)
			if cfg.Metrics.URL != "" {
				fmt.Fprintf(w, "  metrics:\t%s\n", cfg.Metrics.URL)
			} else {
				fmt.Fprintf(w, "  metrics:\tnot configured\n")
			}
			fmt.Fprintf(w, "  generator:\t%s (embed %s, generate %s)\n",
				cfg.Generator.BaseURL, cfg.Generator.EmbedModel, cfg.Generator.GenerateModel)
			fmt.Fprintf(w, "  policy:\t%s (model %s)\n", cfg.Decision.PolicyName, cfg.Decision.ModelVersion)
			fmt.Fprintf(w, "  tick:\t%s\n", cfg.System.TickInterval)
			fmt.Fprintf(w, "  http port:\t%d\n", cfg.System.HTTPPort)
			return w.Flush()
		},
	}
}
