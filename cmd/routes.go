package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/unchained/internal/site"
)

var routesFormat string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the routes declared by the site manifest",
	Long: `List the routes of the site manifest in the order they are matched.

Examples:
  unchained routes              # Table output
  unchained routes -f json      # JSON output`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(&routesFormat, "format", "f", "table", "Output format (table, json)")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fsys := os.DirFS(cfg.Site.Root)
	s, err := site.Load(fsys, cfg.Site.Manifest, renderOptions(cfg, fsys))
	if err != nil {
		return err
	}

	infos := s.Describe()
	switch routesFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERB\tPATH\tKIND\tTEMPLATE")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Verb, info.Path, info.Kind, info.Template)
		}
		fmt.Fprintf(w, "\nTotal: %d routes\n", len(infos))
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", routesFormat)
	}
}
