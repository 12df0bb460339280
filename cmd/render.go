package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/extensions"
	"github.com/conneroisu/unchained/internal/templates"
)

var (
	renderData     string
	renderOutput   string
	renderSanitize bool
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template and print the result",
	Long: `Render one template with an optional YAML context and print the
result. The template path is relative to the site root.

Examples:
  unchained render templates/index.html
  unchained render templates/index.html --data context.yml
  unchained render page.html -d ctx.yml -o page.out.html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderData, "data", "d", "", "YAML file with the render context")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the result to a file instead of stdout")
	renderCmd.Flags().BoolVar(&renderSanitize, "sanitize", false, "Sanitize HTML produced by the md operation")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := loadRenderData(renderData)
	if err != nil {
		return err
	}

	opts := extensions.Register(renderOptions(cfg, os.DirFS(cfg.Site.Root)), extensions.Options{
		Sanitize: renderSanitize,
	})

	out, err := templates.LoadTemplate(cmd.Context(), args[0], data, opts)
	if err != nil {
		return err
	}

	if renderOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}

	if err := os.WriteFile(renderOutput, []byte(out), 0o644); err != nil {
		return errors.NewInternalError(errors.ErrCodeWriteFailed, "could not write "+renderOutput, err)
	}

	return nil
}

// loadRenderData reads a YAML mapping into a context. An empty path gives
// an empty context.
func loadRenderData(path string) (templates.ContextMap, error) {
	if path == "" {
		return templates.ContextMap{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewLoadFileError(path, err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "could not decode "+path)
	}

	data, err := templates.MapFromValue(values)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid context in "+path)
	}

	return data, nil
}
