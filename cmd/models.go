package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/crews/core/selection"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models per provider",
	Long: `List the model catalog for hosted providers and the models the local Ollama
daemon currently serves.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "Only list this provider")
}

func runModels(cmd *cobra.Command, args []string) error {
	mgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	var lister selection.ModelLister
	if a, err := newApp(cfg, mgr.Getenv, nil, nil); err == nil {
		lister = a.ollama
		defer a.Close()
	}
	return listModels(cmd.Context(), cmd.OutOrStdout(), modelsProvider, lister)
}

func listModels(ctx context.Context, w io.Writer, provider string, lister selection.ModelLister) error {
	providers := selection.Providers()
	if provider != "" {
		p, err := selection.ParseProvider(provider)
		if err != nil {
			return err
		}
		providers = []selection.Provider{p}
	}

	for _, p := range providers {
		fmt.Fprintf(w, "%s:\n", p.Label())

		models := selection.Catalog(p)
		if p.Local() {
			models = nil
			if lister != nil {
				found, err := lister.ListModels(ctx)
				if err != nil {
					fmt.Fprintf(w, "  (daemon unavailable: %v)\n", err)
					continue
				}
				models = found
			}
			if len(models) == 0 {
				fmt.Fprintln(w, "  (no local models found)")
				continue
			}
		}
		for _, m := range models {
			fmt.Fprintf(w, "  %s\n", m)
		}
		if p.AllowsCustomModel() {
			fmt.Fprintln(w, "  (custom model names accepted)")
		}
	}
	return nil
}
