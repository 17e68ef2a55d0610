package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"musicd/internal/registry"
)

func newVariantsCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List model variants and whether their weights are cached locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(v)
			if err != nil {
				return err
			}
			cached, err := registry.CachedModels(cfg.HFCache)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODEL\tDEFAULT TOKENS\tCACHED")
			for _, vr := range cfg.Variants {
				mark := "no"
				if cached[vr.ModelID] {
					mark = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", vr.Name, vr.ModelID, vr.DefaultMaxTokens, mark)
			}
			return tw.Flush()
		},
	}
}
