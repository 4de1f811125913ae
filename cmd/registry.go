package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/lancet/internal/analysis/registry"
)

// newRegistryCmd creates the `registry` command, which dumps the built-in
// source, sink, and sanitizer tables. Useful when writing overlay files.
func newRegistryCmd() *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry [language]",
		Short: "Lists the registered taint sources, sinks, and sanitizers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			languages := registry.Languages()
			if len(args) == 1 {
				languages = args[:1]
			}

			out := cmd.OutOrStdout()
			for _, language := range languages {
				set, err := registry.ForLanguage(language)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "language: %s\n", language)
				fmt.Fprintln(out, "  sources:")
				for _, name := range set.Sources.Names() {
					info, _ := set.Sources.Lookup(name)
					fmt.Fprintf(out, "    %-40s %s (%s)\n", name, info.Category, info.Level)
				}
				fmt.Fprintln(out, "  sinks:")
				for _, name := range set.Sinks.Names() {
					info, _ := set.Sinks.Lookup(name)
					fmt.Fprintf(out, "    %-40s %s\n", name, info.Type)
				}
				fmt.Fprintln(out, "  sanitizers:")
				for _, name := range set.Sanitizers.Names() {
					info, _ := set.Sanitizers.Lookup(name)
					fmt.Fprintf(out, "    %-40s clears %v\n", name, info.Clears)
				}
			}
			return nil
		},
	}
	return registryCmd
}
