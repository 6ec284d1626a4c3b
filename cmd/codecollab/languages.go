package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/codecollab/internal/toolchain"
)

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List supported languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		printLanguages(cmd, toolchain.Default())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func printLanguages(cmd *cobra.Command, reg *toolchain.Registry) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tKIND\tEXT\tCOMMAND")
	for _, tc := range reg.Toolchains() {
		command := tc.Command()
		if command == "" {
			command = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tc.Language, tc.Kind, tc.Extension, command)
	}
	w.Flush()
}

func languageNames(reg *toolchain.Registry) string {
	var names []string
	for _, tc := range reg.Toolchains() {
		names = append(names, string(tc.Language))
	}
	return strings.Join(names, ", ")
}
