package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/languages"
)

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported language names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range languages.Choices() {
				code, _ := languages.Code(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, name)
			}
		},
	}
}

func fontsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts",
		Short: "List font presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(fonts.Names(), "\n"))
		},
	}
}
