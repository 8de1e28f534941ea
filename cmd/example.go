package cmd

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"
)

//go:embed scenario.example.yaml
var exampleScenario string

// exampleCmd prints a commented scenario to start from
var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), exampleScenario)
	},
}
