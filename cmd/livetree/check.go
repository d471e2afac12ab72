package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/livetree-dev/livetree/pkg/dsl"
	"github.com/livetree-dev/livetree/pkg/page"
	"github.com/livetree-dev/livetree/pkg/tree"
)

func checkCmd() *cobra.Command {
	var inputs map[string]string

	cmd := &cobra.Command{
		Use:   "check page.yaml...",
		Short: "Validate DSL documents",
		Long: `Parse DSL documents against the built-in kinds and report the first
error of each.

Examples:
  livetree check status.yaml
  livetree check pages/*.yaml --input build=1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// An empty page resolves exactly the built-in kinds.
			p := page.New(page.WithOffline(true))
			defer p.Close()

			in := make(map[string]any, len(inputs))
			for k, v := range inputs {
				in[k] = v
			}
			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				n, err := dsl.Parse(string(data), dsl.Context{Inputs: in, Kinds: tree.Resolver(p.Registry())})
				if err != nil {
					return err
				}
				count := 0
				n.Walk(func(*dsl.Node) { count++ })
				success("%s: %d elements", file, count)
			}
			return nil
		},
	}

	cmd.Flags().StringToStringVarP(&inputs, "input", "i", nil, "DSL input values (name=value)")

	return cmd
}
