package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/seqflow/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Validate a workflow definition without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := config.LoadWorkflow(args[0])
			if err != nil {
				return err
			}

			g, _, err := assemble(wf, logger)
			if err != nil {
				return fmt.Errorf("workflow %q is invalid: %w", wf.Name, err)
			}

			fmt.Printf("Workflow: %s\n", wf.Name)
			fmt.Printf("  Steps: %d\n", g.Len())
			fmt.Println("  Execution order:")
			for _, n := range g.Order() {
				deps := n.Dependencies()
				if len(deps) == 0 {
					fmt.Printf("    - %s\n", n.Name())
				} else {
					fmt.Printf("    - %s (after %v)\n", n.Name(), deps)
				}
			}
			return nil
		},
	}
}
