package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/seqflow/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [run_id]",
		Short: "List persisted runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagDB == "" {
				return fmt.Errorf("status requires --db")
			}
			st, err := store.NewSQLiteStore(flagDB, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}

			if len(args) == 0 {
				return listRuns(cmd, st)
			}
			return showRun(cmd, st, args[0])
		},
	}
}

func listRuns(cmd *cobra.Command, st store.Store) error {
	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%-14s %-10s %-20s %s\n",
			r.ID, r.State, r.Workflow, humanize.Time(r.CreatedAt))
	}
	return nil
}

func showRun(cmd *cobra.Command, st store.Store, id string) error {
	r, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if r == nil {
		return fmt.Errorf("run %q not found", id)
	}

	fmt.Printf("Run: %s\n", r.ID)
	fmt.Printf("  Workflow: %s\n", r.Workflow)
	fmt.Printf("  State:    %s\n", r.State)
	fmt.Printf("  Started:  %s\n", humanize.Time(r.CreatedAt))
	if r.CompletedAt != nil {
		fmt.Printf("  Duration: %s\n", r.CompletedAt.Sub(r.CreatedAt).Round(timeResolution))
	}

	steps, err := st.ListStepRecords(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("list step records: %w", err)
	}
	if len(steps) > 0 {
		fmt.Println("  Steps:")
		for _, s := range steps {
			fmt.Printf("    - %s: %s (%d tasks, %s)\n",
				s.StepName, s.State, s.TaskCount, s.Duration.Round(timeResolution))
			for _, f := range s.Failures {
				fmt.Printf("        %s\n", f)
			}
		}
	}

	tasks, err := st.ListTaskRecords(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("list task records: %w", err)
	}
	if len(tasks) > 0 {
		fmt.Println("  Tasks:")
		for _, t := range tasks {
			outcome := "ok"
			if !t.Success {
				outcome = "failed"
			}
			fmt.Printf("    - %s %s [%s] %s\n",
				t.TaskID, t.StepName, outcome, t.Duration.Round(timeResolution))
		}
	}
	return nil
}
