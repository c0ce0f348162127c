package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/seqflow/internal/config"
	"github.com/me/seqflow/internal/executor"
	"github.com/me/seqflow/internal/store"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := config.LoadWorkflow(args[0])
			if err != nil {
				return err
			}

			g, inputs, err := assemble(wf, logger)
			if err != nil {
				return fmt.Errorf("assemble workflow %q: %w", wf.Name, err)
			}

			var st store.Store
			if flagDB != "" {
				sqlStore, err := store.NewSQLiteStore(flagDB, logger)
				if err != nil {
					return err
				}
				defer sqlStore.Close()
				if err := sqlStore.Migrate(cmd.Context()); err != nil {
					return err
				}
				st = sqlStore
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exec := executor.New(g, executor.Options{
				Workers:  flagWorkers,
				Logger:   logger,
				Store:    st,
				Workflow: wf.Name,
			})

			res, err := exec.Run(ctx, inputs)
			if err != nil {
				return err
			}

			printResult(res)
			if !res.Success {
				return fmt.Errorf("workflow %q failed", wf.Name)
			}
			return nil
		},
	}
}

func printResult(res *executor.Result) {
	fmt.Printf("Run: %s\n", res.RunID)
	status := "SUCCESS"
	if res.Cancelled {
		status = "CANCELLED"
	} else if !res.Success {
		status = "FAILED"
	}
	fmt.Printf("  Status:   %s\n", status)
	fmt.Printf("  Duration: %s\n", res.Duration.Round(time.Millisecond))
	fmt.Println("  Steps:")
	for _, o := range res.Steps {
		line := fmt.Sprintf("    - %s: %s", o.Name, o.State)
		if o.Result != nil {
			line += fmt.Sprintf(" (%d tasks)", o.Result.TaskCount)
		}
		fmt.Println(line)
		if o.Result != nil {
			for _, f := range o.Result.Failures {
				fmt.Printf("        failed task %s: %s\n", f.TaskID, f.Message)
			}
		}
	}
	if len(res.Counters) > 0 {
		fmt.Println("  Counters:")
		keys := make([]string, 0, len(res.Counters))
		for k := range res.Counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %-24s %s\n", k, humanize.Comma(res.Counters[k]))
		}
	}
}
