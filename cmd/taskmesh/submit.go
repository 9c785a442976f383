package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/task"
)

var submitPriority string

var submitCmd = &cobra.Command{
	Use:   "submit <description>",
	Short: "Submit a single task and print its aggregated report",
	Long: `Submit coordinates one task directly, without going through the
priority queue: the description is decomposed, steps run concurrently in
dependency order, and the aggregated report plus per-step timings are
printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitPriority, "priority", "p", "medium", "Task priority: critical, high, medium, low")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}

	rt, err := buildRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	description := strings.Join(args, " ")
	t := task.New(description, task.ParsePriority(submitPriority))

	result, err := rt.coord.Run(ctx, t)
	if err != nil {
		return err
	}
	fmt.Println(result)

	if m, ok := rt.coord.MetricsFor(t.ID); ok {
		fmt.Printf("\nCoordination %s: %d steps, %d failed, %d skipped, total %s\n",
			m.CoordinationID, m.StepCount, m.FailedSteps, m.SkippedSteps,
			m.TotalDuration.Round(time.Millisecond))
		stepIDs := make([]string, 0, len(m.StepDurations))
		for stepID := range m.StepDurations {
			stepIDs = append(stepIDs, stepID)
		}
		sort.Strings(stepIDs)
		for _, stepID := range stepIDs {
			fmt.Printf("  %-24s %s\n", stepID, m.StepDurations[stepID].Round(time.Millisecond))
		}
	}
	return nil
}
