package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/decompose"
	"github.com/taskmesh/taskmesh/internal/task"
)

var decomposePriority string

var decomposeCmd = &cobra.Command{
	Use:   "decompose <description>",
	Short: "Show the decomposition of a task without executing it",
	Long: `Decompose analyzes the description, prints its complexity score and
the chosen strategy's steps: agent type, estimated duration, and the
dependency edges between steps. Nothing is executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecompose,
}

func init() {
	decomposeCmd.Flags().StringVarP(&decomposePriority, "priority", "p", "medium", "Task priority: critical, high, medium, low")
}

func runDecompose(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	description := strings.Join(args, " ")
	t := task.New(description, task.ParsePriority(decomposePriority))

	dec := decompose.New(logger).Decompose(t.ID, t.Description, t.Priority)

	fmt.Printf("Task: %s\n", t.Description)
	fmt.Printf("Complexity: %.2f\n", dec.Complexity)
	fmt.Printf("Steps: %d (estimated %s)\n\n", dec.StepCount(), dec.EstimatedDuration.Round(time.Millisecond))

	for _, s := range dec.Steps {
		deps := "-"
		if len(s.DependsOn) > 0 {
			deps = strings.Join(s.DependsOn, ", ")
		}
		fmt.Printf("  %-24s %-12s %-8s deps: %s\n",
			s.ID, s.AgentType, s.EstimatedDuration.Round(time.Millisecond), deps)
		fmt.Printf("    %s\n", s.Description)
	}

	if len(dec.Dependencies) > 0 {
		fmt.Println("\nEdges:")
		for _, d := range dec.Dependencies {
			fmt.Printf("  %s -> %s (%s)\n", d.From, d.To, d.Kind)
		}
	}
	return nil
}
