package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/scheduler"
	"github.com/taskmesh/taskmesh/internal/task"
	"github.com/taskmesh/taskmesh/internal/tui"
)

var (
	runPriority string
	runWatch    bool
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Start the runtime and execute one or more tasks",
	Long: `Run starts the scheduler with a pool of simulated agents and executes
each argument as one task. With no arguments, task descriptions are read
from stdin, one per line.

Each task is decomposed into typed steps, steps execute concurrently in
dependency order, and the aggregated report is printed when the task
completes. Use --watch to attach a live dashboard instead of plain output.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPriority, "priority", "p", "medium", "Task priority: critical, high, medium, low")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Show a live dashboard while tasks execute")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	descriptions := args
	if len(descriptions) == 0 {
		descriptions, err = readLines(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading tasks from stdin: %w", err)
		}
	}
	if len(descriptions) == 0 {
		return fmt.Errorf("no tasks given")
	}

	prio := task.ParsePriority(runPriority)
	rt.sched.Start(ctx)

	handles := make([]*scheduler.Handle, 0, len(descriptions))
	for _, desc := range descriptions {
		h, err := rt.sched.Submit(desc, prio)
		if err != nil {
			return fmt.Errorf("submitting %q: %w", desc, err)
		}
		handles = append(handles, h)
	}

	if runWatch {
		return watchAndWait(ctx, rt, handles)
	}
	return waitAndPrint(ctx, handles)
}

// waitAndPrint waits for every handle and prints each report as it lands.
func waitAndPrint(ctx context.Context, handles []*scheduler.Handle) error {
	var failed int
	for _, h := range handles {
		result, err := h.Wait(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "task %s: %v\n", h.TaskID(), err)
			continue
		}
		fmt.Println(result)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(handles))
	}
	return nil
}

// watchAndWait runs the dashboard until every task finishes or the user
// quits, then prints the reports.
func watchAndWait(ctx context.Context, rt *runtime, handles []*scheduler.Handle) error {
	p := tea.NewProgram(tui.New(rt.bus), tea.WithAltScreen(), tea.WithContext(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, h := range handles {
			select {
			case <-h.Done():
			case <-ctx.Done():
				return
			}
		}
		p.Quit()
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	wg.Wait()

	return waitAndPrint(ctx, handles)
}

// readLines collects non-empty lines from the reader.
func readLines(f *os.File) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
