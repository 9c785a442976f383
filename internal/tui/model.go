// Package tui renders a live dashboard over the event bus: submitted
// tasks on the left, coordination steps on the right, scheduler stats
// at the bottom.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmesh/taskmesh/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneSteps
)

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	taskPane    TaskPaneModel
	stepPane    StepPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	stats       events.SchedulerStatsEvent
	haveStats   bool
	width       int
	height      int
	quitting    bool
}

// New creates a dashboard model subscribed to every topic on the bus.
func New(bus *events.Bus) Model {
	return Model{
		taskPane:    NewTaskPaneModel(),
		stepPane:    NewStepPaneModel(),
		focusedPane: PaneTasks,
		eventSub:    bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyQuit, keyInterrupt:
			m.quitting = true
			return m, tea.Quit

		case keyNextPane, keyPrevPane:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case keyTasksPane:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case keyStepsPane:
			m.focusedPane = PaneSteps
			m.updateFocusStates()

		default:
			switch m.focusedPane {
			case PaneTasks:
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneSteps:
				var cmd tea.Cmd
				m.stepPane, cmd = m.stepPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.TaskQueuedEvent, events.TaskStartedEvent, events.TaskRetriedEvent,
		events.TaskCompletedEvent, events.TaskFailedEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.StepStartedEvent, events.StepCompletedEvent,
		events.StepFailedEvent, events.StepSkippedEvent:
		var cmd tea.Cmd
		m.stepPane, cmd = m.stepPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.SchedulerStatsEvent:
		m.stats = msg
		m.haveStats = true
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	left := m.taskPane.View()
	right := m.stepPane.View()
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, m.statsView(), helpBar())
}

// statsView renders the scheduler stats footer.
func (m Model) statsView() string {
	if !m.haveStats {
		return styleStats.Render("scheduler: waiting for stats...")
	}
	return styleStats.Render(fmt.Sprintf(
		"scheduler: %d active | %d queued | avg load %.2f | oldest wait %s",
		m.stats.Active, m.stats.Queued, m.stats.AvgLoad,
		m.stats.OldestAge.Round(100*time.Millisecond),
	))
}

// computeLayout calculates pane dimensions and updates the child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 45) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 2 // stats line + help bar

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.stepPane.SetSize(rightWidth, availableHeight)
	m.updateFocusStates()
}

// updateFocusStates updates the focus state of both panes.
func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.stepPane.SetFocused(m.focusedPane == PaneSteps)
}
