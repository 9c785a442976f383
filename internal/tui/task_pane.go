package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/taskmesh/taskmesh/internal/events"
)

// taskRow tracks the displayed state of one submitted task.
type taskRow struct {
	id       string
	priority string
	status   string // "queued", "running", "completed", "failed"
	attempts int
	duration time.Duration
}

// TaskPaneModel shows every task the scheduler has seen, newest last.
type TaskPaneModel struct {
	rows    map[string]*taskRow
	order   []string
	tbl     table.Model
	width   int
	height  int
	focused bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "TASK", Width: 10},
			{Title: "PRIO", Width: 8},
			{Title: "STATUS", Width: 10},
			{Title: "TRIES", Width: 5},
			{Title: "TIME", Width: 10},
		}),
		table.WithFocused(false),
	)
	return TaskPaneModel{
		rows: make(map[string]*taskRow),
		tbl:  tbl,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		m.tbl, cmd = m.tbl.Update(msg)

	case events.TaskQueuedEvent:
		if _, exists := m.rows[msg.ID]; !exists {
			m.rows[msg.ID] = &taskRow{
				id:       msg.ID,
				priority: msg.Priority.String(),
				status:   "queued",
				attempts: msg.Attempt + 1,
			}
			m.order = append(m.order, msg.ID)
		} else {
			m.rows[msg.ID].status = "queued"
			m.rows[msg.ID].attempts = msg.Attempt + 1
		}
		m.refresh()

	case events.TaskStartedEvent:
		if row, exists := m.rows[msg.ID]; exists {
			row.status = "running"
		}
		m.refresh()

	case events.TaskRetriedEvent:
		if row, exists := m.rows[msg.ID]; exists {
			row.status = "retrying"
			row.attempts = msg.Attempt + 1
		}
		m.refresh()

	case events.TaskCompletedEvent:
		if row, exists := m.rows[msg.ID]; exists {
			row.status = "completed"
			row.duration = msg.Duration
		}
		m.refresh()

	case events.TaskFailedEvent:
		if row, exists := m.rows[msg.ID]; exists {
			row.status = "failed"
			row.attempts = msg.Attempts
			row.duration = msg.Duration
		}
		m.refresh()
	}

	return m, cmd
}

// refresh rebuilds the table rows from tracked state.
func (m *TaskPaneModel) refresh() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		r := m.rows[id]
		dur := ""
		if r.duration > 0 {
			dur = r.duration.Round(time.Millisecond).String()
		}
		rows = append(rows, table.Row{
			shortID(r.id),
			r.priority,
			r.status,
			fmt.Sprintf("%d", r.attempts),
			dur,
		})
	}
	m.tbl.SetRows(rows)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.tbl.SetWidth(width - 2)
	m.tbl.SetHeight(height - 3)
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
	if focused {
		m.tbl.Focus()
	} else {
		m.tbl.Blur()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	style := stylePaneBlurred
	if m.focused {
		style = stylePaneFocused
	}
	title := styleTitle.Render(fmt.Sprintf("Tasks (%d)", len(m.order)))
	return style.Width(m.width - 2).Height(m.height - 2).
		Render(title + "\n" + m.tbl.View())
}

// shortID truncates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
