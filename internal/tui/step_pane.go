package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/taskmesh/taskmesh/internal/events"
)

// stepRow tracks the displayed state of one coordination step.
type stepRow struct {
	key       string // coordinationID/stepID
	stepID    string
	agentType string
	agentID   string
	status    string // "running", "completed", "failed", "skipped"
	duration  time.Duration
}

// StepPaneModel shows coordination steps across all active coordinations.
type StepPaneModel struct {
	rows    map[string]*stepRow
	order   []string
	tbl     table.Model
	width   int
	height  int
	focused bool
}

// NewStepPaneModel creates a new step pane model.
func NewStepPaneModel() StepPaneModel {
	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "STEP", Width: 18},
			{Title: "AGENT", Width: 14},
			{Title: "STATUS", Width: 10},
			{Title: "TIME", Width: 10},
		}),
		table.WithFocused(false),
	)
	return StepPaneModel{
		rows: make(map[string]*stepRow),
		tbl:  tbl,
	}
}

// Update handles messages for the step pane.
func (m StepPaneModel) Update(msg tea.Msg) (StepPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		m.tbl, cmd = m.tbl.Update(msg)

	case events.StepStartedEvent:
		key := msg.CoordinationID + "/" + msg.StepID
		if _, exists := m.rows[key]; !exists {
			m.rows[key] = &stepRow{
				key:       key,
				stepID:    msg.StepID,
				agentType: msg.AgentType,
				agentID:   msg.AgentID,
				status:    "running",
			}
			m.order = append(m.order, key)
		}
		m.refresh()

	case events.StepCompletedEvent:
		if row, exists := m.rows[msg.CoordinationID+"/"+msg.StepID]; exists {
			row.status = "completed"
			row.duration = msg.Duration
		}
		m.refresh()

	case events.StepFailedEvent:
		if row, exists := m.rows[msg.CoordinationID+"/"+msg.StepID]; exists {
			row.status = "failed"
			row.duration = msg.Duration
		}
		m.refresh()

	case events.StepSkippedEvent:
		key := msg.CoordinationID + "/" + msg.StepID
		if _, exists := m.rows[key]; !exists {
			// Skipped steps never start, so this is the first sighting.
			m.rows[key] = &stepRow{key: key, stepID: msg.StepID}
			m.order = append(m.order, key)
		}
		m.rows[key].status = "skipped"
		m.refresh()
	}

	return m, cmd
}

// refresh rebuilds the table rows from tracked state.
func (m *StepPaneModel) refresh() {
	rows := make([]table.Row, 0, len(m.order))
	for _, key := range m.order {
		r := m.rows[key]
		dur := ""
		if r.duration > 0 {
			dur = r.duration.Round(time.Millisecond).String()
		}
		agent := r.agentType
		if agent == "" {
			agent = "-"
		}
		rows = append(rows, table.Row{r.stepID, agent, r.status, dur})
	}
	m.tbl.SetRows(rows)
}

// SetSize updates the pane dimensions.
func (m *StepPaneModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.tbl.SetWidth(width - 2)
	m.tbl.SetHeight(height - 3)
}

// SetFocused updates the focus state.
func (m *StepPaneModel) SetFocused(focused bool) {
	m.focused = focused
	if focused {
		m.tbl.Focus()
	} else {
		m.tbl.Blur()
	}
}

// View renders the step pane.
func (m StepPaneModel) View() string {
	style := stylePaneBlurred
	if m.focused {
		style = stylePaneFocused
	}
	title := styleTitle.Render(fmt.Sprintf("Steps (%d)", len(m.order)))
	return style.Width(m.width - 2).Height(m.height - 2).
		Render(title + "\n" + m.tbl.View())
}
