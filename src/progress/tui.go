package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	prog "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Spinner frames for the fetch-in-flight animation.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	workflowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498DB")).Bold(true)
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// WorkflowStartedMsg adds a progress row for a workflow.
type WorkflowStartedMsg struct {
	Workflow  string
	TotalRuns int
}

// RunCompletedMsg advances a workflow's progress row.
type RunCompletedMsg struct {
	Workflow string
	Index    int
	Total    int
}

// FinishedMsg tells the UI all workflows are done.
type FinishedMsg struct{}

// SpinnerTickMsg advances the spinner animation.
type SpinnerTickMsg time.Time

type workflowRow struct {
	name  string
	total int
	done  int
	bar   prog.Model
}

// Model renders one progress bar per workflow, in the order workflows start
// fetching.
type Model struct {
	rows         []workflowRow
	index        map[string]int
	spinnerFrame int
	finished     bool
	cancel       context.CancelFunc
}

func NewModel(cancel context.CancelFunc) Model {
	return Model{index: make(map[string]int), cancel: cancel}
}

func (m Model) Init() tea.Cmd {
	return spinnerTick()
}

func spinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case WorkflowStartedMsg:
		if _, ok := m.index[msg.Workflow]; !ok {
			m.index[msg.Workflow] = len(m.rows)
			m.rows = append(m.rows, workflowRow{
				name:  msg.Workflow,
				total: msg.TotalRuns,
				bar:   prog.New(prog.WithDefaultGradient(), prog.WithWidth(30)),
			})
		}

	case RunCompletedMsg:
		if i, ok := m.index[msg.Workflow]; ok {
			m.rows[i].done = msg.Index
			m.rows[i].total = msg.Total
		}

	case FinishedMsg:
		m.finished = true
		return m, tea.Quit

	case SpinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if !m.finished {
			return m, spinnerTick()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	if m.finished {
		b.WriteString(doneStyle.Render("✓ All workflows traced"))
	} else {
		spinner := spinnerFrames[m.spinnerFrame]
		b.WriteString(fmt.Sprintf("%s Fetching workflow runs...", spinnerStyle.Render(spinner)))
	}
	b.WriteString("\n\n")

	for _, row := range m.rows {
		frac := 0.0
		if row.total > 0 {
			frac = float64(row.done) / float64(row.total)
		}
		b.WriteString(fmt.Sprintf("%s %s %d/%d\n",
			workflowStyle.Render(row.name), row.bar.ViewAs(frac), row.done, row.total))
	}
	return b.String()
}

// TUI is a terminal progress reporter. Events are forwarded to the
// bubbletea program through a buffered channel and dropped when it is full,
// so the fetch pipeline never blocks on rendering.
type TUI struct {
	program *tea.Program
	events  chan tea.Msg
}

// NewTUI creates the terminal reporter. cancel is invoked when the user
// quits the UI, so the fetch pipeline stops issuing requests.
func NewTUI(cancel context.CancelFunc) *TUI {
	t := &TUI{
		program: tea.NewProgram(NewModel(cancel)),
		events:  make(chan tea.Msg, 64),
	}
	go t.forward()
	return t
}

// Run blocks until the UI exits. Call Finish from the pipeline side to end
// it once all workflows are processed.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Finish tells the UI to render its final state and exit.
func (t *TUI) Finish() {
	t.program.Send(FinishedMsg{})
}

func (t *TUI) WorkflowStarted(workflow string, totalRuns int) {
	t.send(WorkflowStartedMsg{Workflow: workflow, TotalRuns: totalRuns})
}

func (t *TUI) RunCompleted(workflow string, index, total int) {
	t.send(RunCompletedMsg{Workflow: workflow, Index: index, Total: total})
}

func (t *TUI) send(msg tea.Msg) {
	select {
	case t.events <- msg:
	default:
		// Dropping a progress event beats blocking the fetch pipeline.
	}
}

func (t *TUI) forward() {
	for msg := range t.events {
		t.program.Send(msg)
	}
}
