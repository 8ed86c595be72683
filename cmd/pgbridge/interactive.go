package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pgbridge/pgbridge/facade"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputSQL
	stateShowResult
)

type inspectorModel struct {
	facade   *facade.Facade
	ops      []facade.Operation
	input    textinput.Model
	filename string
	rendered string
	failed   bool
	selected int
	state    modelState
}

func newInspectorModel(f *facade.Facade, filename string) *inspectorModel {
	ti := textinput.New()
	ti.Placeholder = "SELECT 1"
	ti.Prompt = "sql> "
	ti.Width = 72

	return &inspectorModel{
		facade:   f,
		ops:      f.Operations(),
		input:    ti,
		filename: filename,
		state:    stateSelectOp,
	}
}

type resultMsg struct {
	rendered string
	failed   bool
}

func (m *inspectorModel) Init() tea.Cmd {
	return nil
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputSQL {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(m.ops)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				m.input.SetValue("")
				m.input.Focus()
				m.state = stateInputSQL

			case stateInputSQL:
				m.input.Blur()
				return m, m.runOperation

			case stateShowResult:
				m.state = stateSelectOp
				m.rendered = ""
			}

		case "esc":
			if m.state != stateSelectOp {
				m.input.Blur()
				m.state = stateSelectOp
				m.rendered = ""
			}
		}

	case resultMsg:
		m.rendered = msg.rendered
		m.failed = msg.failed
		m.state = stateShowResult
	}

	if m.state == stateInputSQL {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *inspectorModel) runOperation() tea.Msg {
	op := m.ops[m.selected]
	res := op.Handler(context.Background(), []byte(m.input.Value()))
	if !res.OK() {
		return resultMsg{rendered: res.Err.Error(), failed: true}
	}
	return resultMsg{rendered: renderResult(res)}
}

func renderResult(res facade.Result) string {
	switch {
	case res.Fingerprint != nil:
		return fmt.Sprintf("fingerprint: %016x\ntext:        %s",
			res.Fingerprint.Value, res.Fingerprint.Text)
	case res.Payload != nil:
		preview := res.Payload
		truncated := ""
		if len(preview) > 256 {
			preview = preview[:256]
			truncated = "…"
		}
		return fmt.Sprintf("%d bytes\n\n%s%s", len(res.Payload), hex.Dump(preview), truncated)
	default:
		return res.Text
	}
}

func (m *inspectorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pgbridge"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range m.ops {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + op.Name))
			} else {
				b.WriteString("  " + opStyle.Render(op.Name))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose • q quit"))

	case stateInputSQL:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Input for %s:\n\n", opStyle.Render(op.Name)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case stateShowResult:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(op.Name)))
		if m.failed {
			b.WriteString(errorStyle.Render(m.rendered))
		} else {
			b.WriteString(resultStyle.Render(m.rendered))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • esc back • q quit"))
	}

	return b.String()
}

func runInteractive(f *facade.Facade, filename string) error {
	p := tea.NewProgram(newInspectorModel(f, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
