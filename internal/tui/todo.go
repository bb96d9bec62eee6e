// Package tui renders an interactive TODO table in the terminal.
package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/memento/internal/todo"
)

// Toggler flips a TODO between open and done.
type Toggler interface {
	Toggle(ctx context.Context, loc todo.Location) (todo.Entry, error)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type toggledMsg struct {
	idx   int
	entry todo.Entry
	err   error
}

// Model is the bubbletea model for the TODO table.
type Model struct {
	ctx     context.Context
	toggler Toggler
	table   table.Model
	items   []todo.Entry
	status  string
	err     error
}

// New builds a model over items in the given order.
func New(ctx context.Context, toggler Toggler, items []todo.Entry) Model {
	columns := []table.Column{
		{Title: "", Width: 3},
		{Title: "Task", Width: 48},
		{Title: "Due", Width: 10},
		{Title: "Pri", Width: 3},
		{Title: "Location", Width: 28},
	}
	rows := make([]table.Row, len(items))
	for i, e := range items {
		rows[i] = row(e)
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(max(len(items), 1), 15)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(s)

	return Model{ctx: ctx, toggler: toggler, table: t, items: items}
}

func row(e todo.Entry) table.Row {
	box := "[ ]"
	if e.Completed {
		box = "[x]"
	}
	return table.Row{box, truncate(e.Content, 48), e.Due, e.Priority, truncate(location(e), 28)}
}

func location(e todo.Entry) string {
	return e.RelPath + ":" + strconv.Itoa(e.Line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// Items returns the entries as currently displayed.
func (m Model) Items() []todo.Entry { return m.items }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case toggledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.items[msg.idx] = msg.entry
		rows := m.table.Rows()
		rows[msg.idx] = row(msg.entry)
		m.table.SetRows(rows)
		m.status = "saved " + location(msg.entry)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if idx := m.table.Cursor(); idx >= 0 && idx < len(m.items) {
				m.status = m.items[idx].AbsPath + ":" + strconv.Itoa(m.items[idx].Line)
			}
			return m, nil

		case " ", "x":
			idx := m.table.Cursor()
			if idx < 0 || idx >= len(m.items) {
				return m, nil
			}
			loc := m.items[idx].Location()
			ctx, toggler := m.ctx, m.toggler
			return m, func() tea.Msg {
				e, err := toggler.Toggle(ctx, loc)
				return toggledMsg{idx: idx, entry: e, err: err}
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.items) == 0 {
		return "\n  No TODO items found.\n\n  Press 'q' to quit.\n"
	}
	open := 0
	for _, e := range m.items {
		if !e.Completed {
			open++
		}
	}
	out := "\n" + titleStyle.Render(fmt.Sprintf("TODO  %d open / %d total", open, len(m.items))) + "\n\n" +
		m.table.View() + "\n\n"
	switch {
	case m.err != nil:
		out += errStyle.Render(" "+m.err.Error()) + "\n"
	case m.status != "":
		out += helpStyle.Render(" "+m.status) + "\n"
	}
	return out + helpStyle.Render(" [Space] Toggle  [Enter] Show location  [q] Quit") + "\n"
}

// Run shows the table until the user quits.
func Run(ctx context.Context, toggler Toggler, items []todo.Entry) error {
	p := tea.NewProgram(New(ctx, toggler, items), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
