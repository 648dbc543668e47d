// ABOUTME: Small inline prompts used by the CLI
// ABOUTME: Name-collision resolution chooser and yes/no confirmation
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/kith/crm"
)

type choice struct {
	label      string
	binding    key.Binding
	resolution crm.Resolution
}

var promptKeys = struct {
	Up, Down, Choose, Cancel, Yes, No key.Binding
}{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Choose: key.NewBinding(key.WithKeys("enter")),
	Cancel: key.NewBinding(key.WithKeys("esc", "q", "ctrl+c")),
	Yes:    key.NewBinding(key.WithKeys("y", "Y")),
	No:     key.NewBinding(key.WithKeys("n", "N", "enter", "esc", "q", "ctrl+c")),
}

// chooserModel asks how to handle a relationship name that is already taken.
type chooserModel struct {
	collision *crm.CollisionError
	choices   []choice
	cursor    int
	result    crm.Resolution
	done      bool
}

func newChooser(c *crm.CollisionError) chooserModel {
	return chooserModel{
		collision: c,
		choices: []choice{
			{label: "Open the existing relationship", binding: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")), resolution: crm.ResolveOpenExisting},
			{label: fmt.Sprintf("Create %q instead", c.ForkName), binding: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fork")), resolution: crm.ResolveFork},
			{label: "Cancel", binding: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")), resolution: crm.ResolveNone},
		},
	}
}

func (m chooserModel) Init() tea.Cmd {
	return nil
}

func (m chooserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, promptKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, promptKeys.Down):
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, promptKeys.Choose):
		return m.choose(m.choices[m.cursor].resolution)
	case key.Matches(keyMsg, promptKeys.Cancel):
		return m.choose(crm.ResolveNone)
	default:
		for _, c := range m.choices {
			if key.Matches(keyMsg, c.binding) {
				return m.choose(c.resolution)
			}
		}
	}
	return m, nil
}

func (m chooserModel) choose(res crm.Resolution) (tea.Model, tea.Cmd) {
	m.result = res
	m.done = true
	return m, tea.Quit
}

func (m chooserModel) View() string {
	if m.done {
		return ""
	}
	var s strings.Builder
	s.WriteString(warningStyle.Render(fmt.Sprintf("%q is already in your list.", m.collision.Existing.ContactName)))
	s.WriteString("\n\n")
	for i, c := range m.choices {
		cursor := "  "
		line := fmt.Sprintf("%s (%s)", c.label, c.binding.Help().Key)
		if i == m.cursor {
			cursor = "> "
			line = tabActiveStyle.Render(line)
		}
		s.WriteString(cursor + line + "\n")
	}
	s.WriteString(helpStyle.Render("↑/↓: Move • Enter: Choose • Esc: Cancel"))
	s.WriteString("\n")
	return s.String()
}

// ChooseResolution asks the user how to resolve a name collision. Cancel
// returns crm.ResolveNone.
func ChooseResolution(c *crm.CollisionError) (crm.Resolution, error) {
	final, err := tea.NewProgram(newChooser(c)).Run()
	if err != nil {
		return crm.ResolveNone, err
	}
	return final.(chooserModel).result, nil
}

// confirmModel is a yes/no question defaulting to no.
type confirmModel struct {
	question string
	answer   bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, promptKeys.Yes):
		m.answer = true
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, promptKeys.No):
		m.answer = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.question, helpStyle.Render("[y/N]"))
}

// Confirm asks a yes/no question on the terminal.
func Confirm(question string) (bool, error) {
	final, err := tea.NewProgram(confirmModel{question: question}).Run()
	if err != nil {
		return false, err
	}
	return final.(confirmModel).answer, nil
}
