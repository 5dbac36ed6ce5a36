// Package prompt implements interactive selection for ambiguous
// operations. On a terminal it runs a small bubbletea picker; without
// one it fails so scripts never hang on hidden questions.
package prompt

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
)

// New returns an interactive prompter when stdin and stdout are a
// terminal and interactivity is not disabled, otherwise a prompter
// that refuses to choose.
func New(nonInteractive bool) driven.Prompter {
	if nonInteractive || !isTerminal() {
		return &Refusing{}
	}
	return &Interactive{}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Refusing is the non-interactive prompter.
type Refusing struct{}

var _ driven.Prompter = (*Refusing)(nil)

// Select always fails; callers surface the alternatives to the user.
func (*Refusing) Select(_ context.Context, _ string, options []string) (string, error) {
	return "", &domain.AmbiguousError{
		Err:          domain.ErrSelectionRequired,
		Alternatives: options,
	}
}

// Interactive runs a terminal picker.
type Interactive struct{}

var _ driven.Prompter = (*Interactive)(nil)

// Select shows the options and returns the chosen one. Cancelling the
// picker maps to domain.ErrSelectionRequired.
func (*Interactive) Select(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", domain.ErrSelectionRequired
	}
	m := pickerModel{title: title, options: options, keys: defaultKeyMap()}
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	out, err := prog.Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	final := out.(pickerModel)
	if final.cancelled {
		return "", domain.ErrSelectionRequired
	}
	return final.options[final.cursor], nil
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k")),
		Down:   key.NewBinding(key.WithKeys("down", "j")),
		Select: key.NewBinding(key.WithKeys("enter")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

type pickerModel struct {
	title     string
	options   []string
	cursor    int
	done      bool
	cancelled bool
	keys      keyMap
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Select):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Quit):
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	s := titleStyle.Render(m.title) + "\n\n"
	for i, opt := range m.options {
		if i == m.cursor {
			s += cursorStyle.Render("> ") + selectedStyle.Render(opt) + "\n"
			continue
		}
		s += "  " + opt + "\n"
	}
	s += "\n" + helpStyle.Render("enter: select  q: cancel")
	return s
}
