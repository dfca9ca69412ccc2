package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type pickerItem struct {
	label string
	index int
}

func (i pickerItem) Title() string       { return i.label }
func (i pickerItem) Description() string { return "" }
func (i pickerItem) FilterValue() string { return i.label }

// picker is a filterable single-choice list.
type picker struct {
	list   list.Model
	chosen int
}

func newPicker(prompt string, labels []string) picker {
	items := make([]list.Item, len(labels))
	for i, l := range labels {
		items[i] = pickerItem{label: l, index: i}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, 80, 20)
	l.Title = prompt
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(len(labels) > 10)
	return picker{list: l, chosen: -1}
}

func (p picker) Init() tea.Cmd { return nil }

func (p picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := frameStyle.GetFrameSize()
		p.list.SetSize(msg.Width-h, msg.Height-v)
		return p, nil

	case tea.KeyMsg:
		// While filtering, keys belong to the filter input.
		if p.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return p, tea.Quit
		case "enter":
			if it, ok := p.list.SelectedItem().(pickerItem); ok {
				p.chosen = it.index
			}
			return p, tea.Quit
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p picker) View() string {
	return frameStyle.Render(p.list.View())
}

// textPrompt is a one-line text input.
type textPrompt struct {
	prompt    string
	input     textinput.Model
	value     string
	cancelled bool
}

func newTextPrompt(prompt string) textPrompt {
	ti := textinput.New()
	ti.Placeholder = "title of a movie or show"
	ti.CharLimit = 200
	ti.Focus()
	return textPrompt{prompt: prompt, input: ti}
}

func (t textPrompt) Init() tea.Cmd { return textinput.Blink }

func (t textPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			t.cancelled = true
			return t, tea.Quit
		case tea.KeyEnter:
			t.value = strings.TrimSpace(t.input.Value())
			return t, tea.Quit
		}
	}
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

func (t textPrompt) View() string {
	return titleStyle.Render(t.prompt) + "\n\n" + t.input.View() + "\n\n" +
		helpStyle.Render("enter: search • esc: cancel") + "\n"
}
