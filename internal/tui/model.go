// Package tui is a terminal front-end over the same app.Store the desktop
// window uses.
package tui

import (
	"fmt"
	"os"
	"strings"

	"facecam/internal/app"
	"facecam/internal/ui/view"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// stateMsg carries a new store state into the program.
type stateMsg app.State

type Model struct {
	store *app.Store
	state app.State

	width    int
	choosing bool
	input    string
	quitting bool

	primaryColor   lipgloss.AdaptiveColor
	secondaryColor lipgloss.AdaptiveColor
	successColor   lipgloss.AdaptiveColor
	errorColor     lipgloss.AdaptiveColor
}

func NewModel(store *app.Store) *Model {
	return &Model{
		store:          store,
		state:          store.State(),
		primaryColor:   lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"},
		secondaryColor: lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"},
		successColor:   lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"},
		errorColor:     lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"},
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case stateMsg:
		m.state = app.State(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.choosing {
			return m, m.updateInput(msg)
		}
		if m.state.ModalOpen() {
			return m, m.updateModal(msg)
		}
		return m, m.updateMain(msg)
	}

	return m, nil
}

func (m *Model) updateMain(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		m.quitting = true
		return tea.Quit
	case "d":
		return m.dispatch(app.DetectFeedRequested{})
	case "c":
		return m.dispatch(app.CameraToggled{})
	case "u":
		return m.dispatch(app.UploadRequested{})
	case "o":
		m.choosing = true
		m.input = m.state.SelectedFile
	}
	return nil
}

// The error modal swallows everything but its close keys.
func (m *Model) updateModal(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		return m.dispatch(app.ModalClosed{})
	}
	return nil
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.choosing = false
		m.input = ""

	case tea.KeyEnter:
		path := strings.TrimSpace(m.input)
		m.choosing = false
		m.input = ""
		if path == "" {
			return nil
		}

		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		return m.dispatch(app.FileSelected{Path: path, Size: size})

	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}

	case tea.KeySpace:
		m.input += " "

	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return nil
}

// dispatch runs off the event loop: the store's subscriber sends back into
// the program, which would deadlock if called from Update.
func (m *Model) dispatch(msg app.Msg) tea.Cmd {
	return func() tea.Msg {
		m.store.Dispatch(msg)
		return nil
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	v := view.Render(m.state)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(m.primaryColor).
		Render(v.Title)

	muted := lipgloss.NewStyle().Foreground(m.secondaryColor)

	camera := muted.Render("Camera: off")
	if m.state.CameraActive {
		camera = lipgloss.NewStyle().Foreground(m.successColor).Render("Camera: on")
	}

	file := "Image: " + v.SelectedFile
	if m.choosing {
		file = "Image path: " + m.input + "█"
	}

	sections := []string{title, "", camera, file}

	if v.Detecting {
		sections = append(sections, muted.Render("Detecting faces..."))
	}

	if len(v.Cards) > 0 {
		sections = append(sections, "")
		cardStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.secondaryColor).
			Padding(0, 1)

		cards := make([]string, 0, len(v.Cards))
		for i, c := range v.Cards {
			body := lipgloss.JoinVertical(lipgloss.Left,
				append([]string{lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Face %d", i+1))}, c.Lines()...)...)
			cards = append(cards, cardStyle.Render(body))
		}
		sections = append(sections, lipgloss.JoinVertical(lipgloss.Left, cards...))
	}

	if v.Modal.Visible {
		modal := lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(m.errorColor).
			Padding(0, 2).
			Render(lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Bold(true).Foreground(m.errorColor).Render(v.Modal.Title),
				v.Modal.Message,
				"",
				muted.Render("[enter/esc] "+view.ButtonCloseModal),
			))
		sections = append(sections, "", modal)
	}

	sections = append(sections, "", muted.Render(m.help()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) help() string {
	if m.choosing {
		return "[enter] select  [esc] cancel"
	}
	camera := "start webcam"
	if m.state.CameraActive {
		camera = "stop webcam"
	}
	return fmt.Sprintf("[d] detect from feed  [c] %s  [o] choose image  [u] upload and detect  [q] quit", camera)
}

// Run blocks until the user quits.
func Run(store *app.Store) error {
	model := NewModel(store)
	p := tea.NewProgram(model, tea.WithAltScreen())

	store.Subscribe(func(s app.State) {
		p.Send(stateMsg(s))
	})

	_, err := p.Run()
	return err
}
