package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gamesmith/config"
	"gamesmith/core"
	"gamesmith/logger"
	"gamesmith/metrics"
	"gamesmith/project"
)

type chatState int

const (
	chatInput chatState = iota
	chatProcessing
)

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBA08"))
)

type turnMsg struct {
	resp core.Response
}

type chatModel struct {
	textInput textinput.Model
	spinner   spinner.Model
	state     chatState
	gameName  string
	engine    *core.Engine
	lines     []string
	lastErr   error
}

func newChatModel(f chatFlags) (*chatModel, error) {
	cfg, err := config.LoadConfig(f.config)
	if err != nil {
		return nil, err
	}
	if !project.IsValidName(f.name) {
		return nil, fmt.Errorf("invalid game name %q", f.name)
	}

	l := logger.NewNullLogger()
	engine, err := buildEngine(cfg, l, metrics.New())
	if err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Placeholder = "Describe your game or ask for a change..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("202"))

	m := &chatModel{
		textInput: ti,
		spinner:   s,
		state:     chatInput,
		gameName:  f.name,
		engine:    engine,
	}

	for _, entry := range engine.Chat(f.name) {
		m.appendEntry(entry.Speaker, entry.Text)
	}
	return m, nil
}

func (m *chatModel) appendEntry(speaker, text string) {
	style := botStyle
	label := "bot"
	if speaker == project.SpeakerUser {
		style = userStyle
		label = "you"
	}
	m.lines = append(m.lines, style.Render(label+": ")+text)
}

func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.state != chatInput {
				return m, nil
			}
			text := strings.TrimSpace(m.textInput.Value())
			if text == "" {
				return m, nil
			}
			m.appendEntry(project.SpeakerUser, text)
			m.textInput.Reset()
			m.state = chatProcessing
			return m, tea.Batch(m.spinner.Tick, m.process(text))
		}
	case turnMsg:
		m.state = chatInput
		m.appendEntry(project.SpeakerBot, msg.resp.Reply)
		if msg.resp.Status != core.StatusSuccess {
			m.lastErr = fmt.Errorf("the last request did not succeed")
		} else {
			m.lastErr = nil
		}
		return m, nil
	case spinner.TickMsg:
		if m.state == chatProcessing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *chatModel) process(text string) tea.Cmd {
	return func() tea.Msg {
		resp := m.engine.ProcessMessage(context.Background(), m.gameName, text)
		return turnMsg{resp: resp}
	}
}

func (m *chatModel) View() string {
	var b strings.Builder
	b.WriteString(faintStyle.Render("game: "+m.gameName) + "\n\n")
	for _, line := range m.lines {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if m.state == chatProcessing {
		b.WriteString(m.spinner.View() + " working on it...\n")
	} else {
		b.WriteString(m.textInput.View() + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render(m.lastErr.Error()) + "\n")
	}
	b.WriteString(faintStyle.Render("enter to send, esc to quit") + "\n")
	return b.String()
}
