// Package ui is the terminal interface for a captioning participant.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"node.town/captioner/display"
	"node.town/captioner/etc"
	"node.town/captioner/translate"
)

// Controls is what the interface can ask of the pipeline. Calls are made
// from the program's update loop and must not block for long.
type Controls interface {
	SetListening(active bool, languageCode string) error
	ConfigureTranslation(target string)
	ResetTranslation()
}

const maxLogLines = 500

type Model struct {
	controls  Controls
	bridge    *Bridge
	room      string
	languages []string

	speak     int
	target    int
	listening bool
	caption   *display.Caption
	state     translate.State
	pair      translate.Pair
	notice    string

	logLines []string
	showLog  bool
	viewport viewport.Model
	help     help.Model
	ready    bool
}

// New returns the initial model. languages are BCP 47 tags; the first one
// matching speak becomes the speaking language.
func New(controls Controls, bridge *Bridge, room string, languages []string, speak, target string) Model {
	if len(languages) == 0 {
		languages = []string{"en-US"}
	}
	m := Model{
		controls:  controls,
		bridge:    bridge,
		room:      room,
		languages: languages,
		help:      help.New(),
	}
	for i, l := range languages {
		if l == speak {
			m.speak = i
		}
		if target != "" && etc.PrimaryLanguage(l) == etc.PrimaryLanguage(target) {
			m.target = i
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	return m.bridge.wait()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.listening {
				m.controls.SetListening(false, m.speakLanguage())
			}
			return m, tea.Quit

		case key.Matches(msg, keys.Listen):
			m.setListening(!m.listening)

		case key.Matches(msg, keys.Speak):
			m.speak = (m.speak + 1) % len(m.languages)
			if m.listening {
				m.setListening(true)
			}

		case key.Matches(msg, keys.Target):
			m.target = (m.target + 1) % len(m.languages)
			m.notice = "press i to translate into " + m.targetLanguage()

		case key.Matches(msg, keys.Init):
			if m.state == translate.Loading {
				break
			}
			m.notice = ""
			m.controls.ConfigureTranslation(m.targetLanguage())

		case key.Matches(msg, keys.Reset):
			m.notice = ""
			m.controls.ResetTranslation()

		case key.Matches(msg, keys.Log):
			m.showLog = !m.showLog
			m.viewport.SetContent(m.logView())
			m.viewport.GotoBottom()
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		verticalMarginHeight := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.logView())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMarginHeight
		}
		m.help.Width = msg.Width

	case CaptionMsg:
		m.caption = msg.Caption
		cmds = append(cmds, m.bridge.wait())

	case StatusMsg:
		m.state = msg.State
		m.pair = msg.Pair
		cmds = append(cmds, m.bridge.wait())

	case LogMsg:
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		if m.showLog {
			m.viewport.SetContent(m.logView())
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, m.bridge.wait())
	}

	if m.showLog {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) setListening(active bool) {
	if err := m.controls.SetListening(active, m.speakLanguage()); err != nil {
		m.listening = false
		m.notice = err.Error()
		return
	}
	m.listening = active
	m.notice = ""
}

func (m Model) speakLanguage() string {
	return m.languages[m.speak]
}

func (m Model) targetLanguage() string {
	return etc.PrimaryLanguage(m.languages[m.target])
}

var (
	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	captionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(1, 2)
	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
)

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	body := m.captionView()
	if m.showLog {
		body = m.viewport.View()
	}
	return fmt.Sprintf(
		"%s\n%s\n%s",
		m.headerView(),
		body,
		m.footerView(),
	)
}

func (m Model) headerView() string {
	title := barStyle.Render("Captions · " + m.room)
	line := strings.Repeat(
		"─",
		max(0, m.viewport.Width-lipgloss.Width(title)),
	)
	return lipgloss.JoinHorizontal(lipgloss.Center, title, line)
}

func (m Model) footerView() string {
	mic := "mic off"
	if m.listening {
		mic = "listening"
	}
	status := fmt.Sprintf(
		"%s · speak %s · translate %s (%s)",
		mic,
		m.speakLanguage(),
		m.targetLanguage(),
		m.statusText(),
	)
	info := barStyle.Render(status)
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(info)))
	footer := lipgloss.JoinHorizontal(lipgloss.Center, line, info)

	lines := []string{footer}
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice))
	}
	lines = append(lines, m.help.View(keys))
	return strings.Join(lines, "\n")
}

func (m Model) statusText() string {
	switch m.state {
	case translate.Ready:
		return "ready " + m.pair.String()
	case translate.Loading:
		return "loading " + m.pair.String()
	}
	return m.state.String()
}

func (m Model) captionView() string {
	height := max(0, m.viewport.Height)
	if m.caption == nil {
		return lipgloss.Place(m.viewport.Width, height, lipgloss.Center, lipgloss.Center,
			dimStyle.Render("no captions"))
	}
	width := max(20, m.viewport.Width-8)
	box := captionStyle.Width(width).Render(
		senderStyle.Render(m.caption.Sender) + "\n" + m.caption.Text,
	)
	return lipgloss.Place(m.viewport.Width, height, lipgloss.Center, lipgloss.Bottom, box)
}

func (m Model) logView() string {
	return strings.Join(m.logLines, "\n")
}
