package ui

import (
	"bytes"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"node.town/captioner/display"
	"node.town/captioner/translate"
)

type CaptionMsg struct {
	Caption *display.Caption
}

type StatusMsg struct {
	State translate.State
	Pair  translate.Pair
}

type LogMsg string

// Bridge carries events from the pipeline goroutines to the program. When
// the program falls behind, log lines are dropped; captions and status
// changes are not.
type Bridge struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{
		events: make(chan tea.Msg, 256),
		done:   make(chan struct{}),
	}
}

func (b *Bridge) Render(c *display.Caption) {
	b.send(CaptionMsg{Caption: c})
}

// Status is meant for translate.OnChange.
func (b *Bridge) Status(state translate.State, pair translate.Pair) {
	b.send(StatusMsg{State: state, Pair: pair})
}

// Close releases senders once the program has exited.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

// Write lets the bridge serve as a log destination. Each line becomes a
// LogMsg.
func (b *Bridge) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		select {
		case b.events <- LogMsg(line):
		default:
		}
	}
	return len(p), nil
}

func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.events
	}
}

// LogRenderer shows captions as log lines, for terminals without the full
// interface.
type LogRenderer struct {
	log  *log.Logger
	mu   sync.Mutex
	last string
}

func NewLogRenderer(logger *log.Logger) *LogRenderer {
	return &LogRenderer{log: logger}
}

func (r *LogRenderer) Render(c *display.Caption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		r.log.Debug("clear")
		r.last = ""
		return
	}
	text := strings.TrimSpace(c.Text)
	if text == r.last {
		return
	}
	r.last = text
	r.log.Info(c.Sender, "txt", text)
}
