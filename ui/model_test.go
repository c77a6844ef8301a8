package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"node.town/captioner/display"
	"node.town/captioner/translate"
)

type MockControls struct {
	calls      []string
	listenErr  error
	lastTarget string
}

func (c *MockControls) SetListening(active bool, lang string) error {
	if c.listenErr != nil && active {
		return c.listenErr
	}
	if active {
		c.calls = append(c.calls, "listen:"+lang)
	} else {
		c.calls = append(c.calls, "stop:"+lang)
	}
	return nil
}

func (c *MockControls) ConfigureTranslation(target string) {
	c.lastTarget = target
	c.calls = append(c.calls, "configure:"+target)
}

func (c *MockControls) ResetTranslation() {
	c.calls = append(c.calls, "reset")
}

func press(m Model, k string) Model {
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func newTestModel(c *MockControls) Model {
	m := New(c, NewBridge(), "standup", []string{"en-US", "ja-JP", "fr-FR"}, "en-US", "ja")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestKeyHandling(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{"toggle listening", []string{"l", "l"}, []string{"listen:en-US", "stop:en-US"}},
		{"change language while listening", []string{"l", "s"}, []string{"listen:en-US", "listen:ja-JP"}},
		{"change language while stopped", []string{"s", "s"}, nil},
		{"init translator", []string{"i"}, []string{"configure:ja"}},
		{"cycle target then init", []string{"t", "i"}, []string{"configure:fr"}},
		{"reset translator", []string{"x"}, []string{"reset"}},
		{"quit stops listening", []string{"l", "q"}, []string{"listen:en-US", "stop:en-US"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &MockControls{}
			m := newTestModel(c)
			for _, k := range tt.keys {
				m = press(m, k)
			}
			if strings.Join(c.calls, ",") != strings.Join(tt.want, ",") {
				t.Errorf("calls = %v, want %v", c.calls, tt.want)
			}
		})
	}
}

func TestInitIgnoresSpeakingLanguage(t *testing.T) {
	c := &MockControls{}
	m := New(c, NewBridge(), "standup", []string{"en-US", "ja-JP"}, "en-US", "en")
	m = press(m, "i")
	m = press(m, "s")
	if c.lastTarget != "en" {
		t.Errorf("configure(%q), want en", c.lastTarget)
	}
	if len(c.calls) != 1 {
		t.Errorf("calls = %v, want one configure", c.calls)
	}
}

func TestInitIgnoredWhileLoading(t *testing.T) {
	c := &MockControls{}
	m := newTestModel(c)
	next, _ := m.Update(StatusMsg{State: translate.Loading, Pair: translate.Pair{Source: "en", Target: "ja"}})
	m = press(next.(Model), "i")
	if len(c.calls) != 0 {
		t.Errorf("calls = %v, want none", c.calls)
	}
}

func TestUnsupportedRecognitionShowsNotice(t *testing.T) {
	c := &MockControls{listenErr: errors.New("speech recognition unsupported")}
	m := newTestModel(c)
	m = press(m, "l")

	if m.listening {
		t.Error("should not be listening")
	}
	if !strings.Contains(m.View(), "unsupported") {
		t.Error("view should explain why listening failed")
	}
}

func TestCaptionAndStatusMessages(t *testing.T) {
	m := newTestModel(&MockControls{})

	next, _ := m.Update(CaptionMsg{Caption: &display.Caption{Text: "こんにちは", Sender: "alice"}})
	m = next.(Model)
	next, _ = m.Update(StatusMsg{State: translate.Ready, Pair: translate.Pair{Source: "en", Target: "ja"}})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"こんにちは", "alice", "ready en→ja"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ = m.Update(CaptionMsg{Caption: nil})
	m = next.(Model)
	if strings.Contains(m.View(), "こんにちは") {
		t.Error("cleared caption still shown")
	}
}

func TestLogView(t *testing.T) {
	m := newTestModel(&MockControls{})
	for i := 0; i < maxLogLines+10; i++ {
		next, _ := m.Update(LogMsg("line"))
		m = next.(Model)
	}
	if len(m.logLines) != maxLogLines {
		t.Errorf("kept %d log lines, want %d", len(m.logLines), maxLogLines)
	}
	m = press(m, "tab")
	if !m.showLog {
		t.Error("tab should switch to the log")
	}
}

func TestBridgeWriterSplitsLines(t *testing.T) {
	b := NewBridge()
	b.Write([]byte("one\ntwo\n"))
	for _, want := range []string{"one", "two"} {
		msg := (<-b.events).(LogMsg)
		if string(msg) != want {
			t.Errorf("got %q, want %q", msg, want)
		}
	}
}

func TestBridgeClosedDoesNotBlock(t *testing.T) {
	b := NewBridge()
	b.Close()
	for i := 0; i < 1000; i++ {
		b.Render(nil)
	}
}

func TestLogRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogRenderer(log.New(&buf))

	r.Render(&display.Caption{Text: "hello", Sender: "alice"})
	r.Render(&display.Caption{Text: "hello", Sender: "alice"})
	r.Render(nil)

	if got := strings.Count(buf.String(), "hello"); got != 1 {
		t.Errorf("logged caption %d times, want 1:\n%s", got, buf.String())
	}
}
