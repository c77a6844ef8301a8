package translate

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type MockEngine struct {
	Pair    Pair
	Result  string
	Err     error
	Delay   time.Duration
	ReadyCh chan error

	mu        sync.Mutex
	destroyed bool
	calls     int
}

func (e *MockEngine) Translate(ctx context.Context, text string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if e.Err != nil {
		return "", e.Err
	}
	if e.Result != "" {
		return e.Result, nil
	}
	return "[" + e.Pair.Target + "] " + text, nil
}

func (e *MockEngine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	return nil
}

func (e *MockEngine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

type readyEngine struct {
	*MockEngine
}

func (e readyEngine) Ready(ctx context.Context) error {
	select {
	case err := <-e.ReadyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockFactory struct {
	Err     error
	Make    func(Pair) Engine
	mu      sync.Mutex
	created []*MockEngine
}

func (f *MockFactory) Create(ctx context.Context, pair Pair) (Engine, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Make != nil {
		return f.Make(pair), nil
	}
	e := &MockEngine{Pair: pair}
	f.mu.Lock()
	f.created = append(f.created, e)
	f.mu.Unlock()
	return e, nil
}

func (f *MockFactory) Engines() []*MockEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockEngine(nil), f.created...)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		factory Factory
		want    State
		wantErr error
	}{
		{"ready", &MockFactory{}, Ready, nil},
		{"construction error", &MockFactory{Err: errors.New("boom")}, Error, nil},
		{"unsupported pair", &MockFactory{Err: ErrUnsupported}, Unsupported, ErrUnsupported},
		{"no capability", nil, Unsupported, ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []State
			a := NewAdapter(tt.factory, discardLogger(), OnChange(func(s State, _ Pair) {
				seen = append(seen, s)
			}))

			if a.State() != Idle {
				t.Fatalf("new adapter state = %s, want idle", a.State())
			}

			err := a.Configure(context.Background(), "en-US", "ja")
			if tt.want == Ready && err != nil {
				t.Fatalf("Configure: %v", err)
			}
			if tt.want != Ready && err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if a.State() != tt.want {
				t.Errorf("state = %s, want %s", a.State(), tt.want)
			}
			if len(seen) != 2 || seen[0] != Loading || seen[1] != tt.want {
				t.Errorf("transitions = %v, want [loading %s]", seen, tt.want)
			}
			if got := a.Pair(); got != (Pair{Source: "en", Target: "ja"}) {
				t.Errorf("pair = %+v", got)
			}
		})
	}
}

func TestTranslatePassThroughUnlessReady(t *testing.T) {
	a := NewAdapter(&MockFactory{Err: errors.New("boom")}, discardLogger())

	if got := a.Translate(context.Background(), "hello"); got != "hello" {
		t.Errorf("idle Translate = %q, want original", got)
	}
	a.Configure(context.Background(), "en", "ja")
	if got := a.Translate(context.Background(), "hello"); got != "hello" {
		t.Errorf("error-state Translate = %q, want original", got)
	}
}

func TestTranslateReady(t *testing.T) {
	a := NewAdapter(&MockFactory{}, discardLogger())
	if err := a.Configure(context.Background(), "en", "ja"); err != nil {
		t.Fatal(err)
	}
	if got := a.Translate(context.Background(), "hello"); got != "[ja] hello" {
		t.Errorf("Translate = %q", got)
	}
}

func TestTranslateFailuresFallBack(t *testing.T) {
	tests := []struct {
		name   string
		engine *MockEngine
	}{
		{"error", &MockEngine{Err: errors.New("rate limited")}},
		{"blank", &MockEngine{Result: "   "}},
		{"timeout", &MockEngine{Delay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &MockFactory{Make: func(Pair) Engine { return tt.engine }}
			a := NewAdapter(f, discardLogger(), WithTimeout(20*time.Millisecond))
			if err := a.Configure(context.Background(), "en", "fr"); err != nil {
				t.Fatal(err)
			}
			if got := a.Translate(context.Background(), "hello"); got != "hello" {
				t.Errorf("Translate = %q, want original", got)
			}
			if a.State() != Ready {
				t.Errorf("a failed call must not change state, got %s", a.State())
			}
		})
	}
}

func TestReconfigureDestroysPreviousEngine(t *testing.T) {
	f := &MockFactory{}
	a := NewAdapter(f, discardLogger())

	pairs := [][2]string{{"en", "ja"}, {"en", "fr"}, {"de", "en"}}
	for _, p := range pairs {
		if err := a.Configure(context.Background(), p[0], p[1]); err != nil {
			t.Fatal(err)
		}
	}

	engines := f.Engines()
	if len(engines) != len(pairs) {
		t.Fatalf("created %d engines, want %d", len(engines), len(pairs))
	}
	for i, e := range engines[:len(engines)-1] {
		if !e.Destroyed() {
			t.Errorf("engine %d (%s) not destroyed", i, e.Pair)
		}
	}
	last := engines[len(engines)-1]
	if last.Destroyed() {
		t.Error("current engine destroyed")
	}
	if got := a.Translate(context.Background(), "hallo"); got != "[en] hallo" {
		t.Errorf("Translate = %q", got)
	}
}

func TestReconfigureDuringTranslateReturnsOriginal(t *testing.T) {
	slow := &MockEngine{Pair: Pair{"en", "ja"}, Delay: time.Second}
	first := true
	f := &MockFactory{Make: func(p Pair) Engine {
		if first {
			first = false
			return slow
		}
		return &MockEngine{Pair: p}
	}}
	a := NewAdapter(f, discardLogger(), WithTimeout(5*time.Second))
	if err := a.Configure(context.Background(), "en", "ja"); err != nil {
		t.Fatal(err)
	}

	done := make(chan string)
	go func() { done <- a.Translate(context.Background(), "hello") }()

	// Let the call reach the engine.
	for {
		slow.mu.Lock()
		calls := slow.calls
		slow.mu.Unlock()
		if calls > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	if err := a.Configure(context.Background(), "en", "fr"); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if got != "hello" {
			t.Errorf("in-flight Translate = %q, want original", got)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight call was not cancelled")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("reconfigure did not cancel the in-flight call promptly")
	}
	if !slow.Destroyed() {
		t.Error("old engine not destroyed")
	}
}

func TestReadinessIsAwaited(t *testing.T) {
	ready := make(chan error, 1)
	f := &MockFactory{Make: func(p Pair) Engine {
		return readyEngine{&MockEngine{Pair: p, ReadyCh: ready}}
	}}
	a := NewAdapter(f, discardLogger())

	errc := make(chan error)
	go func() { errc <- a.Configure(context.Background(), "en", "es") }()

	time.Sleep(20 * time.Millisecond)
	if a.State() != Loading {
		t.Fatalf("state while loading = %s", a.State())
	}
	if got := a.Translate(context.Background(), "hi"); got != "hi" {
		t.Errorf("Translate while loading = %q, want original", got)
	}

	ready <- nil
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if a.State() != Ready {
		t.Errorf("state = %s, want ready", a.State())
	}
}

func TestReadinessFailure(t *testing.T) {
	ready := make(chan error, 1)
	ready <- errors.New("model not found")
	var engine *MockEngine
	f := &MockFactory{Make: func(p Pair) Engine {
		engine = &MockEngine{Pair: p, ReadyCh: ready}
		return readyEngine{engine}
	}}
	a := NewAdapter(f, discardLogger())

	if err := a.Configure(context.Background(), "en", "es"); err == nil {
		t.Fatal("expected error")
	}
	if a.State() != Error {
		t.Errorf("state = %s, want error", a.State())
	}
	if !engine.Destroyed() {
		t.Error("engine that failed readiness should be destroyed")
	}
}

func TestResetDuringLoadingSupersedes(t *testing.T) {
	ready := make(chan error)
	var engine *MockEngine
	f := &MockFactory{Make: func(p Pair) Engine {
		engine = &MockEngine{Pair: p, ReadyCh: ready}
		return readyEngine{engine}
	}}
	a := NewAdapter(f, discardLogger())

	errc := make(chan error)
	go func() { errc <- a.Configure(context.Background(), "en", "es") }()
	time.Sleep(20 * time.Millisecond)

	a.Reset()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("superseded Configure should fail")
		}
	case <-time.After(time.Second):
		t.Fatal("Configure did not return after Reset")
	}
	if a.State() != Idle {
		t.Errorf("state = %s, want idle", a.State())
	}
	if !engine.Destroyed() {
		t.Error("half-built engine should be destroyed")
	}
}

func TestResetWithoutEngine(t *testing.T) {
	a := NewAdapter(nil, discardLogger())
	a.Reset()
	a.Reset()
	if a.State() != Idle {
		t.Errorf("state = %s, want idle", a.State())
	}
}

func TestWants(t *testing.T) {
	a := NewAdapter(&MockFactory{}, discardLogger())
	if a.Wants("en") {
		t.Error("idle adapter should not want captions")
	}
	a.Configure(context.Background(), "en-US", "ja-JP")

	tests := []struct {
		src  string
		want bool
	}{
		{"en", true},
		{"fr", true},
		{"ja", false},
		{"JA", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := a.Wants(tt.src); got != tt.want {
			t.Errorf("Wants(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
	if a.Target() != "ja" {
		t.Errorf("Target = %q", a.Target())
	}
}

func TestSystemPromptNamesLanguages(t *testing.T) {
	p := systemPrompt(Pair{Source: "en", Target: "ja"})
	if !strings.Contains(p, "English") || !strings.Contains(p, "Japanese") {
		t.Errorf("prompt %q", p)
	}
	if got := languageName("xx"); got != "xx" {
		t.Errorf("languageName(xx) = %q", got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		want      string
		available bool
		wantErr   bool
	}{
		{"nothing configured", Options{}, "", false, false},
		{"auto picks openai", Options{OpenAIAPIKey: "sk"}, "openai", true, false},
		{"explicit none", Options{Provider: "none", OpenAIAPIKey: "sk"}, "", false, false},
		{"openai without key", Options{Provider: "openai"}, "", false, true},
		{"gemini without key", Options{Provider: "gemini"}, "", false, true},
		{"unknown", Options{Provider: "babelfish"}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Resolve(context.Background(), tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if c.Name != tt.want || c.Available() != tt.available {
				t.Errorf("got %+v", c)
			}
		})
	}
}

func TestAutoDetectPrompt(t *testing.T) {
	p := systemPrompt(Pair{Target: "en"})
	if !strings.Contains(p, "into English") {
		t.Errorf("prompt %q", p)
	}
	if got := (Pair{Target: "en"}).String(); got != "auto→en" {
		t.Errorf("Pair.String = %q", got)
	}
}
