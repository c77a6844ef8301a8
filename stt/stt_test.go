package stt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"node.town/captioner/audio"
	"node.town/captioner/caption"
	"node.town/captioner/capture"
	"node.town/captioner/speechmatics"
)

// recorder collects engine callbacks in the order they arrive.
type recorder struct {
	mu     sync.Mutex
	events []string
	ended  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ended: make(chan struct{}, 10)}
}

func (r *recorder) Events() capture.Events {
	return capture.Events{
		OnResult: func(segments []capture.Segment) {
			var parts []string
			for _, s := range segments {
				parts = append(parts, s.Text)
			}
			r.add("result:" + strings.Join(parts, "|"))
		},
		OnError: func(code capture.ErrorCode, err error) {
			r.add("error:" + string(code))
		},
		OnEnd: func() {
			r.add("end")
			r.ended <- struct{}{}
		},
	}
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) waitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-r.ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end; events %v", r.All())
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUtteranceLifecycle(t *testing.T) {
	tests := []struct {
		name string
		run  func(u *utterance)
		want []string
	}{
		{
			name: "complete delivers finals",
			run: func(u *utterance) {
				u.add("hello", true)
				u.add("wor", false)
				u.add("world", true)
				u.complete()
			},
			want: []string{"result:hello|world", "end"},
		},
		{
			name: "complete without words waits",
			run: func(u *utterance) {
				u.complete()
				u.add("late", true)
				u.complete()
			},
			want: []string{"result:late", "end"},
		},
		{
			name: "abort drops pending",
			run: func(u *utterance) {
				u.add("half", true)
				u.abort()
				u.complete()
			},
			want: []string{"end"},
		},
		{
			name: "failure flushes then reports",
			run: func(u *utterance) {
				u.add("partial", true)
				u.fail(capture.ErrorNetwork, errors.New("reset"))
			},
			want: []string{"result:partial", "error:network", "end"},
		},
		{
			name: "end fires once",
			run: func(u *utterance) {
				u.abort()
				u.closed()
				u.fail(capture.ErrorService, nil)
			},
			want: []string{"end"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			var torn sync.WaitGroup
			torn.Add(1)
			u := newUtterance(r.Events(), time.Minute, torn.Done)
			u.arm()
			tt.run(u)
			torn.Wait()
			if got := r.All(); !equal(got, tt.want) {
				t.Errorf("events = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUtteranceSilence(t *testing.T) {
	t.Run("no speech", func(t *testing.T) {
		r := newRecorder()
		u := newUtterance(r.Events(), 20*time.Millisecond, nil)
		u.arm()
		r.waitEnd(t)
		if got := r.All(); !equal(got, []string{"error:no-speech", "end"}) {
			t.Errorf("events = %v", got)
		}
	})

	t.Run("speech then silence", func(t *testing.T) {
		r := newRecorder()
		u := newUtterance(r.Events(), 20*time.Millisecond, nil)
		u.arm()
		u.add("hello", true)
		r.waitEnd(t)
		if got := r.All(); !equal(got, []string{"result:hello", "end"}) {
			t.Errorf("events = %v", got)
		}
	})
}

// message builds a live transcription message the way it arrives on the
// wire.
func message(t *testing.T, text string, final, speechFinal bool) *api.MessageResponse {
	t.Helper()
	raw, _ := json.Marshal(map[string]any{
		"type":         "Results",
		"is_final":     final,
		"speech_final": speechFinal,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": text}},
		},
	})
	var mr api.MessageResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		t.Fatal(err)
	}
	return &mr
}

func TestDeepgramMessages(t *testing.T) {
	r := newRecorder()
	s := &DeepgramSession{logger: log.New(io.Discard)}
	s.utt = newUtterance(r.Events(), time.Minute, s.teardown)

	s.Message(message(t, "", true, true))
	s.Message(message(t, "how", false, false))
	s.Message(message(t, "how are", true, false))
	s.Message(message(t, " you ", true, true))
	r.waitEnd(t)

	s.Message(message(t, "ignored", true, true))
	s.UtteranceEnd(&api.UtteranceEndResponse{})

	if got := r.All(); !equal(got, []string{"result:how are| you", "end"}) {
		t.Errorf("events = %v", got)
	}
}

func TestDeepgramUtteranceEnd(t *testing.T) {
	r := newRecorder()
	s := &DeepgramSession{logger: log.New(io.Discard)}
	s.utt = newUtterance(r.Events(), time.Minute, s.teardown)

	s.Message(message(t, "bonjour", true, false))
	s.UtteranceEnd(&api.UtteranceEndResponse{})
	r.waitEnd(t)

	if got := r.All(); !equal(got, []string{"result:bonjour", "end"}) {
		t.Errorf("events = %v", got)
	}
}

// sessionRecognizer hands out Deepgram sessions that are driven by hand
// instead of over a websocket.
type sessionRecognizer struct {
	sessions chan *DeepgramSession
}

type handDriven struct {
	*DeepgramSession
}

func (h handDriven) Start() error { return nil }

func (r *sessionRecognizer) NewEngine(lang string, events capture.Events) (capture.Engine, error) {
	s := &DeepgramSession{logger: log.New(io.Discard)}
	s.utt = newUtterance(events, time.Minute, nil)
	r.sessions <- s
	return handDriven{s}, nil
}

func TestDeepgramSegmentsBecomeOneUtterance(t *testing.T) {
	rec := &sessionRecognizer{sessions: make(chan *DeepgramSession, 4)}
	heard := make(chan caption.Utterance, 4)
	c := capture.NewController(
		rec,
		func(u caption.Utterance) { heard <- u },
		log.New(io.Discard),
		capture.WithRestartDelay(time.Millisecond),
	)
	defer c.Close()

	if err := c.SetListening(true, "en-US"); err != nil {
		t.Fatal(err)
	}
	s := <-rec.sessions
	s.Message(message(t, "how are", true, false))
	s.Message(message(t, " you ", true, false))
	s.Message(message(t, "doing", true, true))

	select {
	case u := <-heard:
		if u.Text != "how are you doing" {
			t.Errorf("utterance = %q, want %q", u.Text, "how are you doing")
		}
		if u.SourceLanguage != "en" {
			t.Errorf("language = %q, want en", u.SourceLanguage)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no utterance")
	}
}

// fakeSpeechmatics accepts one realtime session, checks StartRecognition,
// answers the first audio frame with a transcript and then marks the end
// of the utterance.
func fakeSpeechmatics(t *testing.T, started chan<- speechmatics.StartRecognitionMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var start speechmatics.StartRecognitionMessage
		if err := conn.ReadJSON(&start); err != nil {
			return
		}
		started <- start
		conn.WriteJSON(map[string]any{"message": "RecognitionStarted"})

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				break
			}
			var msg map[string]any
			json.Unmarshal(data, &msg)
			if msg["message"] == "EndOfStream" {
				return
			}
		}

		conn.WriteJSON(map[string]any{
			"message":  "AddPartialTranscript",
			"metadata": map[string]any{"transcript": "hola "},
		})
		conn.WriteJSON(map[string]any{
			"message":  "AddTranscript",
			"metadata": map[string]any{"transcript": "hola "},
		})
		conn.WriteJSON(map[string]any{
			"message":  "AddTranscript",
			"metadata": map[string]any{"transcript": "amigos "},
		})
		conn.WriteJSON(map[string]any{"message": "EndOfUtterance"})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestSpeechmaticsEngine(t *testing.T) {
	started := make(chan speechmatics.StartRecognitionMessage, 1)
	srv := fakeSpeechmatics(t, started)
	defer srv.Close()

	client := speechmatics.NewClient("key")
	client.URL = "ws" + strings.TrimPrefix(srv.URL, "http")

	pr, pw := io.Pipe()
	defer pw.Close()
	mic := audio.NewMic(pr, log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mic.Run(ctx)

	sm := NewSpeechmatics(client, mic, time.Minute, log.New(io.Discard))
	r := newRecorder()
	engine, err := sm.NewEngine("es-MX", r.Events())
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case start := <-started:
		if start.TranscriptionConfig.Language != "es" {
			t.Errorf("language = %q, want es", start.TranscriptionConfig.Language)
		}
		if !start.TranscriptionConfig.EnablePartials {
			t.Error("partial transcripts not enabled")
		}
		if start.AudioFormat.Encoding != "pcm_s16le" || start.AudioFormat.SampleRate != audio.SampleRate {
			t.Errorf("audio format = %+v", start.AudioFormat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no StartRecognition")
	}

	go func() {
		frame := make([]byte, audio.FrameSize)
		for i := 0; i < 50; i++ {
			if _, err := pw.Write(frame); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	r.waitEnd(t)
	if got := r.All(); !equal(got, []string{"result:hola |amigos ", "end"}) {
		t.Errorf("events = %v", got)
	}
}

func TestSpeechmaticsDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := speechmatics.NewClient("wrong")
	client.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	mic := audio.NewMic(strings.NewReader(""), log.New(io.Discard))

	r := newRecorder()
	engine, _ := NewSpeechmatics(client, mic, time.Minute, log.New(io.Discard)).NewEngine("en-US", r.Events())
	engine.Start()
	r.waitEnd(t)

	if got := r.All(); !equal(got, []string{"error:network", "end"}) {
		t.Errorf("events = %v", got)
	}
}

func TestResolve(t *testing.T) {
	mic := audio.NewMic(strings.NewReader(""), log.New(io.Discard))
	logger := log.New(io.Discard)

	tests := []struct {
		name    string
		opts    Options
		mic     *audio.Mic
		want    string
		wantErr bool
	}{
		{"no microphone", Options{DeepgramAPIKey: "dg"}, nil, "", false},
		{"no keys", Options{}, mic, "", false},
		{"auto deepgram", Options{DeepgramAPIKey: "dg", SpeechmaticsAPIKey: "sm"}, mic, "deepgram", false},
		{"auto speechmatics", Options{SpeechmaticsAPIKey: "sm"}, mic, "speechmatics", false},
		{"explicit without key", Options{Provider: "speechmatics"}, mic, "", true},
		{"unknown", Options{Provider: "whisper"}, mic, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Resolve(tt.opts, tt.mic, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if c.Name != tt.want || c.Available() != (tt.want != "") {
				t.Errorf("got %+v", c)
			}
		})
	}
}
