// Package speechmatics speaks the Speechmatics realtime websocket protocol.
package speechmatics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	WebSocketBaseURL = "wss://eu2.rt.speechmatics.com/v2"
	PingInterval     = 30 * time.Second
	PongTimeout      = 60 * time.Second
)

type Client struct {
	APIKey string
	URL    string
	Dialer *websocket.Dialer
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey: apiKey,
		URL:    WebSocketBaseURL,
		Dialer: websocket.DefaultDialer,
	}
}

type TranscriptionConfig struct {
	Language           string              `json:"language"`
	OperatingPoint     OperatingPoint      `json:"operating_point,omitempty"`
	EnablePartials     bool                `json:"enable_partials,omitempty"`
	MaxDelay           float64             `json:"max_delay,omitempty"`
	PunctuationEnabled bool                `json:"punctuation_enabled,omitempty"`
	ConversationConfig *ConversationConfig `json:"conversation_config,omitempty"`
}

// ConversationConfig makes the server send EndOfUtterance after the given
// seconds of silence.
type ConversationConfig struct {
	EndOfUtteranceSilenceTrigger float64 `json:"end_of_utterance_silence_trigger"`
}

type OperatingPoint string

const (
	OperatingPointStandard OperatingPoint = "standard"
	OperatingPointEnhanced OperatingPoint = "enhanced"
)

type AudioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type StartRecognitionMessage struct {
	Message             string              `json:"message"`
	AudioFormat         AudioFormat         `json:"audio_format"`
	TranscriptionConfig TranscriptionConfig `json:"transcription_config"`
}

type EndOfStreamMessage struct {
	Message   string `json:"message"`
	LastSeqNo int    `json:"last_seq_no"`
}

// Message is any server message. Only the fields of the kinds we act on
// are decoded.
type Message struct {
	Message string `json:"message"`

	Metadata struct {
		Transcript string  `json:"transcript"`
		StartTime  float64 `json:"start_time"`
		EndTime    float64 `json:"end_time"`
	} `json:"metadata"`

	Results []struct {
		Alternatives []struct {
			Confidence float64 `json:"confidence"`
			Content    string  `json:"content"`
		} `json:"alternatives"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Type      string  `json:"type"`
	} `json:"results"`

	SeqNo  int    `json:"seq_no"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

const (
	MessageRecognitionStarted = "RecognitionStarted"
	MessageAudioAdded         = "AudioAdded"
	MessageAddTranscript      = "AddTranscript"
	MessagePartialTranscript  = "AddPartialTranscript"
	MessageEndOfUtterance     = "EndOfUtterance"
	MessageEndOfTranscript    = "EndOfTranscript"
	MessageError              = "Error"
	MessageWarning            = "Warning"
	MessageInfo               = "Info"
)

// Text returns the transcript carried by an AddTranscript message with
// its trailing space kept, so consecutive transcripts can be joined as is.
func (m *Message) Text() string {
	if strings.TrimSpace(m.Metadata.Transcript) != "" {
		return m.Metadata.Transcript
	}
	var sb strings.Builder
	for _, r := range m.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if r.Type != "punctuation" && sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(r.Alternatives[0].Content)
	}
	if sb.Len() == 0 {
		return ""
	}
	sb.WriteString(" ")
	return sb.String()
}

// Session is one realtime recognition stream. Writes are serialized; a
// single goroutine should call Receive.
type Session struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	seqNo  int
	cancel context.CancelFunc
}

// Start dials the realtime endpoint and sends StartRecognition.
func (c *Client) Start(
	ctx context.Context,
	config TranscriptionConfig,
	audioFormat AudioFormat,
) (*Session, error) {
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	conn, _, err := c.Dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	kctx, cancel := context.WithCancel(context.Background())
	s := &Session{conn: conn, cancel: cancel}

	startMsg := StartRecognitionMessage{
		Message:             "StartRecognition",
		AudioFormat:         audioFormat,
		TranscriptionConfig: config,
	}
	if err := s.writeJSON(startMsg); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to send StartRecognition message: %w", err)
	}

	go s.keepAlive(kctx)
	return s, nil
}

func (s *Session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(PongTimeout))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Session) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Session) SendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	s.seqNo++
	return nil
}

// EndStream tells the server no more audio is coming. It answers with
// EndOfTranscript.
func (s *Session) EndStream() error {
	s.mu.Lock()
	last := s.seqNo
	s.mu.Unlock()

	err := s.writeJSON(EndOfStreamMessage{Message: "EndOfStream", LastSeqNo: last})
	if err != nil {
		return fmt.Errorf("failed to send EndOfStream message: %w", err)
	}
	return nil
}

// Receive reads the next server message.
func (s *Session) Receive() (*Message, error) {
	var msg Message
	if err := s.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close WebSocket connection: %w", err)
	}
	return nil
}
