// Package audio reads microphone audio as raw PCM and hands it to whoever
// is listening at the moment.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Microphone audio is 16 kHz mono signed 16-bit little endian PCM. Raw PCM
// has no container header, so a listener can join mid-stream.
const (
	SampleRate = 16000
	Channels   = 1
	Encoding   = "linear16"

	// FrameSize is 20ms of audio.
	FrameSize = SampleRate * Channels * 2 / 50
)

// Mic fans PCM frames out to its current subscribers. Slow subscribers
// miss frames rather than stall the microphone.
type Mic struct {
	src io.Reader
	log *log.Logger

	mu   sync.Mutex
	subs map[int]chan []byte
	next int
	done bool
}

func NewMic(src io.Reader, logger *log.Logger) *Mic {
	return &Mic{
		src:  src,
		log:  logger,
		subs: make(map[int]chan []byte),
	}
}

// Subscribe returns a channel of frames and a function that ends the
// subscription and closes the channel. The cancel function may be called
// more than once.
func (m *Mic) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		close(ch)
		return ch, func() {}
	}
	id := m.next
	m.next++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Run reads frames until the source ends or ctx is done, then closes every
// subscription.
func (m *Mic) Run(ctx context.Context) error {
	defer m.shutdown()

	if c, ok := m.src.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	for {
		frame := make([]byte, FrameSize)
		n, err := io.ReadFull(m.src, frame)
		if n > 0 {
			m.publish(frame[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			m.log.Info("mic", "state", "eof")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read audio: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (m *Mic) publish(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (m *Mic) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

// Open returns a PCM source. "-" is standard input, "cmd:" followed by a
// command line runs that command and reads its output, and anything else
// is a file path.
func Open(ctx context.Context, source string) (io.ReadCloser, error) {
	switch {
	case source == "" || source == "-":
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(source, "cmd:"):
		return startCommand(ctx, strings.TrimPrefix(source, "cmd:"))
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}
	return f, nil
}

// DefaultCommand captures the default input device with ffmpeg.
const DefaultCommand = "ffmpeg -loglevel quiet -f pulse -i default -ac 1 -ar 16000 -f s16le -"

type commandReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *commandReader) Close() error {
	r.ReadCloser.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	return r.cmd.Wait()
}

func startCommand(ctx context.Context, line string) (io.ReadCloser, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		args = strings.Fields(DefaultCommand)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio command stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start audio command: %w", err)
	}
	return &commandReader{ReadCloser: out, cmd: cmd}, nil
}
