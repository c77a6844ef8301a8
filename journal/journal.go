// Package journal persists received captions without slowing down the
// receive path.
package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"node.town/captioner/caption"
	"node.town/captioner/db"
	"node.town/captioner/etc"
)

const DefaultBuffer = 256

type Inserter interface {
	InsertCaption(ctx context.Context, arg db.InsertCaptionParams) error
}

// Journal writes caption entries on its own goroutine. When the buffer is
// full new entries are dropped; the receiver never waits on the database.
type Journal struct {
	q       Inserter
	room    string
	log     *log.Logger
	entries chan caption.Entry
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func New(q Inserter, room string, buffer int, logger *log.Logger) *Journal {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	j := &Journal{
		q:       q,
		room:    room,
		log:     logger,
		entries: make(chan caption.Entry, buffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Record queues e for writing.
func (j *Journal) Record(e caption.Entry) {
	select {
	case <-j.quit:
		return
	default:
	}
	select {
	case j.entries <- e:
	default:
		n := j.dropped.Add(1)
		j.log.Warn("journal full", "dropped", n)
	}
}

// Dropped reports how many entries were discarded because the buffer was
// full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Close writes what is already queued and stops.
func (j *Journal) Close() {
	j.once.Do(func() { close(j.quit) })
	<-j.done
}

func (j *Journal) run() {
	defer close(j.done)
	for {
		select {
		case e := <-j.entries:
			j.write(e)
		case <-j.quit:
			for {
				select {
				case e := <-j.entries:
					j.write(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(e caption.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := j.q.InsertCaption(ctx, db.InsertCaptionParams{
		ID:             etc.NewFreshID(),
		Room:           j.room,
		Sender:         e.Sender,
		SourceLanguage: e.SourceLanguage,
		Text:           e.Text,
		TargetLanguage: e.TargetLanguage,
		Translation:    e.Translation,
		ReceivedAt:     e.ReceivedAt,
	})
	if err != nil {
		j.log.Error("insert caption", "error", err)
	}
}
