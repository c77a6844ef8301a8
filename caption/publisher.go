package caption

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Transport is the slice of the room the publisher needs.
type Transport interface {
	PublishData(data []byte, reliable bool) error
}

// Publisher sends utterances to everyone in the room. Delivery is best
// effort: a failed publish is logged and never retried, since a caption
// arriving seconds late would mislead viewers.
type Publisher struct {
	transport Transport
	reliable  bool
	log       *log.Logger
}

func NewPublisher(transport Transport, reliable bool, logger *log.Logger) *Publisher {
	return &Publisher{
		transport: transport,
		reliable:  reliable,
		log:       logger,
	}
}

func (p *Publisher) Publish(u Utterance) error {
	data, err := Encode(u)
	if err != nil {
		return err
	}

	if err := p.transport.PublishData(data, p.reliable); err != nil {
		p.log.Warn("publish failed", "error", err, "txt", u.Text)
		return fmt.Errorf("%w: %w", ErrTransportDelivery, err)
	}

	p.log.Info("send", "lang", u.SourceLanguage, "txt", u.Text)
	return nil
}
