// Package caption carries finalized utterances between participants: the
// wire payload, the publisher that sends it, and the receiver that turns
// inbound payloads into displayed (and possibly translated) captions.
package caption

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"node.town/captioner/etc"
)

var (
	ErrMalformedPayload  = errors.New("malformed caption payload")
	ErrTransportDelivery = errors.New("caption delivery failed")
	ErrEmptyUtterance    = errors.New("empty utterance")
)

// Utterance is one finalized unit of recognized speech.
type Utterance struct {
	Text           string
	SourceLanguage string
}

// NewUtterance trims text and reduces the language tag to its primary
// subtag. Blank text is rejected.
func NewUtterance(text, languageCode string) (Utterance, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Utterance{}, ErrEmptyUtterance
	}
	return Utterance{
		Text:           text,
		SourceLanguage: etc.PrimaryLanguage(languageCode),
	}, nil
}

// Payload is the wire form of an Utterance. The sender is supplied by the
// transport and is never part of the encoded bytes.
type Payload struct {
	Text    string `json:"text"`
	SrcLang string `json:"srcLang"`
}

func Encode(u Utterance) ([]byte, error) {
	if strings.TrimSpace(u.Text) == "" {
		return nil, ErrEmptyUtterance
	}
	return json.Marshal(Payload{Text: u.Text, SrcLang: u.SourceLanguage})
}

// Decode parses an inbound payload. Unknown fields are ignored. A payload
// that is not a JSON object, or whose known fields have the wrong type,
// yields ErrMalformedPayload.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return p, nil
}
