package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned by ParseMessage for payloads that are neither
// a prediction nor an error reply.
var ErrMalformedMessage = errors.New("malformed message")

// InboundMessage is a reply from the classification service. It is either a
// Prediction or an ErrorReply.
type InboundMessage interface {
	inbound()
}

// Prediction carries the gesture label the service assigned to a recent vector.
type Prediction struct {
	Label string
}

// ErrorReply carries an application-level error reported by the service.
type ErrorReply struct {
	Kind string
}

func (Prediction) inbound() {}
func (ErrorReply) inbound() {}

type wireMessage struct {
	Gesture *string `json:"gesture"`
	Error   *string `json:"error"`
}

// ParseMessage decodes a service reply. A non-empty "gesture" wins over "error";
// any other shape wraps ErrMalformedMessage.
func ParseMessage(p []byte) (InboundMessage, error) {
	var m wireMessage
	if err := json.Unmarshal(p, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case m.Gesture != nil && *m.Gesture != "":
		return Prediction{Label: *m.Gesture}, nil
	case m.Error != nil:
		return ErrorReply{Kind: *m.Error}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, preview(p))
}

func preview(p []byte) string {
	const max = 64
	if len(p) > max {
		return string(p[:max]) + "..."
	}
	return string(p)
}
