// Package wire defines the JSON frame format spoken on realtime connections.
// Every frame is a single JSON object with a "type" discriminator; decoding
// an encoded event reproduces the original event exactly.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lingopeer/realtime/internal/domain"
)

// Frame type discriminators.
const (
	TypeChatMessage    = "chat_message"
	TypePresenceUpdate = "presence_update"
	TypeBlockStatus    = "block_status"
	TypeError          = "error"
)

var (
	// ErrInvalidFrame is returned for frames that are not valid JSON or
	// fail payload validation.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrUnknownType is returned for frames with an unrecognized type tag.
	ErrUnknownType = errors.New("unknown frame type")
)

var validate = validator.New()

// SendMessage is the inbound request to post a message into the joined room.
// The wire shape mirrors the platform's original client: the text travels in
// the "message" field, the attachment as metadata only. Size caps are a
// store concern, not a framing concern.
type SendMessage struct {
	Text       string             `json:"message" validate:"required"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

// ErrorFrame is sent back to a client whose frame was rejected. It never
// terminates the connection by itself.
type ErrorFrame struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// DecodeInbound parses a client frame. Only chat_message is accepted from
// clients; everything else is server-originated.
func DecodeInbound(data []byte) (*SendMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if env.Type != TypeChatMessage {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	var msg SendMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := validate.Struct(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return &msg, nil
}

// Envelope types inline the event fields next to the discriminator so the
// wire form stays a flat, single-level object.
type chatMessageEnvelope struct {
	Type string `json:"type"`
	domain.ChatMessageEvent
}

type presenceEnvelope struct {
	Type string `json:"type"`
	domain.PresenceChangedEvent
}

type blockStatusEnvelope struct {
	Type string `json:"type"`
	domain.BlockStatusChangedEvent
}

// EncodeEvent renders an outbound event as a wire frame.
func EncodeEvent(e domain.Event) ([]byte, error) {
	switch ev := e.(type) {
	case domain.ChatMessageEvent:
		return json.Marshal(chatMessageEnvelope{Type: TypeChatMessage, ChatMessageEvent: ev})
	case domain.PresenceChangedEvent:
		return json.Marshal(presenceEnvelope{Type: TypePresenceUpdate, PresenceChangedEvent: ev})
	case domain.BlockStatusChangedEvent:
		return json.Marshal(blockStatusEnvelope{Type: TypeBlockStatus, BlockStatusChangedEvent: ev})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, e)
	}
}

// DecodeEvent parses a wire frame back into its event variant.
func DecodeEvent(data []byte) (domain.Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	switch env.Type {
	case TypeChatMessage:
		var e chatMessageEnvelope
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		return e.ChatMessageEvent, nil
	case TypePresenceUpdate:
		var e presenceEnvelope
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		return e.PresenceChangedEvent, nil
	case TypeBlockStatus:
		var e blockStatusEnvelope
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		return e.BlockStatusChangedEvent, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// EncodeError renders an error frame. Encoding a fixed struct cannot fail,
// so the result is returned directly.
func EncodeError(code, reason string) []byte {
	data, _ := json.Marshal(ErrorFrame{Type: TypeError, Code: code, Reason: reason})
	return data
}
