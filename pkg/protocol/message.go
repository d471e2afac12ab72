package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	MessageCall           = "call"
	MessageUpdateVariable = "updateVariable"
)

// Message is one inbound message from a renderer or the REST façade.
type Message struct {
	Type string `json:"type"`

	// ClientID identifies the connection that sent the message. Errors are
	// reported back to it; messages without one are only logged.
	ClientID string `json:"clientId,omitempty"`

	// call
	FunctionID string         `json:"functionId,omitempty"`
	Kwargs     map[string]any `json:"kwargs,omitempty"`

	// updateVariable
	VariableID string `json:"variableId,omitempty"`
	Value      any    `json:"value"`
}

// Validate checks the message carries the fields its type requires.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageCall:
		if m.FunctionID == "" {
			return fmt.Errorf("%w: call without functionId", ErrInvalidMessage)
		}
	case MessageUpdateVariable:
		if m.VariableID == "" {
			return fmt.Errorf("%w: updateVariable without variableId", ErrInvalidMessage)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}
	return nil
}

// DecodeMessage decodes and validates one inbound message.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
