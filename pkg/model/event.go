package model

import "encoding/json"

type EventName string

const (
	EventMessageSend  EventName = "message:send"
	EventMessageSent  EventName = "message:sent"
	EventMessageNew   EventName = "message:new"
	EventMessageError EventName = "message:error"
	EventMessageRead  EventName = "message:read"
	EventTypingStart  EventName = "typing:start"
	EventTypingStop   EventName = "typing:stop"
)

// Envelope is the frame exchanged over a websocket connection in both
// directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an Envelope frame.
func NewEnvelope(event EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Client to server payloads.

type SendRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required,max=1000"`
}

type TypingRequest struct {
	ReceiverID string `json:"receiverId"`
}

type ReadRequest struct {
	SenderID string `json:"senderId"`
}

// Server to client payloads.

type ErrorPayload struct {
	Error string `json:"error"`
}

type TypingPayload struct {
	SenderID string `json:"senderId"`
}

type ReadPayload struct {
	ReaderID string `json:"readerId"`
}
