package peer

import (
	"encoding/json"
)

// Kind distinguishes requests from responses on the wire.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// Message is the single structured value exchanged between peers. A request
// carries Fn and Args, a response carries exactly one of Data or Error. Both
// share the correlation ID of the originating call.
type Message struct {
	Kind  Kind              `json:"kind"`
	ID    string            `json:"id"`
	Fn    string            `json:"fn"`
	Args  []json.RawMessage `json:"args"`
	Data  json.RawMessage   `json:"data,omitempty"`
	Error *ErrorEnvelope    `json:"error,omitempty"`
}

type request struct {
	Kind Kind              `json:"kind"`
	ID   string            `json:"id"`
	Fn   string            `json:"fn"`
	Args []json.RawMessage `json:"args"`
}

type response struct {
	Kind  Kind            `json:"kind"`
	ID    string          `json:"id"`
	Fn    string          `json:"fn"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorEnvelope  `json:"error,omitempty"`
}

// MarshalJSON always includes args on requests, empty or not, and leaves it
// out of responses.
func (msg Message) MarshalJSON() ([]byte, error) {
	switch msg.Kind {
	case KindRequest:
		args := msg.Args
		if args == nil {
			args = []json.RawMessage{}
		}
		return json.Marshal(request{Kind: msg.Kind, ID: msg.ID, Fn: msg.Fn, Args: args})
	case KindResponse:
		return json.Marshal(response{Kind: msg.Kind, ID: msg.ID, Fn: msg.Fn, Data: msg.Data, Error: msg.Error})
	}
	type message Message
	return json.Marshal(message(msg))
}

// IsRequest returns true if the message is an inbound call.
func (msg *Message) IsRequest() bool {
	return msg.Kind == KindRequest
}

// IsResponse returns true if the message answers an outstanding call.
func (msg *Message) IsResponse() bool {
	return msg.Kind == KindResponse
}

func (msg *Message) String() string {
	s, err := json.Marshal(msg)
	if err != nil {
		return "invalid message: " + err.Error()
	}
	return string(s)
}

// ErrorEnvelope is the transmissible projection of a failure.
type ErrorEnvelope struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}
