package peer

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vipnode/peerrpc/internal/pretty"
)

// Codec is an abstraction for receiving and sending messages over a byte
// stream. ReadMessage is called from a single goroutine, WriteMessage may be
// called concurrently.
type Codec interface {
	ReadMessage() (*Message, error)
	WriteMessage(*Message) error
	Close() error
}

var _ Codec = &jsonCodec{}

// IOCodec returns a Codec that wraps newline-delimited JSON encoding and
// decoding over IO.
func IOCodec(rwc io.ReadWriteCloser) *jsonCodec {
	return &jsonCodec{
		decoder: json.NewDecoder(rwc),
		encoder: json.NewEncoder(rwc),
		closer:  rwc,
	}
}

type jsonCodec struct {
	muWrite sync.Mutex
	decoder *json.Decoder
	encoder *json.Encoder
	closer  io.Closer
}

func (codec *jsonCodec) ReadMessage() (*Message, error) {
	var msg Message
	if err := codec.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (codec *jsonCodec) WriteMessage(msg *Message) error {
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	return codec.encoder.Encode(msg)
}

func (codec *jsonCodec) Close() error {
	if codec.closer == nil {
		return nil
	}
	return codec.closer.Close()
}

// debugMessageLen is the length after which logged messages are abbreviated.
const debugMessageLen = 512

// DebugCodec logs every message read or written through codec, prefixed with
// label (such as the remote address).
func DebugCodec(label string, codec Codec) Codec {
	return &debugCodec{label: label, Codec: codec}
}

type debugCodec struct {
	Codec
	label string
}

func (codec *debugCodec) ReadMessage() (*Message, error) {
	msg, err := codec.Codec.ReadMessage()
	if err != nil {
		logger.Printf("<- %s: read error: %s", codec.label, err)
		return msg, err
	}
	logger.Printf("<- %s: %s", codec.label, pretty.Abbrev(msg.String(), debugMessageLen))
	return msg, nil
}

func (codec *debugCodec) WriteMessage(msg *Message) error {
	logger.Printf("-> %s: %s", codec.label, pretty.Abbrev(msg.String(), debugMessageLen))
	return codec.Codec.WriteMessage(msg)
}
