// Package gorilla implements a websocket peer.Codec using Gorilla's Websocket
// library.
package gorilla

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/peer/ws"
)

// WebSocketDial returns a Codec that wraps a client-side connection with JSON
// encoding and decoding.
func WebSocketDial(ctx context.Context, url string) (peer.Codec, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	return &wsCodec{conn: conn}, nil
}

var _ peer.Codec = &wsCodec{}

type wsCodec struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
}

func (codec *wsCodec) ReadMessage() (*peer.Message, error) {
	codec.muRead.Lock()
	defer codec.muRead.Unlock()
	var msg peer.Message
	if err := codec.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (codec *wsCodec) WriteMessage(msg *peer.Message) error {
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	return codec.conn.WriteJSON(msg)
}

func (codec *wsCodec) Close() error {
	return codec.conn.Close()
}

var _ ws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a WebSocket request and returns the
// appropriate peer codec.
type Upgrader struct {
	Upgrader websocket.Upgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (peer.Codec, error) {
	conn, err := u.Upgrader.Upgrade(w, r, h)
	if err != nil {
		return nil, err
	}
	return &wsCodec{conn: conn}, nil
}

// IsClosed returns true if err signals a normal end of the websocket
// connection.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
