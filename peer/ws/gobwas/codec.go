// Package gobwas implements a websocket peer.Codec using github.com/gobwas/ws.
package gobwas

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/vipnode/peerrpc/peer"
	peerws "github.com/vipnode/peerrpc/peer/ws"
)

type rwc struct {
	io.Reader
	io.Writer
	io.Closer
}

// WebSocketDial returns a Codec that wraps a client-side connection with JSON
// encoding and decoding.
func WebSocketDial(ctx context.Context, url string) (peer.Codec, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}

	return clientWebSocketCodec(conn), nil
}

func clientWebSocketCodec(conn net.Conn) *wsCodec {
	return newWebSocketCodec(conn, ws.StateClientSide)
}

// serverWebSocketCodec returns a server-side Codec that wraps JSON encoding and
// decoding over a websocket connection.
func serverWebSocketCodec(conn net.Conn) *wsCodec {
	return newWebSocketCodec(conn, ws.StateServerSide)
}

func newWebSocketCodec(conn net.Conn, state ws.State) *wsCodec {
	r := wsutil.NewReader(conn, state)
	w := wsutil.NewWriter(conn, state, ws.OpBinary)
	return &wsCodec{
		inner: peer.IOCodec(rwc{r, w, conn}),
		r:     r,
		w:     w,
	}
}

var _ peer.Codec = &wsCodec{}

type wsCodec struct {
	inner peer.Codec
	r     *wsutil.Reader

	// muWrite guards the frame writer, each message is one flushed frame.
	muWrite sync.Mutex
	w       *wsutil.Writer
}

func (codec *wsCodec) ReadMessage() (*peer.Message, error) {
	for {
		hdr, err := codec.r.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode == ws.OpClose {
			return nil, io.EOF
		}
		if hdr.OpCode.IsControl() {
			if err := codec.r.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return codec.inner.ReadMessage()
	}
}

func (codec *wsCodec) WriteMessage(msg *peer.Message) error {
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	err := codec.inner.WriteMessage(msg)
	if err != nil {
		return err
	}
	if err = codec.w.Flush(); err != nil {
		return err
	}
	return nil
}

func (codec *wsCodec) Close() error {
	return codec.inner.Close()
}

var _ peerws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a WebSocket request and returns the
// appropriate peer codec.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (peer.Codec, error) {
	conn, _, _, err := u.Upgrader.Upgrade(r, w)
	if err != nil {
		return nil, err
	}
	return serverWebSocketCodec(conn), nil
}
