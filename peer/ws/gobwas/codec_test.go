package gobwas

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vipnode/peerrpc/peer"
)

func TestWebSocketCodec(t *testing.T) {
	c1, c2 := net.Pipe()

	clientCodec := clientWebSocketCodec(c1)
	serverCodec := serverWebSocketCodec(c2)
	defer clientCodec.Close()
	defer serverCodec.Close()

	go clientCodec.WriteMessage(&peer.Message{Kind: peer.KindRequest, ID: "foo", Fn: "ping"})
	msg, err := serverCodec.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "foo" || !msg.IsRequest() {
		t.Errorf("wrong message: %v", msg)
	}

	go serverCodec.WriteMessage(&peer.Message{Kind: peer.KindResponse, ID: "foo", Fn: "ping"})
	msg, err = clientCodec.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "foo" || !msg.IsResponse() {
		t.Errorf("wrong message: %v", msg)
	}
}

func TestWebSocketPeers(t *testing.T) {
	upgrader := &Upgrader{}
	served := make(chan *peer.Peer, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		codec, err := upgrader.Upgrade(r, w, nil)
		if err != nil {
			t.Error(err)
			return
		}
		transport := peer.NewCodecTransport(codec)
		p := peer.New(transport)
		p.Handle("add", func(x, y int) int { return x + y })
		served <- p
		transport.Serve()
	}))
	defer srv.Close()

	codec, err := WebSocketDial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	defer codec.Close()
	transport := peer.NewCodecTransport(codec)
	go transport.Serve()
	client := peer.New(transport)
	defer client.Destroy()
	client.Handle("double", func(x int) int { return x + x })

	var got int
	if err := client.Call(context.Background(), &got, "add", 10, 2); err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Errorf("got: %d; want 12", got)
	}

	server := <-served
	defer server.Destroy()
	if err := server.Call(context.Background(), &got, "double", 10); err != nil {
		t.Fatal(err)
	}
	if got != 20 {
		t.Errorf("got: %d; want 20", got)
	}
}
