package main

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/vipnode/peerrpc/kvstore"
	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/peer/ws"
	"github.com/vipnode/peerrpc/peer/ws/gorilla"
	"github.com/vipnode/peerrpc/pubsub"
)

// server serves one peer per websocket connection, each exposing the same
// kvstore service.
type server struct {
	ws       ws.Upgrader
	service  *kvstore.Service
	debugLog bool
	header   http.Header
}

func isUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		return
	}
	if !isUpgrade(r) {
		http.Error(w, "incorrect peerrpc api handshake", http.StatusBadRequest)
		return
	}

	codec, err := s.ws.Upgrade(r, w, s.header)
	if err != nil {
		logger.Debugf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
		return
	}
	defer codec.Close()
	if s.debugLog {
		codec = peer.DebugCodec(r.RemoteAddr, codec)
	}

	transport := peer.NewCodecTransport(codec)
	manager := pubsub.New(peer.New(transport))
	defer manager.Destroy()
	if err := kvstore.Serve(s.service, manager.Peer(), manager); err != nil {
		logger.Errorf("failed to serve kvstore to %s: %s", r.RemoteAddr, err)
		return
	}
	logger.Infof("New connection from %s", r.RemoteAddr)
	go s.hello(manager.Peer(), r.RemoteAddr)

	if err := transport.Serve(); err != nil && err != io.EOF && !gorilla.IsClosed(err) {
		logger.Warningf("peer.CodecTransport.Serve() error from %s: %s", r.RemoteAddr, err)
	}
	logger.Infof("Closed connection from %s", r.RemoteAddr)
}

// hello calls back into the connected client, which answers with its version.
func (s *server) hello(p *peer.Peer, remoteAddr string) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	var clientVersion string
	if err := p.Call(ctx, &clientVersion, "client_hello", Version); err != nil {
		logger.Debugf("client_hello to %s failed: %s", remoteAddr, err)
		return
	}
	logger.Infof("Client %s is running version %s", remoteAddr, clientVersion)
}
