// Package ws holds the websocket transports for peer. Each implementation
// lives in its own subpackage so that callers only pull in the websocket
// library they use.
package ws

import (
	"net/http"

	"github.com/vipnode/peerrpc/peer"
)

// Upgrader takes an HTTP request, upgrades it to a websocket server and
// returns a codec interface. This allows switching between different websocket
// implementations.
type Upgrader interface {
	Upgrade(*http.Request, http.ResponseWriter, http.Header) (peer.Codec, error)
}
