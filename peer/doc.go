/*
Package peer implements symmetric request/response calls between two
endpoints over any duplex message channel.

Peer is both a caller and an answerer. Handlers are registered by name,
either as plain functions (Handle), raw JSON handlers (HandleFunc) or all
exported methods of a receiver (Register). Call sends a request with a
fresh correlation ID and waits for the matching response. Responses may
arrive in any order; each one resolves only its own call.

Transport is the channel. It only needs to Send messages and deliver
inbound ones to a single Listen callback. Once a Transport is established,
it does not matter which side initiated the connection. Pipe provides an
in-process pair, CodecTransport adapts a Codec (IOCodec for JSON over a
byte stream, or the websocket codecs in peer/ws) into a Transport.

Failures raised by a handler are caught, serialized into an ErrorEnvelope
and returned to the caller, where they surface as a *RemoteError that
carries both the local call site and the remote failure.

When a Peer answers a call, the handler context contains a Service that
can be acquired with CtxService(ctx) to call back the other side.
*/
package peer
