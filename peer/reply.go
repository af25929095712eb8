package peer

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// newReply builds the single response for a request. Exactly one of Data or
// Error is set: a result that fails to encode becomes an error response.
func newReply(req *Message, result interface{}, err error) *Message {
	resp := &Message{
		Kind: KindResponse,
		ID:   req.ID,
		Fn:   req.Fn,
	}
	if err == nil {
		resp.Data, err = json.Marshal(result)
		if err != nil {
			err = errors.Wrapf(err, "failed to encode result of %s", req.Fn)
		}
	}
	if err != nil {
		resp.Data = nil
		resp.Error = SerializeError(err)
	}
	return resp
}
