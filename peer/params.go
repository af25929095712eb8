package peer

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// parsePositionalArguments decodes each positional argument into a new value
// of its corresponding type.
func parsePositionalArguments(rawArgs []json.RawMessage, types []reflect.Type) ([]reflect.Value, error) {
	if len(rawArgs) > len(types) {
		return nil, fmt.Errorf("too many arguments: expected %d, got %d", len(types), len(rawArgs))
	}
	if len(rawArgs) < len(types) {
		return nil, fmt.Errorf("not enough arguments: expected %d, got %d", len(types), len(rawArgs))
	}

	values := make([]reflect.Value, 0, len(types))
	for i, raw := range rawArgs {
		value := reflect.New(types[i])
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, value.Interface()); err != nil {
				return nil, fmt.Errorf("invalid argument %d: %s", i, err)
			}
		}
		values = append(values, value.Elem())
	}
	return values, nil
}

// encodeArguments encodes each positional argument for the wire.
func encodeArguments(args []interface{}) ([]json.RawMessage, error) {
	rawArgs := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument %d: %s", i, err)
		}
		rawArgs = append(rawArgs, raw)
	}
	return rawArgs, nil
}
