package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vipnode/peerrpc/peer"
)

var typeOfError = reflect.TypeOf((*error)(nil)).Elem()
var typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()
var typeOfTeardown = reflect.TypeOf(Teardown(nil))

// SubscribeArgs is the wire form of a subscription's arguments. Callback
// positions are sent as null and listed in Callbacks.
type SubscribeArgs struct {
	Args      []json.RawMessage `json:"args"`
	Callbacks []int             `json:"callbacks"`
}

// toSubscribeArgs splits args into plain values and callbacks. Every callback
// must be a function accepted by peer.NewMethod.
func toSubscribeArgs(args []interface{}) (SubscribeArgs, map[int]*peer.Method, error) {
	subArgs := SubscribeArgs{
		Args:      make([]json.RawMessage, 0, len(args)),
		Callbacks: []int{},
	}
	callbacks := map[int]*peer.Method{}
	for i, arg := range args {
		if arg != nil && reflect.TypeOf(arg).Kind() == reflect.Func {
			m, err := peer.NewMethod(arg)
			if err != nil {
				return subArgs, nil, fmt.Errorf("invalid callback argument %d: %s", i, err)
			}
			callbacks[i] = m
			subArgs.Callbacks = append(subArgs.Callbacks, i)
			subArgs.Args = append(subArgs.Args, json.RawMessage("null"))
			continue
		}
		raw, err := json.Marshal(arg)
		if err != nil {
			return subArgs, nil, fmt.Errorf("failed to encode argument %d: %s", i, err)
		}
		subArgs.Args = append(subArgs.Args, raw)
	}
	return subArgs, callbacks, nil
}

// Callback invokes a subscriber's callback remotely. It returns once the
// subscriber has run the callback.
type Callback func(ctx context.Context, args ...interface{}) error

// Args is the argument list of an inbound subscription, as seen by a
// publisher.
type Args struct {
	raw       []json.RawMessage
	callbacks map[int]Callback
}

// Len returns the number of positional arguments, callbacks included.
func (a *Args) Len() int {
	return len(a.raw)
}

// Decode unmarshals the plain argument at position i into v.
func (a *Args) Decode(i int, v interface{}) error {
	if i < 0 || i >= len(a.raw) {
		return fmt.Errorf("argument %d out of range", i)
	}
	if _, ok := a.callbacks[i]; ok {
		return fmt.Errorf("argument %d is a callback", i)
	}
	return json.Unmarshal(a.raw[i], v)
}

// Callback returns the callback at position i.
func (a *Args) Callback(i int) (Callback, bool) {
	cb, ok := a.callbacks[i]
	return cb, ok
}

// publisherFunc turns a publisher function into a PublishFunc. fn takes an
// optional leading context.Context followed by JSON-decodable values and
// callbacks, and returns (Teardown) or (Teardown, error). Callbacks take
// JSON-encodable values and return nothing or an error.
func publisherFunc(fn interface{}) (PublishFunc, error) {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return nil, fmt.Errorf("publisher must be a function, got: %T", fn)
	}
	fnType := val.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic publishers are not supported: %s", fnType)
	}

	switch {
	case fnType.NumOut() == 1 && fnType.Out(0).ConvertibleTo(typeOfTeardown):
	case fnType.NumOut() == 2 && fnType.Out(0).ConvertibleTo(typeOfTeardown) && fnType.Out(1) == typeOfError:
	default:
		return nil, fmt.Errorf("publisher must return (Teardown) or (Teardown, error): %s", fnType)
	}

	skip := 0
	if fnType.NumIn() > 0 && fnType.In(0) == typeOfContext {
		skip = 1
	}
	argTypes := make([]reflect.Type, 0, fnType.NumIn()-skip)
	for i := skip; i < fnType.NumIn(); i++ {
		argType := fnType.In(i)
		switch argType.Kind() {
		case reflect.Func:
			if err := checkCallbackType(argType); err != nil {
				return nil, fmt.Errorf("argument %d: %s", i-skip, err)
			}
		case reflect.Chan, reflect.UnsafePointer:
			return nil, fmt.Errorf("unsupported argument type in publisher: %s", argType)
		}
		argTypes = append(argTypes, argType)
	}

	return func(ctx context.Context, args *Args) (Teardown, error) {
		if args.Len() != len(argTypes) {
			return nil, fmt.Errorf("wrong number of arguments: expected %d, got %d", len(argTypes), args.Len())
		}
		in := make([]reflect.Value, 0, fnType.NumIn())
		if skip == 1 {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, argType := range argTypes {
			cb, isCallback := args.Callback(i)
			if argType.Kind() == reflect.Func {
				if !isCallback {
					return nil, fmt.Errorf("argument %d must be a callback", i)
				}
				in = append(in, callbackStub(argType, cb))
				continue
			}
			if isCallback {
				return nil, fmt.Errorf("argument %d must not be a callback", i)
			}
			value := reflect.New(argType)
			if err := args.Decode(i, value.Interface()); err != nil {
				return nil, fmt.Errorf("invalid argument %d: %s", i, err)
			}
			in = append(in, value.Elem())
		}

		out := val.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		if out[0].IsNil() {
			return nil, nil
		}
		return out[0].Convert(typeOfTeardown).Interface().(Teardown), nil
	}, nil
}

func checkCallbackType(t reflect.Type) error {
	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == typeOfError:
	default:
		return fmt.Errorf("callback must return nothing or an error: %s", t)
	}
	for i := 0; i < t.NumIn(); i++ {
		switch t.In(i).Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return fmt.Errorf("unsupported callback argument type: %s", t.In(i))
		}
	}
	return nil
}

// callbackStub builds a function of type t that forwards its arguments to cb.
// Emit failures are returned when t has an error result, and logged otherwise.
func callbackStub(t reflect.Type, cb Callback) reflect.Value {
	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		args := make([]interface{}, 0, len(in))
		for _, v := range in {
			if v.Type() == typeOfContext {
				if c, ok := v.Interface().(context.Context); ok {
					ctx = c
				}
				continue
			}
			args = append(args, v.Interface())
		}
		err := cb(ctx, args...)
		if t.NumOut() == 0 {
			if err != nil {
				logger.Printf("callback failed: %s", err)
			}
			return nil
		}
		errVal := reflect.New(typeOfError).Elem()
		if err != nil {
			errVal.Set(reflect.ValueOf(err))
		}
		return []reflect.Value{errVal}
	})
}
