package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"go/token"
	"reflect"
)

var typeOfError = reflect.TypeOf((*error)(nil)).Elem()
var typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()

// Handler answers a call with JSON-encoded positional arguments.
type Handler interface {
	CallJSON(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error)
}

// HandlerFunc is a raw Handler that decodes its own arguments.
type HandlerFunc func(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error)

// CallJSON calls f(ctx, rawArgs).
func (f HandlerFunc) CallJSON(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error) {
	return f(ctx, rawArgs)
}

// methodArgTypes returns the arg types after skipping the first skip params,
// and whether the first remaining param is a context.Context. Params that can't
// travel over the wire (funcs, chans) are reported as not ok.
func methodArgTypes(methodType reflect.Type, skip int) (argTypes []reflect.Type, hasCtx bool, ok bool) {
	argNum := methodType.NumIn()
	argTypes = make([]reflect.Type, 0, argNum-skip)
	for argPos := skip; argPos < argNum; argPos++ {
		argType := methodType.In(argPos)
		if argPos == skip && argType == typeOfContext {
			hasCtx = true
			continue
		}
		switch argType.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return nil, hasCtx, false
		}
		argTypes = append(argTypes, argType)
	}
	return argTypes, hasCtx, true
}

// methodErrPos returns the return value index position of an error type for
// supported return layouts: (), (interface{}), (error), (interface{}, error)
func methodErrPos(methodType reflect.Type) (int, bool) {
	switch methodType.NumOut() {
	case 0:
		return -1, true
	case 1:
		if methodType.Out(0) == typeOfError {
			// Single error return value
			return 0, true
		}
		// Single non-error return value
		return -1, true
	case 2:
		if methodType.Out(1) == typeOfError {
			// Two return values, one error type
			return 1, true
		}
		// Two return values, no error type, unsupported.
		return -1, false
	}
	return -1, false
}

// Methods returns a mapping of valid method names to Method definitions for a
// instance's receiver. Methods whose params can't be sent over the wire are
// skipped.
func Methods(receiver interface{}) (map[string]*Method, error) {
	kind := reflect.TypeOf(receiver)
	val := reflect.ValueOf(receiver)
	if name := reflect.Indirect(val).Type().Name(); !token.IsExported(name) {
		return nil, fmt.Errorf("receiver must be exported: %s", name)
	}

	methods := map[string]*Method{}
	for i := 0; i < kind.NumMethod(); i++ {
		method := kind.Method(i)
		if method.PkgPath != "" {
			// Skip unexported methods
			continue
		}
		if method.Type.IsVariadic() {
			continue
		}

		// Load arg types (skip first arg, the receiver)
		argTypes, hasCtx, ok := methodArgTypes(method.Type, 1)
		if !ok {
			continue
		}

		errPos, ok := methodErrPos(method.Type)
		if !ok {
			return nil, fmt.Errorf("unsupported return values in method: %s", method.Name)
		}

		methods[method.Name] = &Method{
			Name:     method.Name,
			Func:     method.Func,
			Receiver: val,
			ArgTypes: argTypes,
			ErrPos:   errPos,
			HasCtx:   hasCtx,
		}
	}

	return methods, nil
}

// NewMethod wraps a plain function as a Method. The function may take a
// leading context.Context and must return (), (T), (error) or (T, error).
func NewMethod(fn interface{}) (*Method, error) {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return nil, fmt.Errorf("handler must be a function, got: %T", fn)
	}
	fnType := val.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic handlers are not supported: %s", fnType)
	}
	argTypes, hasCtx, ok := methodArgTypes(fnType, 0)
	if !ok {
		return nil, fmt.Errorf("unsupported argument types in handler: %s", fnType)
	}
	errPos, ok := methodErrPos(fnType)
	if !ok {
		return nil, fmt.Errorf("unsupported return values in handler: %s", fnType)
	}
	return &Method{
		Name:     fnType.String(),
		Func:     val,
		ArgTypes: argTypes,
		ErrPos:   errPos,
		HasCtx:   hasCtx,
	}, nil
}

// Method is the definition of a callable method or function.
type Method struct {
	Name     string
	Func     reflect.Value
	Receiver reflect.Value // Invalid for plain functions
	ArgTypes []reflect.Type
	ErrPos   int
	HasCtx   bool
}

var _ Handler = &Method{}

// CallJSON wraps Call but supports JSON-encoded args
func (m *Method) CallJSON(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error) {
	args, err := parsePositionalArguments(rawArgs, m.ArgTypes)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, args)
}

// Call executes the method with the given arguments.
func (m *Method) Call(ctx context.Context, args []reflect.Value) (interface{}, error) {
	if len(args) != len(m.ArgTypes) {
		return nil, fmt.Errorf("invalid number of args: expected %d, got %d", len(m.ArgTypes), len(args))
	}

	arguments := make([]reflect.Value, 0, len(args)+2)
	if m.Receiver.IsValid() {
		arguments = append(arguments, m.Receiver)
	}
	if m.HasCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		arguments = append(arguments, reflect.ValueOf(ctx))
	}
	arguments = append(arguments, args...)

	reply := m.Func.Call(arguments)

	// Are there any return values?
	if len(reply) == 0 {
		return nil, nil
	}
	// Is there an error return value?
	if m.ErrPos >= 0 && !reply[m.ErrPos].IsNil() {
		return nil, reply[m.ErrPos].Interface().(error)
	}
	if m.ErrPos == 0 {
		// Only an error was returned
		return nil, nil
	}

	// All is good, assume the first result is what we want to return
	return reply[0].Interface(), nil
}
