// Package function declares local Go callables as tools the model can invoke,
// binds tool-call arguments to them and runs them.
package function

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/tghamm/mistral-go/schema"
)

// Invoker runs a declared function against a bound argument bag.
type Invoker func(ctx context.Context, args Args) (any, error)

// Function is a declared callable: its wire description plus the invoker
// that executes it.
type Function struct {
	Name        string
	Description string
	Parameters  []Parameter

	key    string
	schema *jsonschema.Schema
	invoke Invoker
}

// New declares a function outside of any registry.
func New(name, description string, invoke Invoker, params ...Parameter) *Function {
	return &Function{
		Name:        name,
		Description: description,
		Parameters:  params,
		key:         funcKey(name),
		invoke:      invoke,
	}
}

// FromStruct declares a function whose single argument is a struct decoded
// from the call's arguments. The parameter schema is generated from In.
//
// Example:
//
//	type WeatherInput struct {
//	    Location string `json:"location" jsonschema:"required,description=City name"`
//	}
//
//	fn := function.FromStruct("get_weather", "Current weather",
//	    func(ctx context.Context, in WeatherInput) (string, error) {
//	        return "72 degrees and sunny", nil
//	    },
//	)
func FromStruct[In any, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) *Function {
	f := New(name, description, func(ctx context.Context, args Args) (any, error) {
		var in In
		if err := json.Unmarshal(args.JSON(), &in); err != nil {
			return nil, &ArgumentTypeMismatchError{Function: name, Name: "arguments", Want: TypeObject, Got: "object", Cause: err}
		}
		return fn(ctx, in)
	})
	f.schema = schema.Reflect[In]()
	return f
}

// Key returns the identity the function is cached under.
func (f *Function) Key() string {
	return f.key
}

// Schema returns the JSON Schema of the function's parameters.
func (f *Function) Schema() *jsonschema.Schema {
	if f.schema != nil {
		return f.schema
	}
	return parametersSchema(f.Parameters)
}

// WithSchema overrides the generated parameter schema. Arguments are then
// passed through without per-parameter validation.
func (f *Function) WithSchema(s *jsonschema.Schema) *Function {
	f.schema = s
	return f
}

// MarshalJSON encodes the function in the API's tool declaration shape.
func (f *Function) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		Parameters  *jsonschema.Schema `json:"parameters"`
	}{
		Name:        f.Name,
		Description: f.Description,
		Parameters:  f.Schema(),
	})
}

// Invoke binds raw arguments to the declared parameters, runs the callable
// and returns its result as a string.
func (f *Function) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	if f.invoke == nil {
		return "", fmt.Errorf("function %q has no invoker", f.Name)
	}

	args, err := ParseArgs(raw)
	if err != nil {
		return "", fmt.Errorf("function %q: %w", f.Name, err)
	}
	args, err = args.bind(f.Name, f.Parameters)
	if err != nil {
		return "", err
	}

	result, err := f.invoke(ctx, args)
	if err != nil {
		switch err.(type) {
		case *MissingArgumentError, *ArgumentTypeMismatchError:
			return "", err
		}
		return "", &InvocationError{Function: f.Name, Cause: err}
	}
	return Stringify(result)
}

// Stringify converts a callable's result to the text sent back to the model.
// Strings pass through; everything else is encoded as JSON.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case json.RawMessage:
		return string(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(b), nil
}

// Func0 adapts a zero-argument callable.
func Func0[R any](fn func() R) Invoker {
	return func(ctx context.Context, args Args) (any, error) {
		return fn(), nil
	}
}

// Func1 adapts a one-argument callable; the argument binds to the first
// declared parameter.
func Func1[A Value, R any](fn func(A) R) Invoker {
	return func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(a), nil
	}
}

// Func2 adapts a two-argument callable.
func Func2[A, B Value, R any](fn func(A, B) R) Invoker {
	return func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(a, b), nil
	}
}

// Func3 adapts a three-argument callable.
func Func3[A, B, C Value, R any](fn func(A, B, C) R) Invoker {
	return func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := Arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		return fn(a, b, c), nil
	}
}

// Ctx1 adapts a context-aware, fallible one-argument callable.
func Ctx1[A Value, R any](fn func(context.Context, A) (R, error)) Invoker {
	return func(ctx context.Context, args Args) (any, error) {
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a)
	}
}

// Result is the outcome delivered by an asynchronous callable.
type Result[R any] struct {
	Value R
	Err   error
}

// Async adapts a callable that starts work and delivers its outcome on a
// channel. Invocation waits for the outcome or for ctx to be done.
func Async[R any](fn func(ctx context.Context, args Args) <-chan Result[R]) Invoker {
	return func(ctx context.Context, args Args) (any, error) {
		select {
		case res, ok := <-fn(ctx, args):
			if !ok {
				return nil, fmt.Errorf("async result channel closed without a value")
			}
			return res.Value, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Go runs a synchronous callable on its own goroutine, making it
// cancellable through ctx.
func Go[R any](fn func(ctx context.Context, args Args) (R, error)) Invoker {
	return Async(func(ctx context.Context, args Args) <-chan Result[R] {
		ch := make(chan Result[R], 1)
		go func() {
			v, err := fn(ctx, args)
			ch <- Result[R]{Value: v, Err: err}
		}()
		return ch
	})
}
