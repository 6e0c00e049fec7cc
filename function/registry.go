package function

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Registry caches function declarations by identity. A declaration is built
// the first time its key is referenced and reused until the registry is
// refreshed or cleared.
//
// Keys take one of three forms:
//
//	func/<name>                       ad hoc closures
//	static/<package.Type>/<member>    methods located by type
//	bound/<*package.Type@addr>/<member> methods bound to a receiver
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	build func() *Function
	fn    *Function
}

// Default is the process-wide declaration cache.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Func declares an ad hoc function under its name.
func (r *Registry) Func(name, description string, invoke Invoker, params ...Parameter) *Function {
	return r.declare(funcKey(name), func() *Function {
		return New(name, description, invoke, params...)
	})
}

// Bound declares a method bound to receiver. Receivers are identified by
// address, so two receivers of the same type get separate declarations.
//
// Example:
//
//	svc := &WeatherService{}
//	fn := registry.Bound(svc, "GetWeather", "Current weather",
//	    function.Func1(svc.GetWeather),
//	    function.String("location", "City name", true),
//	)
func (r *Registry) Bound(receiver any, member, description string, invoke Invoker, params ...Parameter) *Function {
	return r.declare(boundKey(receiver, member), func() *Function {
		return New(member, description, invoke, params...)
	})
}

// Static declares a method located by its declaring type T.
func Static[T any](r *Registry, member, description string, invoke Invoker, params ...Parameter) *Function {
	key := staticKey(reflect.TypeFor[T](), member)
	return r.declare(key, func() *Function {
		return New(member, description, invoke, params...)
	})
}

// Add places a pre-built declaration in the registry under its key,
// replacing any existing entry.
func (r *Registry) Add(fns ...*Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range fns {
		r.entries[fn.Key()] = &entry{build: func() *Function { return fn }, fn: fn}
	}
}

func (r *Registry) declare(key string, build func() *Function) *Function {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e.fn
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e.fn
	}
	fn := build()
	fn.key = key
	r.entries[key] = &entry{build: build, fn: fn}
	return fn
}

// Lookup returns the declaration cached under key.
func (r *Registry) Lookup(key string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.fn, true
}

// Get returns a declaration by function name. When several keys share a
// name the lexically first key wins.
func (r *Registry) Get(name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Function
	var foundKey string
	for key, e := range r.entries {
		if e.fn.Name != name {
			continue
		}
		if found == nil || key < foundKey {
			found, foundKey = e.fn, key
		}
	}
	return found, found != nil
}

// Len returns the number of cached declarations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CollectOption configures Collect.
type CollectOption func(*collectConfig)

type collectConfig struct {
	refresh bool
	pattern string
}

// Refresh rebuilds every declaration, ignoring the cache.
func Refresh() CollectOption {
	return func(c *collectConfig) {
		c.refresh = true
	}
}

// Matching restricts Collect to keys matching a doublestar glob, such as
// "static/**" or "**/Get*".
func Matching(pattern string) CollectOption {
	return func(c *collectConfig) {
		c.pattern = pattern
	}
}

// Collect returns the declarations in the registry, sorted by key.
func (r *Registry) Collect(opts ...CollectOption) ([]*Function, error) {
	cfg := &collectConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.pattern != "" && !doublestar.ValidatePattern(cfg.pattern) {
		return nil, fmt.Errorf("invalid pattern %q", cfg.pattern)
	}

	if cfg.refresh {
		r.mu.Lock()
		defer r.mu.Unlock()
		for key, e := range r.entries {
			fn := e.build()
			fn.key = key
			e.fn = fn
		}
	} else {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		if cfg.pattern != "" {
			ok, err := doublestar.Match(cfg.pattern, key)
			if err != nil {
				return nil, fmt.Errorf("matching %q: %w", key, err)
			}
			if !ok {
				continue
			}
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fns := make([]*Function, len(keys))
	for i, key := range keys {
		fns[i] = r.entries[key].fn
	}
	return fns, nil
}

// Clear drops every cached declaration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
}

// Invoke runs the declaration named name.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	fn, ok := r.Get(name)
	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	return fn.Invoke(ctx, args)
}

func funcKey(name string) string {
	return "func/" + name
}

func staticKey(t reflect.Type, member string) string {
	return "static/" + t.String() + "/" + member
}

func boundKey(receiver any, member string) string {
	v := reflect.ValueOf(receiver)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return fmt.Sprintf("bound/%T@%#x/%s", receiver, v.Pointer(), member)
	default:
		return fmt.Sprintf("bound/%T(%v)/%s", receiver, receiver, member)
	}
}
