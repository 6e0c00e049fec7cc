// Package schema generates JSON Schemas for tool parameters from Go types.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Reflector is configured for tool parameter schemas.
// DoNotReference inlines all definitions to avoid $ref.
var Reflector = &jsonschema.Reflector{
	DoNotReference: true,
}

// Reflect returns the schema of T without the $schema and $id headers,
// which the API does not accept inside a function declaration.
//
// Example:
//
//	type WeatherInput struct {
//	    Location string `json:"location" jsonschema:"required,description=City name"`
//	    Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
//	}
//
//	s := schema.Reflect[WeatherInput]()
func Reflect[T any]() *jsonschema.Schema {
	var zero T
	return strip(Reflector.Reflect(&zero))
}

// ReflectValue is like Reflect for a value whose type is only known at run time.
func ReflectValue(v any) *jsonschema.Schema {
	return strip(Reflector.Reflect(v))
}

// Generate returns the encoded schema of T.
func Generate[T any]() (json.RawMessage, error) {
	return json.Marshal(Reflect[T]())
}

// MustGenerate is like Generate but panics on error.
func MustGenerate[T any]() json.RawMessage {
	s, err := Generate[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// FromJSON decodes an arbitrary JSON Schema document, such as one received
// from another system. Anything undecodable falls back to an empty object
// schema.
func FromJSON(raw []byte) *jsonschema.Schema {
	var s jsonschema.Schema
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return &jsonschema.Schema{Type: "object"}
	}
	return strip(&s)
}

func strip(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil {
		return &jsonschema.Schema{Type: "object"}
	}
	s.Version = ""
	s.ID = ""
	return s
}
