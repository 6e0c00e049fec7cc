package function

import (
	"github.com/invopop/jsonschema"
)

// Type is the JSON-Schema type of a declared parameter.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Parameter describes one named argument of a declared function.
type Parameter struct {
	Name        string
	Description string
	Type        Type
	Required    bool

	// Enum restricts a string parameter to a fixed set of values.
	Enum []string

	// Default is used when an optional parameter is absent from the call.
	Default any
}

// String declares a string parameter.
func String(name, description string, required bool) Parameter {
	return Parameter{Name: name, Description: description, Type: TypeString, Required: required}
}

// Number declares a floating point parameter.
func Number(name, description string, required bool) Parameter {
	return Parameter{Name: name, Description: description, Type: TypeNumber, Required: required}
}

// Integer declares an integer parameter.
func Integer(name, description string, required bool) Parameter {
	return Parameter{Name: name, Description: description, Type: TypeInteger, Required: required}
}

// Boolean declares a boolean parameter.
func Boolean(name, description string, required bool) Parameter {
	return Parameter{Name: name, Description: description, Type: TypeBoolean, Required: required}
}

// Object declares a free-form object parameter.
func Object(name, description string, required bool) Parameter {
	return Parameter{Name: name, Description: description, Type: TypeObject, Required: required}
}

// Enum declares a string parameter restricted to values.
func Enum(name, description string, required bool, values ...string) Parameter {
	return Parameter{Name: name, Description: description, Type: TypeString, Required: required, Enum: values}
}

// WithDefault returns a copy of p that falls back to v when absent.
func (p Parameter) WithDefault(v any) Parameter {
	p.Default = v
	return p
}

func (p Parameter) schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        string(p.Type),
		Description: p.Description,
	}
	if s.Type == "" {
		s.Type = string(TypeString)
	}
	if len(p.Enum) > 0 {
		s.Type = string(TypeString)
		s.Enum = make([]any, len(p.Enum))
		for i, v := range p.Enum {
			s.Enum[i] = v
		}
	}
	return s
}

// parametersSchema renders an ordered parameter list as an object schema.
func parametersSchema(params []Parameter) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       string(TypeObject),
		Properties: jsonschema.NewProperties(),
		Required:   []string{},
	}
	for _, p := range params {
		s.Properties.Set(p.Name, p.schema())
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}
