package function

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Args is the argument bag of a single tool call: the JSON object the model
// supplied, bound to the parameters of the function being invoked.
type Args struct {
	function string
	raw      string
	fields   map[string]gjson.Result
	params   []Parameter
}

// ParseArgs parses tool-call arguments. Absent, null and empty-string
// arguments yield an empty bag. A JSON string holding an object is unwrapped,
// since the API transmits arguments either way.
func ParseArgs(raw json.RawMessage) (Args, error) {
	return parseArgs(raw, true)
}

func parseArgs(raw []byte, unwrap bool) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return emptyArgs(), nil
	}
	if !gjson.ValidBytes(trimmed) {
		return Args{}, fmt.Errorf("%w: invalid JSON", ErrInvalidArguments)
	}

	res := gjson.ParseBytes(trimmed)
	switch {
	case res.Type == gjson.Null:
		return emptyArgs(), nil
	case res.Type == gjson.String && unwrap:
		if strings.TrimSpace(res.Str) == "" {
			return emptyArgs(), nil
		}
		return parseArgs([]byte(res.Str), false)
	case res.IsObject():
		fields := make(map[string]gjson.Result)
		res.ForEach(func(key, value gjson.Result) bool {
			fields[key.String()] = value
			return true
		})
		return Args{raw: res.Raw, fields: fields}, nil
	default:
		return Args{}, fmt.Errorf("%w: got %s", ErrInvalidArguments, kindOf(res))
	}
}

func emptyArgs() Args {
	return Args{raw: "{}", fields: map[string]gjson.Result{}}
}

// bind attaches the declared parameters and checks presence and types.
func (a Args) bind(function string, params []Parameter) (Args, error) {
	a.function = function
	a.params = params
	for _, p := range params {
		v, ok := a.fields[p.Name]
		if !ok || v.Type == gjson.Null {
			if p.Required {
				return a, &MissingArgumentError{Function: function, Name: p.Name}
			}
			continue
		}
		if _, err := coerce(v, p.Type); err != nil {
			return a, a.mismatch(p.Name, p.Type, v, err)
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, v.String()) {
			return a, a.mismatch(p.Name, p.Type, v, fmt.Errorf("value %q is not one of %v", v.String(), p.Enum))
		}
	}
	return a, nil
}

// Len returns the number of supplied arguments.
func (a Args) Len() int {
	return len(a.fields)
}

// Has reports whether name was supplied with a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a.fields[name]
	return ok && v.Type != gjson.Null
}

// JSON returns the argument object as raw JSON.
func (a Args) JSON() json.RawMessage {
	if a.raw == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(a.raw)
}

// Map returns the arguments as generic Go values.
func (a Args) Map() map[string]any {
	out := make(map[string]any, len(a.fields))
	for k, v := range a.fields {
		out[k] = v.Value()
	}
	return out
}

// At returns the declared parameter at position i.
func (a Args) At(i int) (Parameter, bool) {
	if i < 0 || i >= len(a.params) {
		return Parameter{}, false
	}
	return a.params[i], true
}

// String returns the named argument coerced to a string.
func (a Args) String(name string) (string, error) {
	v, err := a.coerced(name, TypeString)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Float returns the named argument coerced to a number.
func (a Args) Float(name string) (float64, error) {
	v, err := a.coerced(name, TypeNumber)
	if err != nil {
		return 0, err
	}
	f, _ := v.(float64)
	return f, nil
}

// Int returns the named argument coerced to an integer.
func (a Args) Int(name string) (int64, error) {
	v, err := a.coerced(name, TypeInteger)
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

// Bool returns the named argument coerced to a boolean.
func (a Args) Bool(name string) (bool, error) {
	v, err := a.coerced(name, TypeBoolean)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// Object returns the named argument as a JSON object.
func (a Args) Object(name string) (map[string]any, error) {
	v, err := a.coerced(name, TypeObject)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}

// Array returns the named argument as a JSON array.
func (a Args) Array(name string) ([]any, error) {
	v, err := a.coerced(name, TypeArray)
	if err != nil {
		return nil, err
	}
	s, _ := v.([]any)
	return s, nil
}

func (a Args) param(name string) (Parameter, bool) {
	for _, p := range a.params {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// value resolves name to the supplied value, or the declared default.
func (a Args) value(name string) (gjson.Result, error) {
	if v, ok := a.fields[name]; ok && v.Type != gjson.Null {
		return v, nil
	}
	p, declared := a.param(name)
	if !declared {
		return gjson.Result{}, nil
	}
	if p.Required {
		return gjson.Result{}, &MissingArgumentError{Function: a.function, Name: name}
	}
	if p.Default == nil {
		return gjson.Result{}, nil
	}
	b, err := json.Marshal(p.Default)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encoding default for %q: %w", name, err)
	}
	return gjson.ParseBytes(b), nil
}

func (a Args) coerced(name string, typ Type) (any, error) {
	v, err := a.value(name)
	if err != nil {
		return nil, err
	}
	out, err := coerce(v, typ)
	if err != nil {
		return nil, a.mismatch(name, typ, v, err)
	}
	return out, nil
}

func (a Args) mismatch(name string, typ Type, v gjson.Result, cause error) error {
	return &ArgumentTypeMismatchError{
		Function: a.function,
		Name:     name,
		Want:     typ,
		Got:      kindOf(v),
		Cause:    cause,
	}
}

func (a Args) overflow(p Parameter, n any, t reflect.Type) error {
	v, _ := a.value(p.Name)
	return a.mismatch(p.Name, p.Type, v, fmt.Errorf("%v overflows %s", n, t))
}

// coerce converts a JSON value to the Go representation of typ.
// Absent values yield the zero value of typ.
func coerce(v gjson.Result, typ Type) (any, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return zeroOf(typ), nil
	}

	switch typ {
	case TypeString:
		switch v.Type {
		case gjson.String:
			return v.Str, nil
		case gjson.Number, gjson.True, gjson.False:
			return v.Raw, nil
		}
	case TypeNumber:
		switch v.Type {
		case gjson.Number:
			return v.Num, nil
		case gjson.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	case TypeInteger:
		var f float64
		switch v.Type {
		case gjson.Number:
			f = v.Num
		case gjson.String:
			s := strings.TrimSpace(v.Str)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, err
			}
			f = parsed
		default:
			return nil, errNotConvertible
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		if f < math.MinInt64 || f >= -math.MinInt64 {
			return nil, fmt.Errorf("%v overflows int64", f)
		}
		return int64(f), nil
	case TypeBoolean:
		switch v.Type {
		case gjson.True:
			return true, nil
		case gjson.False:
			return false, nil
		case gjson.String:
			b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	case TypeObject:
		if v.IsObject() {
			m, _ := v.Value().(map[string]any)
			return m, nil
		}
	case TypeArray:
		if v.IsArray() {
			s, _ := v.Value().([]any)
			return s, nil
		}
	case "":
		return v.Value(), nil
	}
	return nil, errNotConvertible
}

var errNotConvertible = errors.New("not convertible")

func zeroOf(typ Type) any {
	switch typ {
	case TypeString:
		return ""
	case TypeNumber:
		return float64(0)
	case TypeInteger:
		return int64(0)
	case TypeBoolean:
		return false
	default:
		return nil
	}
}

func kindOf(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return "null"
	case v.Type == gjson.String:
		return "string"
	case v.Type == gjson.Number:
		return "number"
	case v.Type == gjson.True, v.Type == gjson.False:
		return "boolean"
	case v.IsArray():
		return "array"
	default:
		return "object"
	}
}

// Value is the set of Go types a positional argument can bind to.
type Value interface {
	~string | ~bool | ~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Arg binds the declared parameter at position i to a Go value of type T.
func Arg[T Value](a Args, i int) (T, error) {
	var zero T
	p, ok := a.At(i)
	if !ok {
		return zero, fmt.Errorf("function %q: no parameter at position %d", a.function, i)
	}

	rv := reflect.ValueOf(&zero).Elem()
	switch rv.Kind() {
	case reflect.String:
		s, err := a.String(p.Name)
		if err != nil {
			return zero, err
		}
		rv.SetString(s)
	case reflect.Bool:
		b, err := a.Bool(p.Name)
		if err != nil {
			return zero, err
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := a.Int(p.Name)
		if err != nil {
			return zero, err
		}
		if rv.OverflowInt(n) {
			return zero, a.overflow(p, n, rv.Type())
		}
		rv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := a.Float(p.Name)
		if err != nil {
			return zero, err
		}
		if rv.OverflowFloat(f) {
			return zero, a.overflow(p, f, rv.Type())
		}
		rv.SetFloat(f)
	}
	return zero, nil
}
