// Package trait defines the payload kinds that can be attached to tags and
// markers.
//
// Payload kinds are flat records of fixed-size fields. Every kind used by a
// build must be registered explicitly; kinds are identified by a stable
// structural hash of their name and field layout.
package trait

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spaolacci/murmur3"
)

var (
	// ErrUnknownType is returned for a payload whose kind was never registered.
	ErrUnknownType = errors.New("trait: unknown type")
	// ErrLayoutConflict is returned when a name is registered twice with
	// different layouts.
	ErrLayoutConflict = errors.New("trait: conflicting layout")
	// ErrPayloadSize is returned when a payload does not match its type size.
	ErrPayloadSize = errors.New("trait: payload size mismatch")
)

// Kind is the scalar type of a field.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt32
	KindUint32
	KindFloat32
	KindInt64
	KindFloat64
)

// Size returns the encoded byte size of the kind.
func (k Kind) Size() int {
	switch k {
	case KindBool:
		return 1
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindFloat64:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses the name returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindBool; k <= KindFloat64; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("trait: unknown field kind %q", s)
}

// Field is a named scalar of a payload layout.
type Field struct {
	Name string
	Kind Kind
}

// Type describes the layout of a payload kind.
type Type struct {
	Name   string
	Fields []Field
}

// NumBytes returns the payload size of the type.
func (t Type) NumBytes() int {
	n := 0
	for _, f := range t.Fields {
		n += f.Kind.Size()
	}
	return n
}

// Hash returns the structural hash of the type.
func (t Type) Hash() uint64 {
	h := murmur3.New64()
	_, _ = h.Write([]byte(t.Name))
	for _, f := range t.Fields {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{byte(f.Kind)})
	}
	return h.Sum64()
}

// Validate checks that the type is well formed.
func (t Type) Validate() error {
	if t.Name == "" {
		return errors.New("trait: type name is empty")
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if f.Kind.Size() == 0 {
			return fmt.Errorf("trait: field %s.%s has invalid kind %d", t.Name, f.Name, f.Kind)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("trait: duplicate field %s.%s", t.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Value is a payload instance.
type Value struct {
	Type    string
	Payload []byte
}

// NewValue encodes fields in layout order. Accepted Go types are bool,
// integers and floats; they are converted to the field kind.
func NewValue(t Type, fields ...any) (Value, error) {
	if len(fields) != len(t.Fields) {
		return Value{}, fmt.Errorf("trait: %s has %d fields, got %d values", t.Name, len(t.Fields), len(fields))
	}

	buf := make([]byte, 0, t.NumBytes())
	for i, f := range t.Fields {
		var err error
		buf, err = appendField(buf, f, fields[i])
		if err != nil {
			return Value{}, fmt.Errorf("trait: %s.%s: %w", t.Name, f.Name, err)
		}
	}
	return Value{Type: t.Name, Payload: buf}, nil
}

// MustValue is like NewValue but panics on error.
func MustValue(t Type, fields ...any) Value {
	v, err := NewValue(t, fields...)
	if err != nil {
		panic(err)
	}
	return v
}

func appendField(buf []byte, f Field, v any) ([]byte, error) {
	switch f.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case KindInt32, KindUint32, KindInt64:
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T", v)
		}
		if f.Kind == KindInt64 {
			return binary.LittleEndian.AppendUint64(buf, uint64(n)), nil
		}
		return binary.LittleEndian.AppendUint32(buf, uint32(n)), nil
	case KindFloat32:
		x, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(x))), nil
	case KindFloat64:
		x, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x)), nil
	default:
		return nil, fmt.Errorf("invalid kind %d", f.Kind)
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// Decode returns the field values of payload in layout order, as bool,
// int32, uint32, float32, int64 or float64.
func (t Type) Decode(payload []byte) ([]any, error) {
	if len(payload) != t.NumBytes() {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrPayloadSize, t.Name, len(payload), t.NumBytes())
	}

	values := make([]any, 0, len(t.Fields))
	off := 0
	for _, f := range t.Fields {
		b := payload[off : off+f.Kind.Size()]
		off += f.Kind.Size()

		switch f.Kind {
		case KindBool:
			values = append(values, b[0] != 0)
		case KindInt32:
			values = append(values, int32(binary.LittleEndian.Uint32(b)))
		case KindUint32:
			values = append(values, binary.LittleEndian.Uint32(b))
		case KindFloat32:
			values = append(values, math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case KindInt64:
			values = append(values, int64(binary.LittleEndian.Uint64(b)))
		case KindFloat64:
			values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	}
	return values, nil
}

// Format renders a payload as "name=value" pairs in layout order.
func (t Type) Format(payload []byte) (string, error) {
	values, err := t.Decode(payload)
	if err != nil {
		return "", err
	}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = t.Fields[i].Name + "=" + fmt.Sprint(v)
	}
	return strings.Join(parts, " "), nil
}
