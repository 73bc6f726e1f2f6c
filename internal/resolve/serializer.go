package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/cypherq/internal/value"
)

// Serializer is the external serialization contract used to discover the
// property names a type is stored under.
type Serializer interface {
	// Name keys the wire-name cache of each registered type.
	Name() string

	// Serialize encodes v.
	Serialize(v any) ([]byte, error)

	// Fields decodes the top-level object in data, keeping the order the
	// serializer emitted its fields in.
	Fields(data []byte) (value.Object, error)
}

// JSONSerializer follows the encoding/json contract: json tags rename and
// omit fields.
type JSONSerializer struct{}

func (JSONSerializer) Name() string { return "json" }

func (JSONSerializer) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("json serialize: %w", err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// Fields walks the object token by token so field order survives.
// Numbers decode as json.Number.
func (JSONSerializer) Fields(data []byte) (value.Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("json fields: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("json fields: top-level value is not an object")
	}

	obj := value.Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json fields: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("json fields: unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("json fields: field %s: %w", key, err)
		}
		obj = append(obj, value.Entry{Key: key, Value: v})
	}
	return obj, nil
}

// MsgpackSerializer follows the vmihailenco/msgpack contract. StructTag
// switches the tag msgpack reads field names from ("msgpack" when empty).
type MsgpackSerializer struct {
	StructTag string
}

func (s MsgpackSerializer) Name() string {
	if s.StructTag != "" {
		return "msgpack:" + s.StructTag
	}
	return "msgpack"
}

func (s MsgpackSerializer) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if s.StructTag != "" {
		enc.SetCustomStructTag(s.StructTag)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack serialize: %w", err)
	}
	return buf.Bytes(), nil
}

func (s MsgpackSerializer) Fields(data []byte) (value.Object, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if s.StructTag != "" {
		dec.SetCustomStructTag(s.StructTag)
	}
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, fmt.Errorf("msgpack fields: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("msgpack fields: top-level value is nil")
	}
	obj := make(value.Object, 0, n)
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, fmt.Errorf("msgpack fields: key %d: %w", i, err)
		}
		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("msgpack fields: field %s: %w", key, err)
		}
		obj = append(obj, value.Entry{Key: key, Value: v})
	}
	return obj, nil
}
