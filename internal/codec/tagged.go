package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Format constants for the tagged envelope
const (
	FormatVersion = 1
	MaxDepth      = 64
)

// Value tags
const (
	tagNull  = "null"
	tagBool  = "bool"
	tagInt   = "int"
	tagFloat = "float"
	tagStr   = "str"
	tagBytes = "bytes"
	tagUUID  = "uuid"
	tagList  = "list"
	tagMap   = "map"
)

var taggedAPI = sonic.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	ValidateString:        true,
	DisallowUnknownFields: true,
	CopyString:            true,
}.Froze()

type encNode struct {
	T string `json:"t"`
	V any    `json:"v,omitempty"`
}

type encEnvelope struct {
	Version int    `json:"kvc"`
	T       string `json:"t"`
	V       any    `json:"v,omitempty"`
}

type decNode struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

type decEnvelope struct {
	Version *int            `json:"kvc"`
	T       string          `json:"t"`
	V       json.RawMessage `json:"v"`
}

// Tagged is the self-describing JSON codec. Every value carries a type tag so
// integers, floats, bytes and UUIDs survive a round trip unchanged.
//
// Canonical decoded types: nil, bool, int64, float64, string, []byte,
// uuid.UUID, []any and map[string]any.
type Tagged struct{}

// NewTagged creates the tagged codec
func NewTagged() *Tagged {
	return &Tagged{}
}

func (t *Tagged) Name() string { return TaggedName }

// Encode serialises v. Values outside the canonical set, other than the
// integer and string-collection kinds that canonicalise cleanly, are rejected.
func (t *Tagged) Encode(v any) ([]byte, error) {
	n, err := t.toNode(v, 0)
	if err != nil {
		return nil, err
	}

	data, err := taggedAPI.Marshal(encEnvelope{Version: FormatVersion, T: n.T, V: n.V})
	if err != nil {
		return nil, unsupported(TaggedName, "marshal: %v", err)
	}
	return data, nil
}

func (t *Tagged) toNode(v any, depth int) (encNode, error) {
	if depth > MaxDepth {
		return encNode{}, unsupported(TaggedName, "nesting deeper than %d", MaxDepth)
	}

	switch x := v.(type) {
	case nil:
		return encNode{T: tagNull}, nil
	case bool:
		return encNode{T: tagBool, V: x}, nil
	case int:
		return encNode{T: tagInt, V: int64(x)}, nil
	case int8:
		return encNode{T: tagInt, V: int64(x)}, nil
	case int16:
		return encNode{T: tagInt, V: int64(x)}, nil
	case int32:
		return encNode{T: tagInt, V: int64(x)}, nil
	case int64:
		return encNode{T: tagInt, V: x}, nil
	case uint:
		return uintNode(uint64(x))
	case uint8:
		return encNode{T: tagInt, V: int64(x)}, nil
	case uint16:
		return encNode{T: tagInt, V: int64(x)}, nil
	case uint32:
		return encNode{T: tagInt, V: int64(x)}, nil
	case uint64:
		return uintNode(x)
	case float32:
		return floatNode(float64(x))
	case float64:
		return floatNode(x)
	case string:
		if !utf8.ValidString(x) {
			return encNode{}, unsupported(TaggedName, "string is not valid UTF-8, store it as []byte")
		}
		return encNode{T: tagStr, V: x}, nil
	case []byte:
		return encNode{T: tagBytes, V: base64.StdEncoding.EncodeToString(x)}, nil
	case uuid.UUID:
		return encNode{T: tagUUID, V: x.String()}, nil
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return t.toNode(items, depth)
	case []any:
		items := make([]encNode, len(x))
		for i, item := range x {
			n, err := t.toNode(item, depth+1)
			if err != nil {
				return encNode{}, err
			}
			items[i] = n
		}
		return encNode{T: tagList, V: items}, nil
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return t.toNode(m, depth)
	case map[string]any:
		fields := make(map[string]encNode, len(x))
		for k, item := range x {
			if !utf8.ValidString(k) {
				return encNode{}, unsupported(TaggedName, "map key is not valid UTF-8")
			}
			n, err := t.toNode(item, depth+1)
			if err != nil {
				return encNode{}, err
			}
			fields[k] = n
		}
		return encNode{T: tagMap, V: fields}, nil
	default:
		return encNode{}, unsupported(TaggedName, "type %T is not representable", v)
	}
}

func uintNode(x uint64) (encNode, error) {
	if x > math.MaxInt64 {
		return encNode{}, unsupported(TaggedName, "integer %d overflows int64", x)
	}
	return encNode{T: tagInt, V: int64(x)}, nil
}

func floatNode(x float64) (encNode, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return encNode{}, unsupported(TaggedName, "non-finite float %v", x)
	}
	return encNode{T: tagFloat, V: x}, nil
}

// Decode parses a tagged envelope. Anything else is Malformed.
func (t *Tagged) Decode(b []byte) (any, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, malformed(TaggedName, "not a tagged value")
	}

	var env decEnvelope
	if err := taggedAPI.Unmarshal(trimmed, &env); err != nil {
		return nil, malformed(TaggedName, "envelope: %v", err)
	}
	if env.Version == nil {
		return nil, malformed(TaggedName, "missing format version")
	}
	if *env.Version != FormatVersion {
		return nil, malformed(TaggedName, "unsupported format version %d", *env.Version)
	}

	return t.fromNode(decNode{T: env.T, V: env.V}, 0)
}

func (t *Tagged) fromNode(n decNode, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, malformed(TaggedName, "nesting deeper than %d", MaxDepth)
	}

	payload := bytes.TrimSpace(n.V)
	isNull := len(payload) == 0 || bytes.Equal(payload, []byte("null"))

	if n.T == tagNull {
		if !isNull {
			return nil, malformed(TaggedName, "null tag with payload")
		}
		return nil, nil
	}
	if isNull {
		return nil, malformed(TaggedName, "tag %q without payload", n.T)
	}

	switch n.T {
	case tagBool:
		var x bool
		if err := taggedAPI.Unmarshal(payload, &x); err != nil {
			return nil, malformed(TaggedName, "bool payload: %v", err)
		}
		return x, nil
	case tagInt:
		if payload[0] == '"' {
			return nil, malformed(TaggedName, "int payload is a string")
		}
		var x int64
		if err := taggedAPI.Unmarshal(payload, &x); err != nil {
			return nil, malformed(TaggedName, "int payload: %v", err)
		}
		return x, nil
	case tagFloat:
		if payload[0] == '"' {
			return nil, malformed(TaggedName, "float payload is a string")
		}
		var x float64
		if err := taggedAPI.Unmarshal(payload, &x); err != nil {
			return nil, malformed(TaggedName, "float payload: %v", err)
		}
		return x, nil
	case tagStr:
		s, err := stringPayload(payload)
		if err != nil {
			return nil, err
		}
		return s, nil
	case tagBytes:
		s, err := stringPayload(payload)
		if err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, malformed(TaggedName, "bytes payload: %v", err)
		}
		return raw, nil
	case tagUUID:
		s, err := stringPayload(payload)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, malformed(TaggedName, "uuid payload: %v", err)
		}
		return id, nil
	case tagList:
		if payload[0] != '[' {
			return nil, malformed(TaggedName, "list payload is not an array")
		}
		var items []decNode
		if err := taggedAPI.Unmarshal(payload, &items); err != nil {
			return nil, malformed(TaggedName, "list payload: %v", err)
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := t.fromNode(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case tagMap:
		if payload[0] != '{' {
			return nil, malformed(TaggedName, "map payload is not an object")
		}
		var fields map[string]decNode
		if err := taggedAPI.Unmarshal(payload, &fields); err != nil {
			return nil, malformed(TaggedName, "map payload: %v", err)
		}
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			v, err := t.fromNode(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, malformed(TaggedName, "unknown tag %q", n.T)
	}
}

func stringPayload(payload []byte) (string, error) {
	if payload[0] != '"' {
		return "", malformed(TaggedName, "payload is not a string")
	}
	var s string
	if err := taggedAPI.Unmarshal(payload, &s); err != nil {
		return "", malformed(TaggedName, "string payload: %v", err)
	}
	return s, nil
}
