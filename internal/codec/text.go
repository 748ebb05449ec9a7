package codec

import "unicode/utf8"

// Text stores strings as their raw UTF-8 bytes, which is what most other
// clients write. It is used for values the tagged codec cannot read.
type Text struct{}

// NewText creates the plain text codec
func NewText() *Text {
	return &Text{}
}

func (t *Text) Name() string { return TextName }

func (t *Text) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out, nil
	default:
		return nil, unsupported(TextName, "type %T is not text", v)
	}
}

func (t *Text) Decode(b []byte) (any, error) {
	if !utf8.Valid(b) {
		return nil, malformed(TextName, "bytes are not valid UTF-8")
	}
	return string(b), nil
}
