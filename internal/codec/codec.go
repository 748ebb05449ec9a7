// Package codec converts application values to and from the byte strings kept in the store.
//
// Two codecs ship with the package: a self-describing tagged JSON format, used by default,
// and a plain UTF-8 text codec for values written by other tools.
package codec

import (
	"fmt"
	"strings"

	"redis_browser/pkg"
)

// Codec names accepted by Lookup
const (
	TaggedName = "tagged-json"
	TextName   = "text"
)

// Codec encodes and decodes store values
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// Default returns the tagged codec
func Default() Codec {
	return NewTagged()
}

// Lookup returns the codec registered under name
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TaggedName, "tagged":
		return NewTagged(), nil
	case TextName:
		return NewText(), nil
	default:
		return nil, fmt.Errorf("unknown value codec: %q", name)
	}
}

func malformed(codec, format string, args ...any) error {
	return &pkg.CodecError{Kind: pkg.Malformed, Codec: codec, Reason: fmt.Sprintf(format, args...)}
}

func unsupported(codec, format string, args ...any) error {
	return &pkg.CodecError{Kind: pkg.Unsupported, Codec: codec, Reason: fmt.Sprintf(format, args...)}
}
