package codec

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const renderIndent = "    "

var textAPI = sonic.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// Render formats a decoded value for display and editing. Strings are shown
// verbatim, bytes as base64, UUIDs in canonical form and everything else as
// indented JSON.
func Render(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case uuid.UUID:
		return x.String()
	}

	out, err := textAPI.MarshalIndent(plain(v), "", renderIndent)
	if err != nil {
		return RenderRaw([]byte(err.Error()))
	}
	return string(out)
}

// RenderRaw formats bytes that could not be decoded
func RenderRaw(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strconv.Quote(string(raw))
}

// ParseRaw reverses RenderRaw for edited text. Raw bytes that were shown
// quoted must come back as one quoted literal.
func ParseRaw(text string, raw []byte) ([]byte, error) {
	if utf8.Valid(raw) {
		return []byte(text), nil
	}
	unquoted, err := strconv.Unquote(strings.TrimSpace(text))
	if err != nil {
		return nil, malformed(TextName, "binary value must stay a quoted literal: %v", err)
	}
	return []byte(unquoted), nil
}

// plain strips codec-only types so the value marshals as ordinary JSON
func plain(v any) any {
	switch x := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case uuid.UUID:
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = plain(item)
		}
		return out
	default:
		return v
	}
}

// ParseText converts edited text back into a value shaped like the original.
// Strings stay strings, bytes are read as base64, UUIDs are parsed, and any
// other original is replaced by the JSON document in text. Inside that
// document a node keeps the original's type where the edit still fits it,
// so an untouched float stays a float and nested bytes stay bytes.
func ParseText(text string, like any) (any, error) {
	switch like.(type) {
	case string:
		return text, nil
	case []byte:
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, malformed(TaggedName, "edited bytes are not base64: %v", err)
		}
		return raw, nil
	case uuid.UUID:
		id, err := uuid.Parse(strings.TrimSpace(text))
		if err != nil {
			return nil, malformed(TaggedName, "edited uuid: %v", err)
		}
		return id, nil
	}

	var parsed any
	if err := textAPI.UnmarshalFromString(text, &parsed); err != nil {
		return nil, malformed(TaggedName, "edited text is not JSON: %v", err)
	}
	return fromJSON(parsed, like)
}

// fromJSON converts a parsed JSON node, following like where it has the
// same position in the original value
func fromJSON(v, like any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if _, isFloat := like.(float64); !isFloat {
			if i, err := x.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := x.Float64()
		if err != nil {
			return nil, malformed(TaggedName, "number out of range: %s", x)
		}
		return f, nil
	case string:
		switch like.(type) {
		case []byte:
			if raw, err := base64.StdEncoding.DecodeString(x); err == nil {
				return raw, nil
			}
		case uuid.UUID:
			if id, err := uuid.Parse(x); err == nil {
				return id, nil
			}
		}
		return x, nil
	case []any:
		likeList, _ := like.([]any)
		for i, item := range x {
			var itemLike any
			if i < len(likeList) {
				itemLike = likeList[i]
			}
			conv, err := fromJSON(item, itemLike)
			if err != nil {
				return nil, err
			}
			x[i] = conv
		}
		return x, nil
	case map[string]any:
		likeMap, _ := like.(map[string]any)
		for k, item := range x {
			conv, err := fromJSON(item, likeMap[k])
			if err != nil {
				return nil, err
			}
			x[k] = conv
		}
		return x, nil
	default:
		return v, nil
	}
}
