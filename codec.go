package jembatan

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// Payload formats understood by CodecFor.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Codec turns payloads into bytes and back.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) ContentType() string                { return "application/json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type XMLCodec struct{}

func (XMLCodec) ContentType() string                { return "application/xml" }
func (XMLCodec) Marshal(v any) ([]byte, error)      { return xml.Marshal(v) }
func (XMLCodec) Unmarshal(data []byte, v any) error { return xml.Unmarshal(data, v) }

// CodecFor returns the codec for a format name. An empty name means JSON.
func CodecFor(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return JSONCodec{}, nil
	case FormatXML:
		return XMLCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// encodeBody serializes a POST payload. Raw bytes and strings are sent as is.
func encodeBody(codec Codec, body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return codec.Marshal(body)
	}
}

// decodeBody fills out from data. A nil out or an empty body leaves out
// untouched; *[]byte and *string receive the raw body.
func decodeBody(codec Codec, data []byte, out any) error {
	switch v := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*v = append((*v)[:0], data...)
		return nil
	case *string:
		*v = string(data)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	return codec.Unmarshal(data, out)
}
