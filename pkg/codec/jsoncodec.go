// pkg/codec/jsoncodec.go
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Codec turns method params and results into wire bytes for one content type.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

// ErrTrailingContent is returned when a body holds more than one value.
var ErrTrailingContent = errors.New("json trailing content")

type jsonStrict struct{}

// JSONStrict is the default route codec.
var JSONStrict Codec = jsonStrict{}

// Marshal leaves <, > and & unescaped; results are not embedded in HTML.
func (jsonStrict) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal rejects unknown struct fields and anything after the first value.
// Syntax errors carry the byte offset.
func (jsonStrict) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return fmt.Errorf("json decode at offset %d: %w", se.Offset, err)
		}
		return fmt.Errorf("json decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingContent
	}
	return nil
}

func (jsonStrict) ContentType() string { return "application/json" }
