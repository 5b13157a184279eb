package codec

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type yamlCodec struct{}

var YAML Codec = yamlCodec{}

func (yamlCodec) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("yaml decode: %w", err)
	}
	return nil
}

func (yamlCodec) ContentType() string { return "application/yaml" }
