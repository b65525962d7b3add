package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

type jsonCodec struct{}

// Decode reads one JSON document keeping object keys in document order.
// Empty input is null.
func (jsonCodec) Decode(data []byte) (types.Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return types.Null, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSON(dec)
	if err != nil {
		return types.Null, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.Null, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func (jsonCodec) Encode(v types.Value) ([]byte, error) {
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DecodeJSON decodes a single JSON document.
func DecodeJSON(data []byte) (types.Value, error) {
	return jsonCodec{}.Decode(data)
}

func readJSON(dec *json.Decoder) (types.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return types.Null, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return types.ValueFromGo(tok), nil
	}
	switch delim {
	case '{':
		m := types.NewOrderedMap()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return types.Null, err
			}
			key, _ := kt.(string)
			v, err := readJSON(dec)
			if err != nil {
				return types.Null, err
			}
			m.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return types.Null, err
		}
		return types.NewMap(m), nil
	case '[':
		items := []types.Value{}
		for dec.More() {
			v, err := readJSON(dec)
			if err != nil {
				return types.Null, err
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return types.Null, err
		}
		return types.NewList(items), nil
	}
	return types.Null, fmt.Errorf("unexpected delimiter %q", delim)
}
