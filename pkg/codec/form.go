package codec

import (
	"net/url"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

type formCodec struct{}

// Decode reads key=value pairs joined by &. A key without = is true, values
// are decoded with DecodeQueryValue and repeated keys accumulate into a list.
func (formCodec) Decode(data []byte) (types.Value, error) {
	m := types.NewOrderedMap()
	for _, entry := range strings.Split(strings.TrimSpace(string(data)), "&") {
		if entry == "" {
			continue
		}
		rawKey, rawValue, hasValue := strings.Cut(entry, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return types.Null, err
		}
		value := types.NewBool(true)
		if hasValue {
			text, err := url.QueryUnescape(rawValue)
			if err != nil {
				return types.Null, err
			}
			value = DecodeQueryValue(text)
		}
		if prev, ok := m.Get(key); ok {
			if prev.Type() == types.TypeList {
				value = types.NewList(append(prev.AsList(), value))
			} else {
				value = types.NewList([]types.Value{prev, value})
			}
		}
		m.Set(key, value)
	}
	return types.NewMap(m), nil
}

// Encode writes a map as a query string. Lists repeat their key.
func (formCodec) Encode(v types.Value) ([]byte, error) {
	if v.Type() != types.TypeMap {
		return nil, types.NewConversionError(Form, "query string data to encode must be a map, got "+v.Type().String())
	}
	m := v.AsMap()
	var entries []string
	for _, k := range m.Keys() {
		item, _ := m.Get(k)
		values := []types.Value{item}
		if item.IsCollection() {
			values = item.AsList()
		}
		for _, value := range values {
			entries = append(entries, url.QueryEscape(k)+"="+url.QueryEscape(convert.ToString(value)))
		}
	}
	return []byte(strings.Join(entries, "&")), nil
}

// DecodeQueryValue types a query-string value: null, true and false,
// integers and reals, bracketed or quoted JSON, comma lists of those, and
// otherwise text.
func DecodeQueryValue(s string) types.Value {
	trimmed := strings.TrimSpace(s)
	switch trimmed {
	case "null":
		return types.Null
	case "true":
		return types.NewBool(true)
	case "false":
		return types.NewBool(false)
	}
	if n, ok := convert.ParseNumber(trimmed); ok {
		return n
	}
	if trimmed != "" && strings.ContainsRune("[{\"", rune(trimmed[0])) {
		if v, err := DecodeJSON([]byte(trimmed)); err == nil {
			return v
		}
	}
	if strings.Contains(trimmed, ",") {
		parts := strings.Split(trimmed, ",")
		items := make([]types.Value, len(parts))
		for i, part := range parts {
			items[i] = DecodeQueryValue(part)
		}
		return types.NewList(items)
	}
	return types.NewString(s)
}
