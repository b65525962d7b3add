package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/magiconair/properties"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

type propertiesCodec struct{}

// Decode reads a properties file into a map of strings in file order.
// ${key} references are kept literally.
func (propertiesCodec) Decode(data []byte) (types.Value, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return types.Null, err
	}
	m := types.NewOrderedMap()
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		m.Set(k, types.NewString(v))
	}
	return types.NewMap(m), nil
}

// Encode writes a map as properties. Nested maps flatten into dotted keys
// and lists into comma separated values.
func (propertiesCodec) Encode(v types.Value) ([]byte, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true
	switch v.Type() {
	case types.TypeNull:
	case types.TypeMap:
		if err := flatten(p, "", v.AsMap()); err != nil {
			return nil, err
		}
	default:
		return nil, types.NewConversionError(Properties, "properties data to encode must be a map, got "+v.Type().String())
	}
	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flatten(p *properties.Properties, prefix string, m *types.OrderedMap) error {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v.Type() {
		case types.TypeMap:
			if err := flatten(p, key, v.AsMap()); err != nil {
				return err
			}
			continue
		case types.TypeList, types.TypeSet:
			items := v.AsList()
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = Stringify(item)
			}
			if _, _, err := p.Set(key, strings.Join(parts, ",")); err != nil {
				return fmt.Errorf("property %s: %w", key, err)
			}
			continue
		}
		if _, _, err := p.Set(key, Stringify(v)); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	return nil
}
