package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

type yamlCodec struct{}

// Decode reads the first YAML document through yaml.Node so mapping keys
// keep their document order.
func (yamlCodec) Decode(data []byte) (types.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.Null, err
	}
	if doc.Kind == 0 {
		return types.Null, nil
	}
	return fromNode(&doc)
}

func (yamlCodec) Encode(v types.Value) ([]byte, error) {
	return yaml.Marshal(toNode(v))
}

func fromNode(n *yaml.Node) (types.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return types.Null, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]types.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return types.Null, err
			}
			items = append(items, v)
		}
		return types.NewList(items), nil
	case yaml.MappingNode:
		m := types.NewOrderedMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return types.Null, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return types.NewMap(m), nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return types.Null, fmt.Errorf("unsupported YAML node kind %d", n.Kind)
}

func fromScalar(n *yaml.Node) (types.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return types.Null, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return types.Null, err
		}
		return types.NewBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return types.Null, err
		}
		return types.NewInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return types.Null, err
		}
		return types.NewReal(f), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return types.Null, err
		}
		return types.NewDateTime(t), nil
	case "!!binary":
		var b []byte
		if err := n.Decode(&b); err != nil {
			return types.Null, err
		}
		return types.NewBytes(b), nil
	}
	return types.NewString(n.Value), nil
}

func toNode(v types.Value) *yaml.Node {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}
	switch v.Type() {
	case types.TypeNull:
		return scalar("!!null", "null")
	case types.TypeBool:
		return scalar("!!bool", strconv.FormatBool(v.AsBool()))
	case types.TypeInt:
		return scalar("!!int", strconv.FormatInt(v.AsInt(), 10))
	case types.TypeReal:
		return scalar("!!float", formatFloat(v.AsReal()))
	case types.TypeDateTime:
		return scalar("!!timestamp", v.AsDateTime().Format(time.RFC3339Nano))
	case types.TypeBytes:
		return scalar("!!str", string(v.AsBytes()))
	case types.TypeList, types.TypeSet:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.AsList() {
			n.Content = append(n.Content, toNode(item))
		}
		return n
	case types.TypeMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		m := v.AsMap()
		for _, k := range m.Keys() {
			item, _ := m.Get(k)
			n.Content = append(n.Content, scalar("!!str", k), toNode(item))
		}
		return n
	}
	return scalar("!!str", v.String())
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
