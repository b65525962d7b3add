package codec

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

type xmlCodec struct{}

// Decode parses an XML document into an XMLNode for its root element.
func (xmlCodec) Decode(data []byte) (types.Value, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return types.Null, err
	}
	if doc.Root() == nil {
		return types.Null, nil
	}
	return types.NewOpaque(&XMLNode{elem: doc.Root()}), nil
}

// Encode writes an XMLNode as is. A map with a single key becomes an element
// of that name; any other map is wrapped in <root>. Nested maps become child
// elements, lists repeat their element and scalars become text.
func (xmlCodec) Encode(v types.Value) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	switch {
	case v.Type() == types.TypeOpaque:
		node, ok := v.AsOpaque().(*XMLNode)
		if !ok {
			return nil, types.NewConversionError(XML, "cannot encode "+v.AsOpaque().TypeName()+" as XML")
		}
		doc.SetRoot(node.elem.Copy())
	case v.Type() == types.TypeMap && v.AsMap().Len() == 1:
		k := v.AsMap().Keys()[0]
		item, _ := v.AsMap().Get(k)
		buildElement(doc.CreateElement(k), item)
	case v.Type() == types.TypeNull:
		return nil, types.NewConversionError(XML, "cannot encode null as XML")
	default:
		buildElement(doc.CreateElement("root"), v)
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

func buildElement(e *etree.Element, v types.Value) {
	switch v.Type() {
	case types.TypeMap:
		m := v.AsMap()
		for _, k := range m.Keys() {
			item, _ := m.Get(k)
			if strings.HasPrefix(k, "@") {
				e.CreateAttr(k[1:], Stringify(item))
				continue
			}
			if item.IsCollection() {
				for _, each := range item.AsList() {
					buildElement(e.CreateElement(k), each)
				}
				continue
			}
			buildElement(e.CreateElement(k), item)
		}
	case types.TypeList, types.TypeSet:
		for _, item := range v.AsList() {
			buildElement(e.CreateElement("item"), item)
		}
	case types.TypeOpaque:
		if node, ok := v.AsOpaque().(*XMLNode); ok {
			e.AddChild(node.elem.Copy())
			return
		}
		e.SetText(v.String())
	default:
		e.SetText(Stringify(v))
	}
}

// XMLNode exposes an XML element to scripts. Its fields are tag, text,
// attributes and children; any other name reads the first child element
// with that tag, or an attribute when prefixed with @.
type XMLNode struct {
	elem *etree.Element
}

// Element returns the underlying element.
func (n *XMLNode) Element() *etree.Element {
	return n.elem
}

func (n *XMLNode) TypeName() string { return "xml" }

func (n *XMLNode) String() string {
	doc := etree.NewDocument()
	doc.SetRoot(n.elem.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return "<" + n.elem.Tag + ">"
	}
	return s
}

func (n *XMLNode) Fields() []string {
	return []string{"tag", "text", "attributes", "children"}
}

func (n *XMLNode) Field(name string) (types.Value, bool) {
	switch name {
	case "tag":
		return types.NewString(n.elem.Tag), true
	case "text":
		return types.NewString(strings.TrimSpace(n.elem.Text())), true
	case "attributes":
		m := types.NewOrderedMap()
		for _, a := range n.elem.Attr {
			m.Set(a.Key, types.NewString(a.Value))
		}
		return types.NewMap(m), true
	case "children":
		return nodeList(n.elem.ChildElements()), true
	}
	if strings.HasPrefix(name, "@") {
		if a := n.elem.SelectAttr(name[1:]); a != nil {
			return types.NewString(a.Value), true
		}
		return types.Null, false
	}
	if child := n.elem.SelectElement(name); child != nil {
		return types.NewOpaque(&XMLNode{elem: child}), true
	}
	return types.Null, false
}

func (n *XMLNode) SetField(name string, v types.Value) bool {
	switch {
	case name == "text":
		n.elem.SetText(Stringify(v))
	case name == "tag":
		n.elem.Tag = Stringify(v)
	case strings.HasPrefix(name, "@"):
		n.elem.CreateAttr(name[1:], Stringify(v))
	default:
		child := n.elem.SelectElement(name)
		if child == nil {
			child = n.elem.CreateElement(name)
		}
		child.SetText(Stringify(v))
	}
	return true
}

func (n *XMLNode) Members() []types.Member {
	return []types.Member{
		{Name: "find", Arity: 1, Receiver: "xml", Call: func(recv types.Value, args []types.Value) (types.Value, error) {
			node := recv.AsOpaque().(*XMLNode)
			path, err := etree.CompilePath(Stringify(args[0]))
			if err != nil {
				return types.Null, types.NewConversionError(XML, err.Error())
			}
			return nodeList(node.elem.FindElementsPath(path)), nil
		}},
		{Name: "attr", Arity: 1, Receiver: "xml", Call: func(recv types.Value, args []types.Value) (types.Value, error) {
			node := recv.AsOpaque().(*XMLNode)
			if a := node.elem.SelectAttr(Stringify(args[0])); a != nil {
				return types.NewString(a.Value), nil
			}
			return types.Null, nil
		}},
	}
}

func nodeList(elems []*etree.Element) types.Value {
	items := make([]types.Value, len(elems))
	for i, e := range elems {
		items[i] = types.NewOpaque(&XMLNode{elem: e})
	}
	return types.NewList(items)
}
