package codec

import (
	"bytes"
	"html"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

type htmlCodec struct{}

// Decode parses an HTML document leniently into an HTMLNode.
func (htmlCodec) Decode(data []byte) (types.Value, error) {
	doc, err := xhtml.Parse(bytes.NewReader(data))
	if err != nil {
		return types.Null, err
	}
	return types.NewOpaque(&HTMLNode{node: doc}), nil
}

func (htmlCodec) Encode(v types.Value) ([]byte, error) {
	if v.Type() == types.TypeOpaque {
		if n, ok := v.AsOpaque().(*HTMLNode); ok {
			var buf bytes.Buffer
			if err := xhtml.Render(&buf, n.node); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}
	}
	return []byte(EncodeHTML(v)), nil
}

const tableOpen = "<table border=1 cellspacing=2 cellpadding=2>\n"

// EncodeHTML renders a value as an HTML fragment. A map becomes a two
// column key/value table, a list of maps a table with one header cell per
// discovered field, other lists their items joined by <br>, and scalars
// their escaped text.
func EncodeHTML(v types.Value) string {
	return encodeHTML(v, nil, nil)
}

// encodeHTML follows a three-mode contract. With fields set, a map renders
// the cells of those fields joined by sep, extending fields with keys it has
// not seen. With only sep set, maps render key = value pairs and lists their
// items, joined by sep. With neither, the value renders as a table.
func encodeHTML(v types.Value, sep *string, fields *[]string) string {
	switch v.Type() {
	case types.TypeNull:
		return ""
	case types.TypeMap:
		return encodeHTMLMap(v.AsMap(), sep, fields)
	case types.TypeList, types.TypeSet:
		return encodeHTMLList(v.AsList(), sep, fields)
	case types.TypeOpaque:
		if n, ok := v.AsOpaque().(*HTMLNode); ok {
			return n.String()
		}
	}
	return html.EscapeString(Stringify(v))
}

func encodeHTMLMap(m *types.OrderedMap, sep *string, fields *[]string) string {
	var cells []string
	switch {
	case fields != nil:
		for _, k := range m.Keys() {
			if !contains(*fields, k) {
				*fields = append(*fields, k)
			}
		}
		for _, f := range *fields {
			cell, _ := m.Get(f)
			cells = append(cells, encodeHTML(cell, nil, nil))
		}
		return strings.Join(cells, *sep)
	case sep != nil:
		for _, k := range m.Keys() {
			cell, _ := m.Get(k)
			cells = append(cells, html.EscapeString(k)+" = "+encodeHTML(cell, sep, nil))
		}
		return strings.Join(cells, *sep)
	}
	var b strings.Builder
	b.WriteString(tableOpen)
	for _, k := range m.Keys() {
		cell, _ := m.Get(k)
		b.WriteString("<tr><td>" + html.EscapeString(k) + "</td><td>" + encodeHTML(cell, nil, nil) + "</td></tr>\n")
	}
	b.WriteString("</table>")
	return b.String()
}

func encodeHTMLList(items []types.Value, sep *string, fields *[]string) string {
	if len(items) == 0 {
		return ""
	}
	if sep == nil && fields == nil && items[0].Type() == types.TypeMap {
		var headers []string
		cellSep := "</td><td>"
		rows := make([]string, 0, len(items))
		for _, item := range items {
			if item.Type() != types.TypeMap {
				item = types.NewMap(types.NewOrderedMap())
			}
			rows = append(rows, "<tr><td>"+encodeHTMLMap(item.AsMap(), &cellSep, &headers)+"</td></tr>\n")
		}
		escaped := make([]string, len(headers))
		for i, h := range headers {
			escaped[i] = html.EscapeString(h)
		}
		return tableOpen + "<tr><th>" + strings.Join(escaped, "</th><th>") + "</th></tr>\n" +
			strings.Join(rows, "") + "</table>"
	}
	join := "<br>\n"
	if sep != nil {
		join = *sep
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = encodeHTML(item, nil, nil)
	}
	return strings.Join(parts, join)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// HTMLNode exposes a parsed HTML node to scripts. Its fields are tag, text
// (all descendant text), attributes and children (child elements); any
// other name reads the first descendant element with that tag.
type HTMLNode struct {
	node *xhtml.Node
}

// Node returns the underlying node.
func (n *HTMLNode) Node() *xhtml.Node {
	return n.node
}

func (n *HTMLNode) TypeName() string { return "html" }

func (n *HTMLNode) String() string {
	var buf bytes.Buffer
	if err := xhtml.Render(&buf, n.node); err != nil {
		return "<" + n.node.Data + ">"
	}
	return buf.String()
}

func (n *HTMLNode) Fields() []string {
	return []string{"tag", "text", "attributes", "children"}
}

func (n *HTMLNode) Field(name string) (types.Value, bool) {
	switch name {
	case "tag":
		return types.NewString(n.node.Data), true
	case "text":
		var b strings.Builder
		collectText(n.node, &b)
		return types.NewString(strings.TrimSpace(b.String())), true
	case "attributes":
		m := types.NewOrderedMap()
		for _, a := range n.node.Attr {
			m.Set(a.Key, types.NewString(a.Val))
		}
		return types.NewMap(m), true
	case "children":
		var items []types.Value
		for c := n.node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xhtml.ElementNode {
				items = append(items, types.NewOpaque(&HTMLNode{node: c}))
			}
		}
		return types.NewList(items), true
	}
	if found := findElements(n.node, name, 1); len(found) > 0 {
		return types.NewOpaque(&HTMLNode{node: found[0]}), true
	}
	return types.Null, false
}

// SetField replaces the text content of the node for "text"; other fields
// are read-only.
func (n *HTMLNode) SetField(name string, v types.Value) bool {
	if name != "text" {
		return false
	}
	for c := n.node.FirstChild; c != nil; {
		next := c.NextSibling
		n.node.RemoveChild(c)
		c = next
	}
	n.node.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: Stringify(v)})
	return true
}

func (n *HTMLNode) Members() []types.Member {
	return []types.Member{
		{Name: "find", Arity: 1, Receiver: "html", Call: func(recv types.Value, args []types.Value) (types.Value, error) {
			found := findElements(recv.AsOpaque().(*HTMLNode).node, Stringify(args[0]), -1)
			items := make([]types.Value, len(found))
			for i, f := range found {
				items[i] = types.NewOpaque(&HTMLNode{node: f})
			}
			return types.NewList(items), nil
		}},
	}
}

func collectText(n *xhtml.Node, b *strings.Builder) {
	if n.Type == xhtml.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// findElements returns descendant elements named tag in document order,
// stopping after limit matches when limit is positive.
func findElements(n *xhtml.Node, tag string, limit int) []*xhtml.Node {
	var out []*xhtml.Node
	var walk func(*xhtml.Node) bool
	walk = func(cur *xhtml.Node) bool {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xhtml.ElementNode && c.Data == tag {
				out = append(out, c)
				if limit > 0 && len(out) >= limit {
					return false
				}
			}
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(n)
	return out
}
