package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

func TestJSONKeepsKeyOrder(t *testing.T) {
	v, err := Read([]byte(`{"zeta": 1, "alpha": [true, null, 2.5], "mid": {"b": "x", "a": "y"}}`), JSON)
	require.NoError(t, err)
	require.Equal(t, types.TypeMap, v.Type())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.AsMap().Keys())

	alpha, _ := v.AsMap().Get("alpha")
	assert.Equal(t, "[true, null, 2.5]", alpha.String())

	out, err := Print(v, JSON)
	require.NoError(t, err)
	assert.True(t, strings.Index(string(out), "zeta") < strings.Index(string(out), "alpha"))
}

func TestJSONRejectsTrailingData(t *testing.T) {
	_, err := Read([]byte(`{} {}`), JSON)
	assert.Equal(t, types.ConversionError, types.KindOf(err))
}

func TestYAMLRoundTrip(t *testing.T) {
	src := "name: demo\ncount: 3\nratio: 0.5\ntags:\n  - a\n  - b\nwhen: 2024-01-02T03:04:05Z\nnothing: null\n"
	v, err := Read([]byte(src), YAML)
	require.NoError(t, err)
	m := v.AsMap()
	assert.Equal(t, []string{"name", "count", "ratio", "tags", "when", "nothing"}, m.Keys())

	count, _ := m.Get("count")
	assert.Equal(t, int64(3), count.AsInt())
	when, _ := m.Get("when")
	assert.True(t, when.AsDateTime().Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	out, err := Print(v, YAML)
	require.NoError(t, err)
	back, err := Read(out, YAML)
	require.NoError(t, err)
	assert.True(t, v.Equal(back), "round trip changed the value:\n%s", out)
}

func TestRoundTrip(t *testing.T) {
	mapOf := func(pairs ...any) types.Value {
		m := types.NewOrderedMap()
		for i := 0; i+1 < len(pairs); i += 2 {
			m.Set(pairs[i].(string), pairs[i+1].(types.Value))
		}
		return types.NewMap(m)
	}
	str := types.NewString
	list := func(items ...types.Value) types.Value { return types.NewList(items) }

	tests := []struct {
		name     string
		mimetype string
		value    types.Value
	}{
		{"json", JSON, mapOf(
			"name", str("demo"),
			"count", types.NewInt(3),
			"ratio", types.NewReal(0.5),
			"ok", types.NewBool(true),
			"none", types.Null,
			"tags", list(str("a"), mapOf("k", types.NewInt(1))),
		)},
		{"json list", JSON, list(types.NewInt(1), str("two"), types.Null)},
		{"yaml", YAML, mapOf("name", str("demo"), "tags", list(str("a"), str("b")))},
		// CSV cells are text.
		{"csv", CSV, list(
			mapOf("name", str("ann"), "age", str("31")),
			mapOf("name", str("bob"), "age", str("27")),
		)},
		// Properties values are text.
		{"properties", Properties, mapOf("host", str("localhost"), "port", str("8080"))},
		// Form values come back typed, so only typed values survive.
		{"form", Form, mapOf(
			"q", str("hello world"),
			"n", types.NewInt(3),
			"flag", types.NewBool(true),
			"tags", list(str("a"), str("b")),
		)},
		{"text", Text, str("line one\nline two")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Print(tt.value, tt.mimetype)
			require.NoError(t, err)
			back, err := Read(out, tt.mimetype)
			require.NoError(t, err)
			assert.True(t, tt.value.Equal(back), "round trip changed %v into %v:\n%s", tt.value, back, out)
		})
	}
}

func TestFormRoundTripTypesText(t *testing.T) {
	m := types.NewOrderedMap()
	m.Set("n", types.NewString("3"))
	out, err := Print(types.NewMap(m), Form)
	require.NoError(t, err)
	back, err := Read(out, Form)
	require.NoError(t, err)
	n, _ := back.AsMap().Get("n")
	assert.Equal(t, types.TypeInt, n.Type(), "numeric text decodes as a number")
}

func TestYAMLQuotesAmbiguousStrings(t *testing.T) {
	m := types.NewOrderedMap()
	m.Set("flag", types.NewString("true"))
	out, err := Print(types.NewMap(m), YAML)
	require.NoError(t, err)
	back, err := Read(out, YAML)
	require.NoError(t, err)
	flag, _ := back.AsMap().Get("flag")
	assert.Equal(t, types.TypeString, flag.Type())
}

func TestCSVDecodeWithHeader(t *testing.T) {
	v, err := Read([]byte("name,age\nann,31\nbob,27,extra\n"), CSV)
	require.NoError(t, err)
	rows := v.AsList()
	require.Len(t, rows, 2)
	assert.Equal(t, "{name: ann, age: 31}", rows[0].String())
	assert.Equal(t, 2, rows[1].AsMap().Len())
}

func TestCSVDecodeWithoutHeader(t *testing.T) {
	table := NewTable(WithCSVPolicy(CSVPolicy{Header: false}))
	v, err := table.Read([]byte("a,b\nc,d\n"), CSV)
	require.NoError(t, err)
	assert.Equal(t, "[[a, b], [c, d]]", v.String())
	assert.Equal(t, 5, table.CSVPolicy().MinRun)
}

func TestCSVEncodeDiscoversColumns(t *testing.T) {
	row := func(pairs ...string) types.Value {
		m := types.NewOrderedMap()
		for i := 0; i+1 < len(pairs); i += 2 {
			m.Set(pairs[i], types.NewString(pairs[i+1]))
		}
		return types.NewMap(m)
	}
	table := NewTable(WithCSVPolicy(CSVPolicy{MinRun: 1, Header: true}))
	rows := types.NewList([]types.Value{
		row("a", "1"),
		row("a", "2", "b", "x"),
		row("a", "3", "b", "y"),
		row("a", "4", "b", "z", "c", "late"),
	})
	out, err := table.Print(rows, CSV)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\n2,x\n3,y\n4,z\n", string(out))

	out, err = Print(rows, CSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "a,b,c\n"))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"csv", "a,b,c,d\n1,2,3,4\n5,6,7,8\n", CSV},
		{"csv short row", "a,b,c,d\n1,2,3,4\n5,6\n", ""},
		{"json", "  {\"a\": 1}\n", JSON},
		{"html", "<html><body>x</body></html>", HTML},
		{"doctype", "<!DOCTYPE html>\n<html></html>", HTML},
		{"xml", "<?xml version=\"1.0\"?>\n<note/>", XML},
		{"yaml", "name: x\nitems:\n- a\n- b\n", YAML},
		{"yaml marker", "---\nfoo", YAML},
		{"properties", "# comment\na=1\nb.c=2\n", Properties},
		{"form", "a=1&b=two", Form},
		{"prose", "just some words\nand more words", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text))
		})
	}
}

func TestFormRepeatedKeys(t *testing.T) {
	v, err := Read([]byte("tag=a&tag=b&n=3&flag&list=1,2&q=hello%20world&j=%7B%22k%22%3A1%7D"), Form)
	require.NoError(t, err)
	m := v.AsMap()
	tag, _ := m.Get("tag")
	assert.Equal(t, "[a, b]", tag.String())
	n, _ := m.Get("n")
	assert.Equal(t, int64(3), n.AsInt())
	flag, _ := m.Get("flag")
	assert.True(t, flag.AsBool())
	list, _ := m.Get("list")
	assert.Equal(t, "[1, 2]", list.String())
	q, _ := m.Get("q")
	assert.Equal(t, "hello world", q.AsString())
	j, _ := m.Get("j")
	assert.Equal(t, types.TypeMap, j.Type())

	out, err := Print(v, Form)
	require.NoError(t, err)
	assert.Contains(t, string(out), "tag=a&tag=b")

	_, err = Print(types.NewInt(1), Form)
	assert.Equal(t, types.ConversionError, types.KindOf(err))
}

func TestProperties(t *testing.T) {
	v, err := Read([]byte("b = 2\na = ${b}\n# note\nc: three\n"), Properties)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, v.AsMap().Keys())
	a, _ := v.AsMap().Get("a")
	assert.Equal(t, "${b}", a.AsString())

	nested := types.NewOrderedMap()
	inner := types.NewOrderedMap()
	inner.Set("port", types.NewInt(8080))
	nested.Set("server", types.NewMap(inner))
	out, err := Print(types.NewMap(nested), Properties)
	require.NoError(t, err)
	assert.Contains(t, string(out), "server.port = 8080")
}

func TestXML(t *testing.T) {
	v, err := Read([]byte(`<note lang="en"><to>Tove</to><body>Hi</body><body>Again</body></note>`), XML)
	require.NoError(t, err)
	node, ok := v.AsOpaque().(types.Introspectable)
	require.True(t, ok)

	tag, _ := node.Field("tag")
	assert.Equal(t, "note", tag.AsString())
	lang, _ := node.Field("@lang")
	assert.Equal(t, "en", lang.AsString())
	to, ok := node.Field("to")
	require.True(t, ok)
	text, _ := to.AsOpaque().(types.Introspectable).Field("text")
	assert.Equal(t, "Tove", text.AsString())

	members := node.Members()
	require.NotEmpty(t, members)
	found, err := members[0].Call(v, []types.Value{types.NewString("body")})
	require.NoError(t, err)
	assert.Len(t, found.AsList(), 2)

	out, err := Print(v, XML)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<to>Tove</to>")
}

func TestXMLFromMap(t *testing.T) {
	person := types.NewOrderedMap()
	person.Set("@id", types.NewInt(7))
	person.Set("name", types.NewString("Ann"))
	person.Set("pet", types.NewList([]types.Value{types.NewString("cat"), types.NewString("dog")}))
	root := types.NewOrderedMap()
	root.Set("person", types.NewMap(person))

	out, err := Print(types.NewMap(root), XML)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `<person id="7">`)
	assert.Contains(t, s, "<pet>cat</pet>")
	assert.Contains(t, s, "<pet>dog</pet>")
}

func TestHTMLDecode(t *testing.T) {
	v, err := Read([]byte(`<html><head><title>Hello</title></head><body><p>a</p><p>b</p></body></html>`), HTML)
	require.NoError(t, err)
	doc := v.AsOpaque().(types.Introspectable)
	title, ok := doc.Field("title")
	require.True(t, ok)
	text, _ := title.AsOpaque().(types.Introspectable).Field("text")
	assert.Equal(t, "Hello", text.AsString())

	found, err := doc.Members()[0].Call(v, []types.Value{types.NewString("p")})
	require.NoError(t, err)
	assert.Len(t, found.AsList(), 2)
}

func TestHTMLEncodeModes(t *testing.T) {
	row := func(a, b string) types.Value {
		m := types.NewOrderedMap()
		m.Set("a", types.NewString(a))
		m.Set("b", types.NewString(b))
		return types.NewMap(m)
	}
	table := EncodeHTML(types.NewList([]types.Value{row("1", "<2>"), row("3", "4")}))
	assert.Equal(t, tableOpen+
		"<tr><th>a</th><th>b</th></tr>\n"+
		"<tr><td>1</td><td>&lt;2&gt;</td></tr>\n"+
		"<tr><td>3</td><td>4</td></tr>\n"+
		"</table>", table)

	kv := EncodeHTML(row("x", "y"))
	assert.Equal(t, tableOpen+"<tr><td>a</td><td>x</td></tr>\n<tr><td>b</td><td>y</td></tr>\n</table>", kv)

	lines := EncodeHTML(types.NewList([]types.Value{types.NewInt(1), types.NewString("two")}))
	assert.Equal(t, "1<br>\ntwo", lines)

	sep := ", "
	assert.Equal(t, "a = x, b = y", encodeHTML(row("x", "y"), &sep, nil))
	assert.Equal(t, "", EncodeHTML(types.Null))
}

func TestReadAndPrintUnlisted(t *testing.T) {
	_, err := Read([]byte("x"), "audio/midi")
	assert.Equal(t, types.ConversionError, types.KindOf(err))

	out, err := Print(types.NewString("raw"), "audio/midi")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(out))

	v, err := Default.Decode([]byte{1, 2}, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, types.TypeBytes, v.Type())
}

func TestExtensions(t *testing.T) {
	mt, ok := ForExtension("/tmp/data.YML")
	require.True(t, ok)
	assert.Equal(t, YAML, mt)
	_, ok = ForExtension("noext")
	assert.False(t, ok)

	ext, ok := Extension("text/yaml; charset=utf-8")
	require.True(t, ok)
	assert.Equal(t, "yaml", ext)
	assert.Equal(t, "application/json", Normalize(" Application/JSON ; charset=UTF-8"))
}
