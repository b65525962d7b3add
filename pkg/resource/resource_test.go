package resource

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/scope"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

type testHost struct {
	cx     *scope.Context
	codecs *codec.Table
	client *http.Client
	logs   strings.Builder
	logger log.Logger
}

func newTestHost() *testHost {
	h := &testHost{cx: scope.New(nil), codecs: codec.NewTable(), client: NewHTTPClient(0)}
	h.logger = log.New(&h.logs)
	return h
}

func (h *testHost) Context() context.Context { return context.Background() }
func (h *testHost) Scope() *scope.Context     { return h.cx }
func (h *testHost) Codecs() *codec.Table      { return h.codecs }
func (h *testHost) Client() *http.Client      { return h.client }
func (h *testHost) Logger() log.Logger        { return h.logger }

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		src    string
		valid  bool
		scheme string
	}{
		{"", true, SchemeApp},
		{"hello", true, SchemeNone},
		{"a/b/c", true, SchemeNone},
		{"items.first", true, SchemeNone},
		{"my-var2", true, SchemeNone},
		{"data:text/plain,hello", true, SchemeData},
		{"https://example.com/x.json", true, SchemeHTTPS},
		{"file:///tmp/x.txt", true, SchemeFile},
		{"app:/", true, SchemeApp},
		{"./notes.txt", true, SchemeFile},
		{"/etc/hosts", true, SchemeFile},
		{"ftp://example.com", false, ""},
		{"hello world", false, ""},
		{"2abc", false, ""},
		{"-abc", false, ""},
		{"abc_", false, ""},
		{"a//b", false, ""},
		{"a.", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			r := New(tt.src)
			assert.Equal(t, tt.valid, r.Valid())
			if tt.valid {
				assert.Equal(t, tt.scheme, r.Scheme())
			} else {
				assert.Equal(t, tt.src, r.String())
			}
		})
	}
}

func TestRelativeFileBecomesAbsolute(t *testing.T) {
	r := New("./notes.txt")
	assert.True(t, strings.HasPrefix(r.String(), "file:///"))
	assert.True(t, strings.HasSuffix(r.String(), "/notes.txt"))
	assert.Equal(t, "notes.txt", r.Key())
	assert.Equal(t, codec.Text, r.Mimetype())
}

func TestMimetype(t *testing.T) {
	assert.Equal(t, codec.Script, New("a/b").Mimetype())
	assert.Equal(t, codec.Script, New("").Mimetype())
	assert.Equal(t, codec.JSON, New("data:application/json,%5B1%5D").Mimetype())
	assert.Equal(t, codec.HTML, New("http://example.com/").Mimetype())
	assert.Equal(t, codec.CSV, New("http://example.com/x.csv").Mimetype())
	assert.Equal(t, codec.Directory, fileResource(t.TempDir()).Mimetype())
}

func TestFromValue(t *testing.T) {
	r := FromValue(types.NewString("counter"))
	assert.Equal(t, SchemeNone, r.Scheme())

	r = FromValue(types.NewString("not a path"))
	assert.Equal(t, SchemeData, r.Scheme())
	assert.Equal(t, codec.Text, r.Mimetype())

	r = FromValue(types.NewList([]types.Value{types.NewInt(1), types.NewInt(2)}))
	assert.Equal(t, codec.JSON, r.Mimetype())
	v, err := r.Get(newTestHost())
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.NewInt(1), types.NewInt(2)}, v.AsList())
}

func TestContextPath(t *testing.T) {
	h := newTestHost()
	inner := types.NewOrderedMap()
	inner.Set("items", types.NewList([]types.Value{types.NewString("a")}))
	h.cx.Put("box", types.NewMap(inner))

	v, err := New("box/items/first").Get(h)
	require.NoError(t, err)
	assert.Equal(t, "a", v.AsString())

	v, err = New("box.items.size").Get(h)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.AsInt())

	added, err := New("box/items").Post(h, types.NewString("b"))
	require.NoError(t, err)
	assert.Equal(t, "b", added.AsString())

	ok, err := New("box/items/3").Put(h, types.NewString("d"))
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ = New("box/items").Get(h)
	require.Len(t, v.AsList(), 4)
	assert.True(t, v.AsList()[2].IsNull())

	ok, err = New("box/items/first").Delete(h)
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ = New("box/items/first").Get(h)
	assert.Equal(t, "b", v.AsString())

	ok, _ = New("missing/key").Put(h, types.NewInt(1))
	assert.False(t, ok)

	ok, _ = New("box").Delete(h)
	assert.True(t, ok)
	assert.False(t, h.cx.Has("box"))
}

func TestPostCreatesList(t *testing.T) {
	h := newTestHost()
	v, err := New("log").Post(h, types.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.AsInt())
	got, _ := h.cx.Get("log")
	assert.Equal(t, types.TypeList, got.Type())
}

func TestApp(t *testing.T) {
	h := newTestHost()
	h.cx.Put("x", types.NewInt(1))

	v, err := New("").Get(h)
	require.NoError(t, err)
	x, _ := v.AsMap().Get("x")
	assert.Equal(t, int64(1), x.AsInt())

	m := types.NewOrderedMap()
	m.Set("y", types.NewInt(2))
	ok, err := New("app:/").Put(h, types.NewMap(m))
	require.NoError(t, err)
	assert.True(t, ok)
	y, _ := h.cx.Get("y")
	assert.Equal(t, int64(2), y.AsInt())

	ok, _ = New("app:/").Put(h, types.NewInt(3))
	assert.False(t, ok)
	assert.Contains(t, h.logs.String(), "resource operation failed")

	v, _ = New("app:/y").Get(h)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestData(t *testing.T) {
	h := newTestHost()
	r := New("data:text/plain,hello")
	v, err := r.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.AsString())

	ok, err := r.Put(h, types.NewString("bye"))
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ = r.Get(h)
	assert.Equal(t, "bye", v.AsString())
	assert.NotContains(t, r.String(), "base64")

	r = New("data:application/json;base64,WzFd")
	ok, err = r.Put(h, types.NewList([]types.Value{types.NewInt(2)}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, r.String(), ";base64,")

	v, err = r.Post(h, types.NewInt(3))
	require.NoError(t, err)
	assert.Len(t, v.AsList(), 2)
	v, _ = r.Get(h)
	assert.Len(t, v.AsList(), 2)
}

func TestDataDecodeError(t *testing.T) {
	_, err := New("data:application/json,%7Boops").Get(newTestHost())
	require.Error(t, err)
	assert.Equal(t, types.ConversionError, types.KindOf(err))
}

func TestFile(t *testing.T) {
	h := newTestHost()
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "data.json")
	r := fileResource(p)

	v, err := r.Get(h)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	m := types.NewOrderedMap()
	m.Set("a", types.NewInt(1))
	ok, err := r.Put(h, types.NewMap(m))
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"a": 1`)

	v, err = r.Get(h)
	require.NoError(t, err)
	a, _ := v.AsMap().Get("a")
	assert.Equal(t, int64(1), a.AsInt())

	listing, err := fileResource(filepath.Join(dir, "sub")).Get(h)
	require.NoError(t, err)
	require.Len(t, listing.AsList(), 1)
	assert.Equal(t, types.TypeResource, listing.AsList()[0].Type())

	ok, _ = fileResource(filepath.Join(dir, "sub")).Delete(h)
	assert.True(t, ok)
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	ok, _ = r.Delete(h)
	assert.False(t, ok)
}

func TestFilePostAppends(t *testing.T) {
	h := newTestHost()
	r := fileResource(filepath.Join(t.TempDir(), "log.txt"))
	_, err := r.Post(h, types.NewString("a\n"))
	require.NoError(t, err)
	_, err = r.Post(h, types.NewString("b\n"))
	require.NoError(t, err)
	v, err := r.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", v.AsString())
}

func startServer(t *testing.T) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/items.json", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/json; charset=utf-8")
		return c.SendString(`{"items":[1,2]}`)
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})
	app.Put("/store", func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderContentType) != codec.JSON {
			return c.SendStatus(fiber.StatusUnsupportedMediaType)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Put("/locked", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusForbidden)
	})
	app.Post("/echo", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, c.Get(fiber.HeaderContentType))
		return c.Send(c.Body())
	})
	app.Post("/create", func(c *fiber.Ctx) error {
		return c.Redirect("/created/1", fiber.StatusSeeOther)
	})
	app.Delete("/store", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestHTTP(t *testing.T) {
	base := startServer(t)
	h := newTestHost()

	r := New(base + "/items.json")
	v, err := r.Get(h)
	require.NoError(t, err)
	items, _ := v.AsMap().Get("items")
	assert.Len(t, items.AsList(), 2)
	assert.Equal(t, codec.JSON, r.Mimetype())

	v, err = New(base + "/missing").Get(h)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.Contains(t, h.logs.String(), "404")

	ok, err := New(base+"/store").Put(h, types.NewInt(5))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = New(base+"/echo").Post(h, types.NewList([]types.Value{types.NewString("x")}))
	require.NoError(t, err)
	assert.Equal(t, "x", v.AsList()[0].AsString())

	v, err = New(base+"/create").Post(h, types.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, types.TypeResource, v.Type())
	assert.Equal(t, base+"/created/1", v.AsResource().String())

	ok, _ = New(base + "/store").Delete(h)
	assert.True(t, ok)
}

func TestHTTPPutRejected(t *testing.T) {
	base := startServer(t)
	h := newTestHost()

	ok, err := New(base+"/locked").Put(h, types.NewInt(5))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, h.logs.String(), "op=put")
	assert.Contains(t, h.logs.String(), "403")
}

func TestHTTPClientTimeout(t *testing.T) {
	assert.Zero(t, NewHTTPClient(0).Timeout)
	assert.Zero(t, NewHTTPClient(-time.Second).Timeout)
	assert.Equal(t, 5*time.Second, NewHTTPClient(5*time.Second).Timeout)
}

func TestUnreachableHostIsLogged(t *testing.T) {
	h := newTestHost()
	v, err := New("http://127.0.0.1:1/nothing").Get(h)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.Contains(t, h.logs.String(), "op=get")
}

func TestValuePathKeys(t *testing.T) {
	list := types.NewList([]types.Value{types.NewInt(1), types.NewInt(2)})
	assert.Equal(t, int64(2), GetValue(list, "last").AsInt())
	assert.Equal(t, int64(2), GetValue(list, "count").AsInt())
	assert.True(t, GetValue(list, "9").IsNull())
	assert.Equal(t, "list", GetValue(list, "type").AsString())
	assert.Equal(t, "e", GetValue(types.NewString("hey"), "1").AsString())
	assert.True(t, GetValue(types.NewInt(4), "x").IsNull())

	m := types.NewOrderedMap()
	m.Set("size", types.NewString("large"))
	assert.Equal(t, "large", GetValue(types.NewMap(m), "size").AsString())
	assert.Equal(t, int64(1), GetValue(types.NewMap(m), "length").AsInt())
}

func TestConstantsAreNotWritten(t *testing.T) {
	cfg := types.NewOrderedMap()
	cfg.Set("port", types.NewInt(8080))
	nums := types.NewList([]types.Value{types.NewInt(1), types.NewInt(2)})
	h := newTestHost()
	h.cx = scope.New(map[string]types.Value{"cfg": types.NewMap(cfg), "nums": nums})

	ok, err := New("cfg/port").Put(h, types.NewInt(9999))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = New("cfg/port").Delete(h)
	assert.False(t, ok)
	ok, _ = New("nums/0").Put(h, types.NewInt(42))
	assert.False(t, ok)
	added, err := New("nums").Post(h, types.NewInt(3))
	require.NoError(t, err)
	assert.True(t, added.IsNull())

	v, _ := New("cfg/port").Get(h)
	assert.Equal(t, int64(8080), v.AsInt())
	v, _ = New("nums").Get(h)
	assert.Equal(t, []types.Value{types.NewInt(1), types.NewInt(2)}, v.AsList())
}

func TestValueWritesCopy(t *testing.T) {
	m := types.NewOrderedMap()
	m.Set("a", types.NewInt(1))
	orig := types.NewMap(m)

	updated, ok := PutValue(orig, "a", types.NewInt(2))
	require.True(t, ok)
	assert.Equal(t, int64(2), GetValue(updated, "a").AsInt())
	assert.Equal(t, int64(1), GetValue(orig, "a").AsInt())

	updated, ok = DeleteValue(orig, "a")
	require.True(t, ok)
	assert.Equal(t, 0, updated.AsMap().Len())
	assert.Equal(t, 1, orig.AsMap().Len())

	backing := make([]types.Value, 1, 4)
	backing[0] = types.NewInt(1)
	list := types.NewList(backing)
	grown, _ := PostValue(list, types.NewInt(2))
	other, _ := PostValue(list, types.NewInt(3))
	assert.Equal(t, int64(2), GetValue(grown, "last").AsInt())
	assert.Equal(t, int64(3), GetValue(other, "last").AsInt())

	changed, _ := PutValue(list, "0", types.NewInt(9))
	assert.Equal(t, int64(9), GetValue(changed, "0").AsInt())
	assert.Equal(t, int64(1), GetValue(list, "0").AsInt())
}
