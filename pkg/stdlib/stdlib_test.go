package stdlib

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/scope"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

func newEnv(out *bytes.Buffer) *expr.Env {
	return expr.NewEnv(context.Background(), NewRegistry(), expr.WithOutput(out))
}

func run(t *testing.T, env *expr.Env, src string) types.Value {
	t.Helper()
	e, err := env.Compile(src)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	v, err := env.Execute(e.Value())
	if err != nil {
		t.Fatalf("execute %q: %v", src, err)
	}
	return v
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		input string
		want  types.Value
	}{
		{"add 1 2 3", types.NewInt(6)},
		{"add 1 2.5", types.NewReal(3.5)},
		{"sum 1 2", types.NewInt(3)},
		{`add "a" "b" 1`, types.NewString("ab1")},
		{"add true false", types.NewBool(false)},
		{"add list 1 2 list 3", types.NewList([]types.Value{types.NewInt(1), types.NewInt(2), types.NewInt(3)})},
		{"equal 1 1.0", types.NewBool(true)},
		{`equal "1" 1`, types.NewBool(true)},
		{`= "a" "a"`, types.NewBool(true)},
		{"less 1 2", types.NewBool(true)},
		{"< 2 1", types.NewBool(false)},
		{"more 2 1", types.NewBool(true)},
		{"greater null 1", types.NewBool(false)},
		{"lesser null 1", types.NewBool(true)},
		{"and true false", types.NewBool(false)},
		{`or false "yes"`, types.NewBool(true)},
		{"not false", types.NewBool(true)},
		{`not "empty"`, types.NewBool(true)},
		{`is 1 "integer"`, types.NewBool(true)},
		{`is 1.5 "number"`, types.NewBool(true)},
		{`is "x" "list"`, types.NewBool(false)},
		{"is 1 true", types.NewBool(true)},
		{`string 12`, types.NewString("12")},
		{`text true`, types.NewString("true")},
		{`number "42"`, types.NewInt(42)},
		{`real 2`, types.NewReal(2)},
		{`integer 2.9`, types.NewInt(2)},
		{`boolean "no"`, types.NewBool(false)},
		{"date 2024 2 3", types.NewDateTime(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))},
		{"set 1 1 2", types.NewSet([]types.Value{types.NewInt(1), types.NewInt(2)})},
		{"of size list 1 2 3", types.NewInt(3)},
		{"of first list 7 8", types.NewInt(7)},
		{`eval "add 2 2"`, types.NewInt(4)},
		{`text.to_upper "abc"`, types.NewString("ABC")},
		{`text.split "a-b" "-"`, types.NewList([]types.Value{types.NewString("a"), types.NewString("b")})},
		{`text.substring "hello" 1 3`, types.NewString("el")},
		{`text.replace_all "aXbX" "X" "-"`, types.NewString("a-b-")},
		{`text.match_regex "abc123" "[0-9]+"`, types.NewBool(true)},
		{`text.url_encode "a b"`, types.NewString("a%20b")},
		{"math.abs -3", types.NewInt(3)},
		{"math.floor 2.7", types.NewInt(2)},
		{"math.max 1 9 4", types.NewInt(9)},
		{"math.min list 5 2 8", types.NewInt(2)},
		{`base64.encode "hi"`, types.NewString("aGk=")},
		{`hash.checksum "abc" "md5"`, types.NewString("900150983cd24fb0d6963f7d28e17f72")},
		{"list.sort list 3 1 2", types.NewList([]types.Value{types.NewInt(1), types.NewInt(2), types.NewInt(3)})},
		{`json.encode "a"`, types.NewString(`"a"`)},
		{`json.decode "[1]"`, types.NewList([]types.Value{types.NewInt(1)})},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := run(t, newEnv(&bytes.Buffer{}), tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapConstructor(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	got := run(t, env, "map a 1 b 2")
	if got.Type() != types.TypeMap {
		t.Fatalf("got %v, want a map", got.Type())
	}
	if keys := got.AsMap().Keys(); strings.Join(keys, ",") != "a,b" {
		t.Errorf("keys = %v, want [a b]", keys)
	}
	env.Scope().Put("m", got)
	dup := run(t, env, "map m")
	if !dup.Equal(got) {
		t.Errorf("copy = %v, want %v", dup, got)
	}
}

func TestPutAndGetVariables(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	run(t, env, "put x 5")
	if got := run(t, env, "x"); !got.Equal(types.NewInt(5)) {
		t.Errorf("x = %v, want 5", got)
	}
	run(t, env, "put items list 1 2")
	if got := run(t, env, "post items 3"); !got.Equal(types.NewInt(3)) {
		t.Errorf("post answered %v, want 3", got)
	}
	if got := run(t, env, "items/size"); !got.Equal(types.NewInt(3)) {
		t.Errorf("items/size = %v, want 3", got)
	}
	if got := run(t, env, "delete x"); !got.Equal(types.NewBool(true)) {
		t.Errorf("delete answered %v, want true", got)
	}
	if env.Scope().Has("x") {
		t.Error("x still bound after delete")
	}
}

func TestGetDataResource(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	e, err := env.Compile(`get "data:text/plain,hello"`)
	if err != nil {
		t.Fatal(err)
	}
	v, err := env.Evaluate(e.Value())
	if err != nil {
		t.Fatal(err)
	}
	if v.Type() != types.TypeResource || v.AsResource().Scheme() != "data" {
		t.Fatalf("got %v, want a data resource", v)
	}
	if got := run(t, env, `get "data:text/plain,hello"`); !got.Equal(types.NewString("hello")) {
		t.Errorf("data = %v, want hello", got)
	}
}

func TestEachPrintsItems(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	run(t, env, "each 1,2,3 x\n  print x\nend each")
	if got := out.String(); got != "1\n2\n3\n" {
		t.Errorf("output = %q, want %q", got, "1\n2\n3\n")
	}
}

func TestEachSingleLine(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	run(t, env, `each list 1 2 n print "n=" n`)
	if got := out.String(); got != "n=1\nn=2\n" {
		t.Errorf("output = %q", got)
	}
}

func TestWhileLoop(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	run(t, env, strings.Join([]string{
		"put i 0",
		"while less i 3",
		"  print i",
		"  put i add i 1",
		"end",
	}, "\n"))
	if got := out.String(); got != "0\n1\n2\n" {
		t.Errorf("output = %q", got)
	}
}

func TestNestedBlocs(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	run(t, env, strings.Join([]string{
		"each a,b x",
		"  each 1,2 y",
		"    print x y",
		"  end each",
		"end each",
	}, "\n"))
	if got := out.String(); got != "a1\na2\nb1\nb2\n" {
		t.Errorf("output = %q", got)
	}
}

func TestEndOutsideBloc(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	_, err := expr.NewExpression(mustLookup(t, env, "end")).Execute(env)
	if types.KindOf(err) != types.StateError {
		t.Errorf("got %v, want a state error", err)
	}
}

func TestExit(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	e, err := env.Compile("exit 3")
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Execute(e.Value())
	var exitErr *types.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Errorf("got %v, want exit status 3", err)
	}
}

func TestConstantsShadowPut(t *testing.T) {
	cx := scope.New(map[string]types.Value{"pi": types.NewInt(3)})
	env := expr.NewEnv(context.Background(), NewRegistry(), expr.WithScope(cx))
	run(t, env, "put pi 4")
	if got := run(t, env, "pi"); !got.Equal(types.NewInt(3)) {
		t.Errorf("pi = %v, want the constant 3", got)
	}
}

func TestHasFiltersItems(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	run(t, env, "put nums list 1 5 3 8")
	want := types.NewList([]types.Value{types.NewInt(5), types.NewInt(3), types.NewInt(8)})
	if got := run(t, env, "has nums more it 2"); !got.Equal(want) {
		t.Errorf("has nums more it 2 = %v, want %v", got, want)
	}

	run(t, env, `put people json.decode "[{\"name\":\"ann\",\"age\":31},{\"name\":\"bob\",\"age\":17}]"`)
	adults := run(t, env, "that people more age 18")
	if adults.Type() != types.TypeList || len(adults.AsList()) != 1 {
		t.Fatalf("that people more age 18 = %v, want one person", adults)
	}
	if name, _ := adults.AsList()[0].AsMap().Get("name"); name.AsString() != "ann" {
		t.Errorf("kept %v, want ann", name)
	}
	named := run(t, env, `with people equal name "bob"`)
	if len(named.AsList()) != 1 {
		t.Errorf("with people equal name bob = %v, want one person", named)
	}

	if got := run(t, env, "has missing true"); got.Type() != types.TypeList || len(got.AsList()) != 0 {
		t.Errorf("has on null = %v, want an empty list", got)
	}
	for _, name := range []string{"it", "age", "name"} {
		if env.Scope().Has(name) {
			t.Errorf("%s leaked out of the condition", name)
		}
	}
}

func TestArityCheck(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	e, err := env.Compile("equal 1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Execute(e.Value())
	if types.KindOf(err) != types.DispatchError {
		t.Errorf("got %v, want a dispatch error", err)
	}
}

func TestUUIDGenerate(t *testing.T) {
	env := newEnv(&bytes.Buffer{})
	a := run(t, env, "uuid.generate")
	b := run(t, env, "uuid.generate")
	if len(a.AsString()) != 36 || a.Equal(b) {
		t.Errorf("got %v and %v, want two distinct UUIDs", a, b)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := expr.NewEnv(ctx, NewRegistry())
	e, err := expr.Compile(env.Registry(), "sys.sleep 10")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Execute(e.Value()); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRegistryFirstWins(t *testing.T) {
	r := expr.NewRegistry()
	custom := expr.NewBuiltin("add", expr.Command, 0, func(*expr.Env, []types.Value) (types.Value, error) {
		return types.NewString("custom"), nil
	})
	r.Register(custom)
	Install(r)
	fn, ok := r.Lookup("add")
	if !ok || fn != expr.Function(custom) {
		t.Errorf("add was rebound by Install")
	}
	if _, ok := r.Lookup("sum"); !ok {
		t.Errorf("sum alias missing")
	}
}

func mustLookup(t *testing.T, env *expr.Env, name string) expr.Function {
	t.Helper()
	fn, err := env.Registry().Get(name)
	if err != nil {
		t.Fatal(err)
	}
	return fn
}
