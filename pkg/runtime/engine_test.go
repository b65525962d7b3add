package runtime

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

func runSource(t *testing.T, engine *Engine, source string) types.Value {
	t.Helper()

	result, err := engine.Execute(context.Background(), source)
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	return result
}

func runSourceExpectError(t *testing.T, engine *Engine, source string) error {
	t.Helper()

	_, err := engine.Execute(context.Background(), source)
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	return err
}

func TestAddIntegers(t *testing.T) {
	result := runSource(t, NewEngine(), "add 1 2 3")
	if !result.Equal(types.NewInt(6)) {
		t.Errorf("expected 6, got %v", result)
	}
}

func TestDataResource(t *testing.T) {
	engine := NewEngine()

	raw, err := engine.Run(context.Background(), `get "data:text/plain,hello"`)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if raw.Type() != types.TypeResource {
		t.Fatalf("expected a resource, got %v", raw.Type())
	}

	result := runSource(t, engine, `get "data:text/plain,hello"`)
	if !result.Equal(types.NewString("hello")) {
		t.Errorf("expected hello, got %v", result)
	}
}

func TestEachBloc(t *testing.T) {
	var out bytes.Buffer
	engine := NewEngine(WithOutput(&out))

	runSource(t, engine, "each 1,2,3 x\n  print x\nend each")
	if out.String() != "1\n2\n3\n" {
		t.Errorf("expected three lines, got %q", out.String())
	}
}

func TestEqualityAcrossTypes(t *testing.T) {
	engine := NewEngine()
	for _, src := range []string{"equal 1 1.0", `equal "1" 1`} {
		if result := runSource(t, engine, src); !result.Equal(types.NewBool(true)) {
			t.Errorf("%s: expected true, got %v", src, result)
		}
	}
}

func TestDetectCSV(t *testing.T) {
	engine := NewEngine()
	text := "name,age\nann,31\nbob,42\n"
	if got := codec.Detect(text); got != codec.CSV {
		t.Fatalf("expected %s, got %q", codec.CSV, got)
	}
	v, err := engine.ReadData([]byte(text), codec.Detect(text))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if v.Type() != types.TypeList || len(v.AsList()) != 2 {
		t.Errorf("expected two rows, got %v", v)
	}
}

func TestVariablesPersistAcrossExecutions(t *testing.T) {
	engine := NewEngine()
	runSource(t, engine, "put total 10")
	result := runSource(t, engine, "add total 5")
	if !result.Equal(types.NewInt(15)) {
		t.Errorf("expected 15, got %v", result)
	}
	if !engine.Scope().Has("total") {
		t.Error("total not bound in the root context")
	}
}

func TestConstantsAreReadOnly(t *testing.T) {
	engine := NewEngine(WithConstants(map[string]types.Value{"limit": types.NewInt(3)}))
	runSource(t, engine, "put limit 9")
	result := runSource(t, engine, "limit")
	if !result.Equal(types.NewInt(3)) {
		t.Errorf("expected the constant 3, got %v", result)
	}
}

func TestRunScriptArgs(t *testing.T) {
	engine := NewEngine()
	result, err := engine.RunScript(context.Background(), "put seen of size args\nseen",
		[]types.Value{types.NewString("a"), types.NewString("b")})
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	if !result.Equal(types.NewInt(2)) {
		t.Errorf("expected 2, got %v", result)
	}
	if engine.Scope().Has("seen") || engine.Scope().Has(ArgsName) {
		t.Error("script variables leaked into the root context")
	}

	// The child context is closed, so another script can run.
	if _, err := engine.RunScript(context.Background(), "args", nil); err != nil {
		t.Fatalf("second script: %v", err)
	}
}

func TestRunScriptErrorClosesChild(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.RunScript(context.Background(), "exit 2", nil); err == nil {
		t.Fatal("expected an exit error")
	}
	if _, err := engine.RunScript(context.Background(), "add 1 1", nil); err != nil {
		t.Fatalf("child context left open: %v", err)
	}
}

func TestExitStatus(t *testing.T) {
	err := runSourceExpectError(t, NewEngine(), "exit 4")
	var exitErr *types.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 4 {
		t.Errorf("expected exit status 4, got %v", err)
	}
}

func TestUnmatchedEnd(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Compile("add 1 2\nend")
	if err == nil {
		t.Fatal("expected a compile error for an unmatched end")
	}
	if types.KindOf(err) != types.ParseError {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestRegisterFunction(t *testing.T) {
	engine := NewEngine()
	twice := expr.NewBuiltin("twice", expr.Command, 1, func(env *expr.Env, args []types.Value) (types.Value, error) {
		v, err := env.Execute(args[0])
		if err != nil {
			return types.Null, err
		}
		return types.NewInt(2 * v.AsInt()), nil
	}, expr.WithMin(1))

	if !engine.RegisterFunction("", twice) {
		t.Fatal("twice not registered")
	}
	if engine.RegisterFunction("twice", twice) {
		t.Error("second registration replaced the first")
	}
	if !engine.RegisterFunction("double", twice) {
		t.Fatal("alias not registered")
	}

	result := runSource(t, engine, "double add 2 3")
	if !result.Equal(types.NewInt(10)) {
		t.Errorf("expected 10, got %v", result)
	}
}

func TestScriptCodecRoundTrip(t *testing.T) {
	engine := NewEngine()
	tests := []struct {
		source string
		want   types.Value
	}{
		{"add 4 5", types.NewInt(9)},
		{`equal "a" "a"`, types.NewBool(true)},
		{"math.max 3 8 2", types.NewInt(8)},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			v, err := engine.ReadData([]byte(tt.source), codec.Script)
			if err != nil {
				t.Fatalf("read error: %v", err)
			}
			if v.Type() != types.TypeExpression {
				t.Fatalf("expected an expression, got %v", v.Type())
			}
			printed, err := engine.PrintData(v, codec.Script)
			if err != nil {
				t.Fatalf("print error: %v", err)
			}
			again, err := engine.ReadData(printed, codec.Script)
			if err != nil {
				t.Fatalf("reading %q back: %v", printed, err)
			}
			reprinted, err := engine.PrintData(again, codec.Script)
			if err != nil {
				t.Fatalf("print error: %v", err)
			}
			if string(printed) != string(reprinted) {
				t.Errorf("printed %q, then %q", printed, reprinted)
			}

			for _, x := range []types.Value{v, again} {
				result, err := engine.ExecuteValue(context.Background(), x)
				if err != nil {
					t.Fatalf("execution error: %v", err)
				}
				if !result.Equal(tt.want) {
					t.Errorf("expected %v, got %v", tt.want, result)
				}
			}
		})
	}
}

func TestCSVPolicy(t *testing.T) {
	engine := NewEngine(WithCSVPolicy(codec.CSVPolicy{Header: false}))
	v, err := engine.ReadData([]byte("a,b\n1,2\n"), codec.CSV)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(v.AsList()) != 2 {
		t.Errorf("expected the header as a row, got %v", v)
	}
}

func TestCancelledExecution(t *testing.T) {
	engine := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Execute(ctx, "sys.sleep 5")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCancelledLoop(t *testing.T) {
	engine := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Execute(ctx, "while true\nput n 1\nend")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConstantContainersAreReadOnly(t *testing.T) {
	cfg := types.NewOrderedMap()
	cfg.Set("port", types.NewInt(8080))
	engine := NewEngine(WithConstants(map[string]types.Value{
		"cfg":  types.NewMap(cfg),
		"nums": types.NewList([]types.Value{types.NewInt(1), types.NewInt(2)}),
	}))

	runSource(t, engine, "put cfg/port 9999")
	runSource(t, engine, "delete cfg/port")
	runSource(t, engine, "put nums/0 42")
	if posted := runSource(t, engine, "post nums 3"); !posted.IsNull() {
		t.Errorf("post on a constant answered %v, want null", posted)
	}

	if port := runSource(t, engine, "cfg/port"); !port.Equal(types.NewInt(8080)) {
		t.Errorf("cfg/port = %v, want 8080", port)
	}
	want := types.NewList([]types.Value{types.NewInt(1), types.NewInt(2)})
	if nums := runSource(t, engine, "nums"); !nums.Equal(want) {
		t.Errorf("nums = %v, want %v", nums, want)
	}
}

func TestRunScriptWorksOnACopy(t *testing.T) {
	engine := NewEngine()
	runSource(t, engine, `put box json.decode "{\"n\":1}"`)

	result, err := engine.RunScript(context.Background(), "put box/n 2\nbox/n", nil)
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	if !result.Equal(types.NewInt(2)) {
		t.Errorf("expected 2 inside the script, got %v", result)
	}
	if n := runSource(t, engine, "box/n"); !n.Equal(types.NewInt(1)) {
		t.Errorf("root box/n = %v, want 1", n)
	}
}

func TestRunScriptRunsConcurrently(t *testing.T) {
	engine := NewEngine()
	started := make(chan struct{})
	var once sync.Once
	engine.RegisterFunction("", expr.NewBuiltin("started", expr.Command, 0, func(*expr.Env, []types.Value) (types.Value, error) {
		once.Do(func() { close(started) })
		return types.Null, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := engine.RunScript(ctx, "put i 0\nwhile true\nstarted\nput i add i 1\nend while", nil)
		done <- err
	}()
	<-started

	answered := make(chan types.Value, 1)
	go func() {
		v, _ := engine.Execute(context.Background(), "add 1 2")
		answered <- v
	}()
	select {
	case v := <-answered:
		if !v.Equal(types.NewInt(3)) {
			t.Errorf("expected 3, got %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute waited for the running script")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
