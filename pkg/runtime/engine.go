// Package runtime is the embedding surface of the language: an Engine owns
// a function registry, a codec table and a root Context, and executes
// source text against them.
package runtime

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/scope"
	"github.com/lemonberrylabs/uriel/pkg/stdlib"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// ArgsName is the constant a script run through RunScript sees its
// arguments under.
const ArgsName = "args"

// Engine executes expressions against a persistent root Context.
//
// Execute, Run, ExecuteValue and Session share the root Context and are
// serialized. RunScript works on a private copy of the root, so scripts run
// concurrently with each other and with root executions.
type Engine struct {
	reg    *expr.Registry
	codecs *codec.Table
	client *http.Client
	logger log.Logger
	out    io.Writer

	mu   sync.Mutex
	root *scope.Context
}

type config struct {
	reg       *expr.Registry
	client    *http.Client
	logger    log.Logger
	out       io.Writer
	csv       *codec.CSVPolicy
	constants map[string]types.Value
}

// Option configures an Engine.
type Option func(*config)

// WithOutput sets where print and shell write.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithHTTPClient sets the client http(s) resources use.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.client = hc }
}

// WithCSVPolicy sets how CSV data is read and printed.
func WithCSVPolicy(p codec.CSVPolicy) Option {
	return func(c *config) { c.csv = &p }
}

// WithConstants seeds the root Context with read-only values.
func WithConstants(m map[string]types.Value) Option {
	return func(c *config) { c.constants = m }
}

// WithRegistry replaces the builtin registry. The registry is used as
// given; call stdlib.Install on it to keep the builtins.
func WithRegistry(r *expr.Registry) Option {
	return func(c *config) { c.reg = r }
}

// NewEngine creates an Engine with the builtin functions installed.
func NewEngine(opts ...Option) *Engine {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.reg == nil {
		cfg.reg = stdlib.NewRegistry()
	}
	if cfg.client == nil {
		cfg.client = resource.NewHTTPClient(0)
	}
	if cfg.out == nil {
		cfg.out = io.Discard
	}

	var tableOpts []codec.Option
	if cfg.csv != nil {
		tableOpts = append(tableOpts, codec.WithCSVPolicy(*cfg.csv))
	}
	codecs := codec.NewTable(tableOpts...)
	codecs.Register(codec.Script, scriptCodec{reg: cfg.reg})

	return &Engine{
		reg:    cfg.reg,
		codecs: codecs,
		client: cfg.client,
		logger: cfg.logger,
		out:    cfg.out,
		root:   scope.New(cfg.constants),
	}
}

// Registry returns the function registry.
func (e *Engine) Registry() *expr.Registry { return e.reg }

// Codecs returns the engine's codec table.
func (e *Engine) Codecs() *codec.Table { return e.codecs }

// Scope returns the root Context. It must not be used while a root
// execution or Session is running.
func (e *Engine) Scope() *scope.Context { return e.root }

// Compile compiles source text against the registry.
func (e *Engine) Compile(src string) (*expr.Expression, error) {
	return expr.Compile(e.reg, src)
}

// Execute compiles and runs src, fetching any Resource it answers.
func (e *Engine) Execute(ctx context.Context, src string) (types.Value, error) {
	x, err := e.Compile(src)
	if err != nil {
		return types.Null, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env(ctx, e.root).Execute(x.Value())
}

// Run compiles and runs src but answers Resources unfetched.
func (e *Engine) Run(ctx context.Context, src string) (types.Value, error) {
	x, err := e.Compile(src)
	if err != nil {
		return types.Null, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env(ctx, e.root).Evaluate(x.Value())
}

// RunScript executes src against a snapshot of the root Context, in a
// child holding args as the constant "args". The root lock is held only
// while the snapshot is taken. Variables the script creates or changes are
// discarded.
func (e *Engine) RunScript(ctx context.Context, src string, args []types.Value) (types.Value, error) {
	x, err := e.Compile(src)
	if err != nil {
		return types.Null, err
	}
	e.mu.Lock()
	base := e.root.Snapshot()
	e.mu.Unlock()

	child, err := base.Child(map[string]types.Value{
		ArgsName: types.NewList(append([]types.Value{}, args...)),
	})
	if err != nil {
		return types.Null, err
	}
	v, err := e.env(ctx, child).Execute(x.Value())
	if cerr := child.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return types.Null, err
	}
	return v, nil
}

// ExecuteValue runs an already compiled value, such as one read through the
// script codec.
func (e *Engine) ExecuteValue(ctx context.Context, v types.Value) (types.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env(ctx, e.root).Execute(v)
}

// Session runs fn with exclusive use of an Env over the root Context.
func (e *Engine) Session(ctx context.Context, fn func(env *expr.Env) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.env(ctx, e.root))
}

// ReadData decodes data of the given mimetype.
func (e *Engine) ReadData(data []byte, mimetype string) (types.Value, error) {
	return e.codecs.Read(data, mimetype)
}

// PrintData encodes v as mimetype.
func (e *Engine) PrintData(v types.Value, mimetype string) ([]byte, error) {
	return e.codecs.Print(v, mimetype)
}

// RegisterFunction binds fn under name. An existing binding is kept and
// false is returned.
func (e *Engine) RegisterFunction(name string, fn expr.Function) bool {
	if name == "" {
		return e.reg.Register(fn)
	}
	return e.reg.Alias(name, fn)
}

// RegisterType makes the members of t callable and binds its constructor.
func (e *Engine) RegisterType(t types.HostType, name string) expr.Function {
	return e.reg.RegisterType(t, name)
}

func (e *Engine) env(ctx context.Context, cx *scope.Context) *expr.Env {
	return expr.NewEnv(ctx, e.reg,
		expr.WithScope(cx),
		expr.WithCodecs(e.codecs),
		expr.WithHTTPClient(e.client),
		expr.WithLogger(e.logger),
		expr.WithOutput(e.out),
	)
}

// scriptCodec reads source text as a compiled Expression and prints values
// back as text.
type scriptCodec struct {
	reg *expr.Registry
}

func (c scriptCodec) Decode(data []byte) (types.Value, error) {
	x, err := expr.Compile(c.reg, string(data))
	if err != nil {
		return types.Null, err
	}
	return x.Value(), nil
}

func (scriptCodec) Encode(v types.Value) ([]byte, error) {
	if x, ok := expr.AsExpression(v); ok {
		return []byte(x.String()), nil
	}
	return []byte(codec.Stringify(v)), nil
}
