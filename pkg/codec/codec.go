// Package codec converts between bytes and Values for every supported
// mimetype.
//
// A Table maps mimetypes to codecs. Read rejects mimetypes without a codec;
// Print falls back to the value's raw text for them. Resources decode
// leniently: unknown content is kept as bytes.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Codec decodes and encodes one mimetype.
type Codec interface {
	Decode(data []byte) (types.Value, error)
	Encode(v types.Value) ([]byte, error)
}

// CSVPolicy tunes CSV handling.
type CSVPolicy struct {
	// MinRun is how many consecutive records must keep the same field count
	// before encoding stops discovering new columns.
	MinRun int
	// Header decodes the first record as column names, producing a list of
	// maps; without it rows decode as lists.
	Header bool
}

// DefaultCSVPolicy is used when no policy is configured.
var DefaultCSVPolicy = CSVPolicy{MinRun: 5, Header: true}

// Option configures a Table.
type Option func(*Table)

// WithCSVPolicy sets the CSV policy of a table.
func WithCSVPolicy(p CSVPolicy) Option {
	return func(t *Table) {
		if p.MinRun <= 0 {
			p.MinRun = DefaultCSVPolicy.MinRun
		}
		t.csv = p
	}
}

// Table maps mimetypes to codecs.
type Table struct {
	mu     sync.RWMutex
	codecs map[string]Codec
	csv    CSVPolicy
}

// NewTable creates a table with every builtin codec registered.
func NewTable(opts ...Option) *Table {
	t := &Table{codecs: map[string]Codec{}, csv: DefaultCSVPolicy}
	for _, opt := range opts {
		opt(t)
	}
	t.Register(JSON, jsonCodec{})
	t.Register(YAML, yamlCodec{})
	t.Register(CSV, csvCodec{policy: t.csv})
	t.Register(Text, textCodec{})
	t.Register(SQL, textCodec{})
	t.Register(JPQL, textCodec{})
	t.Register(HTML, htmlCodec{})
	t.Register(XML, xmlCodec{})
	t.Register(Properties, propertiesCodec{})
	t.Register(Form, formCodec{})
	return t
}

// Default is the table used by the package-level Read and Print.
var Default = NewTable()

// Register installs c for mimetype, replacing any previous codec.
func (t *Table) Register(mimetype string, c Codec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codecs[Normalize(mimetype)] = c
}

// Lookup returns the codec for mimetype.
func (t *Table) Lookup(mimetype string) (Codec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.codecs[Normalize(mimetype)]
	return c, ok
}

// Supported lists the mimetypes with a codec, sorted.
func (t *Table) Supported() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.codecs))
	for mt := range t.codecs {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// CSVPolicy returns the table's CSV policy.
func (t *Table) CSVPolicy() CSVPolicy {
	return t.csv
}

// Read decodes data as mimetype. A mimetype without a codec is a
// conversion error.
func (t *Table) Read(data []byte, mimetype string) (types.Value, error) {
	c, ok := t.Lookup(mimetype)
	if !ok {
		return types.Null, types.NewConversionError(mimetype, fmt.Sprintf("unsupported mimetype %q", mimetype))
	}
	return decode(c, data, mimetype)
}

// Decode is Read that keeps data of an unknown mimetype as bytes.
func (t *Table) Decode(data []byte, mimetype string) (types.Value, error) {
	c, ok := t.Lookup(mimetype)
	if !ok {
		return types.NewBytes(data), nil
	}
	return decode(c, data, mimetype)
}

// Print encodes v as mimetype. A mimetype without a codec gets the value's
// raw bytes or text.
func (t *Table) Print(v types.Value, mimetype string) ([]byte, error) {
	c, ok := t.Lookup(mimetype)
	if !ok {
		return convert.ToBytes(v), nil
	}
	b, err := c.Encode(v)
	if err != nil {
		return nil, wrap(err, mimetype, "encode")
	}
	return b, nil
}

// Read decodes data with the Default table.
func Read(data []byte, mimetype string) (types.Value, error) {
	return Default.Read(data, mimetype)
}

// Print encodes v with the Default table.
func Print(v types.Value, mimetype string) ([]byte, error) {
	return Default.Print(v, mimetype)
}

func decode(c Codec, data []byte, mimetype string) (types.Value, error) {
	v, err := c.Decode(data)
	if err != nil {
		return types.Null, wrap(err, mimetype, "decode")
	}
	return v, nil
}

func wrap(err error, mimetype, op string) error {
	if types.KindOf(err) != 0 {
		return err
	}
	return &types.Error{
		Kind:    types.ConversionError,
		Message: fmt.Sprintf("cannot %s %s", op, mimetype),
		Name:    mimetype,
		Err:     err,
	}
}
