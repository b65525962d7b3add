// Package resource implements URI-addressed data sources.
//
// A Resource is created from text and detects its scheme: a bare variable
// path addresses the current Context, file: the filesystem, data: inline
// RFC 2397 content, http(s): a remote endpoint and app: the Context as a
// whole. Every scheme supports get, put, post and delete. I/O failures are
// logged and answered with null or false; codec failures are returned.
package resource

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/scope"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Schemes a Resource can address. The empty scheme is a Context path.
const (
	SchemeNone  = ""
	SchemeFile  = "file"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeData  = "data"
	SchemeApp   = "app"
)

var supportedSchemes = map[string]bool{
	SchemeFile: true, SchemeHTTP: true, SchemeHTTPS: true, SchemeData: true, SchemeApp: true,
}

// Host supplies what resource operations need from the running engine.
type Host interface {
	Context() context.Context
	Scope() *scope.Context
	Codecs() *codec.Table
	Client() *http.Client
	Logger() log.Logger
}

// Resource is a URI-addressed data source.
type Resource struct {
	src      string
	scheme   string
	raw      string
	valid    bool
	mimetype string
}

func init() {
	convert.Register(types.TypeResource, func(v types.Value) (types.Value, error) {
		return types.NewResource(FromValue(v)), nil
	})
}

// New creates a Resource from text. Empty text addresses the whole
// Context. Text that is neither a supported URI, a filesystem path starting
// with /, ./ or ../, nor a valid variable path gives an invalid Resource.
func New(src string) *Resource {
	r := &Resource{src: src}
	txt := strings.TrimSpace(src)
	switch {
	case txt == "":
		r.scheme, r.raw, r.valid = SchemeApp, "app:/", true
	case isRelativeFile(txt):
		abs, err := filepath.Abs(txt)
		if err != nil {
			return r
		}
		r.scheme, r.raw, r.valid = SchemeFile, (&url.URL{Scheme: SchemeFile, Path: filepath.ToSlash(abs)}).String(), true
	default:
		if scheme, ok := uriScheme(txt); ok {
			if !supportedSchemes[scheme] {
				return r
			}
			if scheme != SchemeData {
				if _, err := url.Parse(txt); err != nil {
					return r
				}
			}
			r.scheme, r.raw, r.valid = scheme, txt, true
			return r
		}
		if IsValidPath(txt) {
			r.scheme, r.raw, r.valid = SchemeNone, txt, true
		}
	}
	return r
}

// Parse is New that reports invalid input.
func Parse(src string) (*Resource, bool) {
	r := New(src)
	return r, r.valid
}

// FromValue converts a value to a Resource: a resource is kept, valid text
// is parsed, and anything else becomes a data: URI holding the value, as
// text/plain for text and application/json otherwise.
func FromValue(v types.Value) *Resource {
	switch v.Type() {
	case types.TypeResource:
		if r, ok := v.AsResource().(*Resource); ok {
			return r
		}
		return New(v.AsResource().String())
	case types.TypeString:
		if r, ok := Parse(v.AsString()); ok {
			return r
		}
		return New("data:" + codec.Text + "," + url.PathEscape(v.AsString()))
	}
	b, err := v.MarshalJSON()
	if err != nil {
		b = []byte("null")
	}
	return New("data:" + codec.JSON + "," + url.PathEscape(string(b)))
}

// Valid reports whether the source text was recognized.
func (r *Resource) Valid() bool {
	return r.valid
}

// Scheme returns the URI scheme, empty for a Context path.
func (r *Resource) Scheme() string {
	return r.scheme
}

// String returns the URI, or the source text when it was not recognized.
func (r *Resource) String() string {
	if !r.valid {
		return r.src
	}
	return r.raw
}

// Key returns the last segment of a Context path, or of the URI path for
// other schemes. It names the variable a bloc binds to.
func (r *Resource) Key() string {
	if r.scheme == SchemeNone {
		segs := Segments(r.raw)
		if len(segs) == 0 {
			return ""
		}
		return segs[len(segs)-1]
	}
	u, err := url.Parse(r.raw)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return ""
	}
	return path.Base(u.Path)
}

// Mimetype returns the content type. Context paths and app: use the script
// mimetype, data: its declared type, file: the extension table (directories
// are inode/directory, unknown extensions text/plain) and http(s) the last
// response's content-type, else the extension table, else text/html.
func (r *Resource) Mimetype() string {
	if r.mimetype != "" {
		return r.mimetype
	}
	switch r.scheme {
	case SchemeNone, SchemeApp:
		return codec.Script
	case SchemeData:
		if du, err := decodeDataURL(r.raw); err == nil {
			return codec.Normalize(du.ContentType())
		}
		return codec.Text
	case SchemeFile:
		p := r.filePath()
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return codec.Directory
		}
		if mt, ok := codec.ForExtension(p); ok {
			return mt
		}
		return codec.Text
	case SchemeHTTP, SchemeHTTPS:
		if u, err := url.Parse(r.raw); err == nil {
			if mt, ok := codec.ForExtension(u.Path); ok {
				return mt
			}
		}
		return codec.HTML
	}
	return codec.Text
}

// SetMimetype overrides the detected content type.
func (r *Resource) SetMimetype(mimetype string) {
	r.mimetype = codec.Normalize(mimetype)
}

// Get fetches the resource's data.
func (r *Resource) Get(h Host) (types.Value, error) {
	if !r.valid {
		r.warn(h, "get", errUnsupported)
		return types.Null, nil
	}
	switch r.scheme {
	case SchemeNone:
		return getPath(h.Scope(), Segments(r.raw)), nil
	case SchemeApp:
		return r.appGet(h), nil
	case SchemeData:
		return r.dataGet(h)
	case SchemeFile:
		return r.fileGet(h)
	default:
		return r.httpGet(h)
	}
}

// Put replaces the resource's data with v and reports success.
func (r *Resource) Put(h Host, v types.Value) (bool, error) {
	if !r.valid {
		r.warn(h, "put", errUnsupported)
		return false, nil
	}
	switch r.scheme {
	case SchemeNone:
		return putPath(h.Scope(), Segments(r.raw), v), nil
	case SchemeApp:
		return r.appMerge(h, "put", v), nil
	case SchemeData:
		return r.dataPut(h, v)
	case SchemeFile:
		return r.filePut(h, v)
	default:
		return r.httpPut(h, v)
	}
}

// Post adds v to the resource. A Context path appends to a list and
// answers the new last element; file: appends to the file and answers the
// Resource; data: appends to its decoded content; http(s) answers the
// decoded response, or a Resource for a redirect's Location.
func (r *Resource) Post(h Host, v types.Value) (types.Value, error) {
	if !r.valid {
		r.warn(h, "post", errUnsupported)
		return types.Null, nil
	}
	switch r.scheme {
	case SchemeNone:
		return postPath(h.Scope(), Segments(r.raw), v), nil
	case SchemeApp:
		if r.appMerge(h, "post", v) {
			return v, nil
		}
		return types.Null, nil
	case SchemeData:
		return r.dataPost(h, v)
	case SchemeFile:
		return r.filePost(h, v)
	default:
		return r.httpPost(h, v)
	}
}

// Delete removes the resource and reports success.
func (r *Resource) Delete(h Host) (bool, error) {
	if !r.valid {
		r.warn(h, "delete", errUnsupported)
		return false, nil
	}
	switch r.scheme {
	case SchemeNone:
		return deletePath(h.Scope(), Segments(r.raw)), nil
	case SchemeFile:
		return r.fileDelete(h), nil
	case SchemeHTTP, SchemeHTTPS:
		return r.httpDelete(h), nil
	}
	r.warn(h, "delete", errUnsupported)
	return false, nil
}

func (r *Resource) appGet(h Host) types.Value {
	segs := r.appSegments()
	if len(segs) == 0 {
		return types.NewMap(h.Scope().ToMap())
	}
	return getPath(h.Scope(), segs)
}

func (r *Resource) appMerge(h Host, op string, v types.Value) bool {
	if segs := r.appSegments(); len(segs) > 0 {
		if op == "put" {
			return putPath(h.Scope(), segs, v)
		}
		return !postPath(h.Scope(), segs, v).IsNull()
	}
	if v.Type() != types.TypeMap || v.AsMap().Len() == 0 {
		r.warn(h, op, errNotAMap)
		return false
	}
	h.Scope().PutAll(v.AsMap())
	return true
}

func (r *Resource) appSegments() []string {
	u, err := url.Parse(r.raw)
	if err != nil {
		return nil
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return Segments(strings.Trim(p, "/"))
}

func (r *Resource) warn(h Host, op string, err error) {
	h.Logger().Warn("resource operation failed",
		slog.String("op", op),
		slog.String("uri", r.String()),
		slog.Any("error", types.NewResourceError(r.String(), err)),
	)
}

func isRelativeFile(txt string) bool {
	return strings.HasPrefix(txt, "/") || strings.HasPrefix(txt, "./") || strings.HasPrefix(txt, "../")
}

// uriScheme returns the lower-cased run of letters before the first colon,
// if it is at least two letters long.
func uriScheme(txt string) (string, bool) {
	for i, c := range txt {
		if c == ':' && i > 1 {
			return strings.ToLower(txt[:i]), true
		}
		if c > unicode.MaxASCII || !unicode.IsLetter(c) {
			return "", false
		}
	}
	return "", false
}

// IsValidPath reports whether txt is a variable path: segments separated by
// / or ., each made of letters, digits, _ and -, where _ and - never start
// or end a segment and the first segment starts with a letter.
func IsValidPath(txt string) bool {
	segs := strings.FieldsFunc(txt, isSeparator)
	if len(segs) == 0 || len(segs) != separators(txt)+1 {
		return false
	}
	for i, seg := range segs {
		if seg == "" {
			return false
		}
		runes := []rune(seg)
		for j, c := range runes {
			switch {
			case unicode.IsLetter(c):
			case unicode.IsDigit(c):
				if i == 0 && j == 0 {
					return false
				}
			case c == '_' || c == '-':
				if j == 0 || j == len(runes)-1 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

// Segments splits a variable path on / and .
func Segments(p string) []string {
	if p == "" {
		return nil
	}
	return strings.FieldsFunc(p, isSeparator)
}

func isSeparator(c rune) bool {
	return c == '/' || c == '.'
}

func separators(txt string) int {
	n := 0
	for _, c := range txt {
		if isSeparator(c) {
			n++
		}
	}
	return n
}
