package resource

import (
	"errors"

	"github.com/vincent-petithory/dataurl"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

var (
	errUnsupported = errors.New("operation not supported for this uri")
	errNotAMap     = errors.New("value must be a non-empty map")
)

func decodeDataURL(raw string) (*dataurl.DataURL, error) {
	return dataurl.DecodeString(raw)
}

func (r *Resource) dataGet(h Host) (types.Value, error) {
	du, err := decodeDataURL(r.raw)
	if err != nil {
		r.warn(h, "get", err)
		return types.Null, nil
	}
	return h.Codecs().Decode(du.Data, codec.Normalize(du.ContentType()))
}

// dataPut re-encodes v with the URI's own mimetype and rewrites the URI. A
// base64 URI stays base64.
func (r *Resource) dataPut(h Host, v types.Value) (bool, error) {
	du, err := decodeDataURL(r.raw)
	if err != nil {
		r.warn(h, "put", err)
		return false, nil
	}
	mimetype := codec.Normalize(du.ContentType())
	b, err := h.Codecs().Print(v, mimetype)
	if err != nil {
		return false, err
	}
	out := dataurl.New(b, mimetype)
	if du.Encoding != dataurl.EncodingBase64 {
		out.Encoding = dataurl.EncodingASCII
	}
	r.raw = out.String()
	return true, nil
}

// dataPost appends v to the decoded content and stores the result back in
// the URI. Lists grow, maps merge with a map, text concatenates and any
// other content becomes a list of both values.
func (r *Resource) dataPost(h Host, v types.Value) (types.Value, error) {
	current, err := r.dataGet(h)
	if err != nil {
		return types.Null, err
	}
	var updated types.Value
	switch {
	case current.IsNull():
		updated = v
	case current.Type() == types.TypeList || current.Type() == types.TypeSet:
		updated, _ = PostValue(current, v)
	case current.Type() == types.TypeMap && v.Type() == types.TypeMap:
		m := current.AsMap().Clone()
		for _, k := range v.AsMap().Keys() {
			item, _ := v.AsMap().Get(k)
			m.Set(k, item)
		}
		updated = types.NewMap(m)
	case current.Type() == types.TypeString:
		updated = types.NewString(current.AsString() + convert.ToString(v))
	default:
		updated = types.NewList([]types.Value{current, v})
	}
	if ok, err := r.dataPut(h, updated); !ok {
		return types.Null, err
	}
	return updated, nil
}
