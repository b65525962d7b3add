package resource

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// MaxResponseSize is the maximum HTTP response body size (8 MB).
const MaxResponseSize = 8 * 1024 * 1024

// NewHTTPClient returns a client that follows redirects for GET requests
// only, so a POST answers the redirect itself. A timeout of zero or less
// leaves requests bounded only by the execution's context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 0 && via[0].Method != http.MethodGet {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

type httpResponse struct {
	status int
	header http.Header
	body   []byte
}

// request sends one HTTP request. A non-null v is encoded as the body: a
// Resource sends its own data and mimetype, anything else is sent as JSON.
// Transport failures are logged and reported as nil.
func (r *Resource) request(h Host, method string, v types.Value, withBody bool) (*httpResponse, error) {
	op := strings.ToLower(method)
	var body io.Reader
	contentType := ""
	if withBody {
		mimetype := codec.JSON
		data := v
		if v.Type() == types.TypeResource {
			if res, ok := v.AsResource().(*Resource); ok {
				mimetype = res.Mimetype()
				got, err := res.Get(h)
				if err != nil {
					return nil, err
				}
				data = got
			}
		}
		b, err := h.Codecs().Print(data, mimetype)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
		contentType = mimetype
	}

	req, err := http.NewRequestWithContext(h.Context(), method, r.raw, body)
	if err != nil {
		r.warn(h, op, err)
		return nil, nil
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := h.Client().Do(req)
	if err != nil {
		r.warn(h, op, err)
		return nil, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		r.warn(h, op, err)
		return nil, nil
	}
	if len(respBody) > MaxResponseSize {
		r.warn(h, op, fmt.Errorf("response size exceeds %d bytes", MaxResponseSize))
		return nil, nil
	}

	out := &httpResponse{status: resp.StatusCode, header: resp.Header, body: respBody}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		r.mimetype = codec.Normalize(ct)
	}
	return out, nil
}

func (r *Resource) decodeBody(h Host, resp *httpResponse) (types.Value, error) {
	if len(resp.body) == 0 {
		return types.Null, nil
	}
	return h.Codecs().Decode(resp.body, r.Mimetype())
}

func (r *Resource) httpGet(h Host) (types.Value, error) {
	resp, err := r.request(h, http.MethodGet, types.Null, false)
	if resp == nil {
		return types.Null, err
	}
	if resp.status >= 300 {
		r.warn(h, "get", fmt.Errorf("HTTP %d: %s", resp.status, http.StatusText(resp.status)))
		return types.Null, nil
	}
	return r.decodeBody(h, resp)
}

func (r *Resource) httpPut(h Host, v types.Value) (bool, error) {
	resp, err := r.request(h, http.MethodPut, v, true)
	if resp == nil {
		return false, err
	}
	if resp.status >= 400 {
		r.warn(h, "put", fmt.Errorf("HTTP %d: %s", resp.status, http.StatusText(resp.status)))
	}
	return resp.status < 300, nil
}

// httpPost answers the decoded response body. A redirect answers a
// Resource for its Location, or this Resource when there is none.
func (r *Resource) httpPost(h Host, v types.Value) (types.Value, error) {
	resp, err := r.request(h, http.MethodPost, v, true)
	if resp == nil {
		return types.Null, err
	}
	switch {
	case resp.status >= 400:
		r.warn(h, "post", fmt.Errorf("HTTP %d: %s", resp.status, http.StatusText(resp.status)))
		return types.Null, nil
	case resp.status >= 300:
		loc := resp.header.Get("Location")
		if loc == "" {
			return types.NewResource(r), nil
		}
		return types.NewResource(New(r.resolve(loc))), nil
	}
	return r.decodeBody(h, resp)
}

func (r *Resource) httpDelete(h Host) bool {
	resp, _ := r.request(h, http.MethodDelete, types.Null, false)
	return resp != nil && resp.status < 300
}

// resolve makes a Location header absolute against this Resource.
func (r *Resource) resolve(loc string) string {
	base, err := url.Parse(r.raw)
	if err != nil {
		return loc
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	return base.ResolveReference(ref).String()
}
