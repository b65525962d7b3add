package resource

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

var errIsDirectory = errors.New("cannot write a directory")

func (r *Resource) filePath() string {
	u, err := url.Parse(r.raw)
	if err != nil {
		return ""
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return filepath.FromSlash(p)
}

// fileGet reads a file through the codec of its mimetype. A directory
// answers the sorted list of its entries as file Resources and a missing
// file answers null.
func (r *Resource) fileGet(h Host) (types.Value, error) {
	p := r.filePath()
	info, err := os.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.warn(h, "get", err)
		}
		return types.Null, nil
	}
	if info.IsDir() {
		entries, err := os.ReadDir(p)
		if err != nil {
			r.warn(h, "get", err)
			return types.Null, nil
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		items := make([]types.Value, 0, len(names))
		for _, name := range names {
			items = append(items, types.NewResource(fileResource(filepath.Join(p, name))))
		}
		return types.NewList(items), nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		r.warn(h, "get", err)
		return types.Null, nil
	}
	return h.Codecs().Decode(data, r.Mimetype())
}

// filePut encodes v with the file's mimetype and writes it, creating
// missing parent directories.
func (r *Resource) filePut(h Host, v types.Value) (bool, error) {
	p := r.filePath()
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		r.warn(h, "put", errIsDirectory)
		return false, nil
	}
	b, err := h.Codecs().Print(v, r.Mimetype())
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.warn(h, "put", err)
		return false, nil
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		r.warn(h, "put", err)
		return false, nil
	}
	return true, nil
}

// filePost appends the encoded v to the file and answers the Resource.
func (r *Resource) filePost(h Host, v types.Value) (types.Value, error) {
	p := r.filePath()
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		r.warn(h, "post", errIsDirectory)
		return types.Null, nil
	}
	b, err := h.Codecs().Print(v, r.Mimetype())
	if err != nil {
		return types.Null, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.warn(h, "post", err)
		return types.Null, nil
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.warn(h, "post", err)
		return types.Null, nil
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		r.warn(h, "post", err)
		return types.Null, nil
	}
	return types.NewResource(r), nil
}

// fileDelete removes a file or a whole directory tree. A missing file is
// reported as false.
func (r *Resource) fileDelete(h Host) bool {
	p := r.filePath()
	if _, err := os.Lstat(p); err != nil {
		return false
	}
	if err := os.RemoveAll(p); err != nil {
		r.warn(h, "delete", err)
		return false
	}
	return true
}

func fileResource(p string) *Resource {
	return New((&url.URL{Scheme: SchemeFile, Path: filepath.ToSlash(p)}).String())
}

