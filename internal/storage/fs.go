package storage

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

var ErrBadKey = errors.New("storage: invalid key")

// FSStore serves objects from a local directory. With a public URL set,
// keys resolve below it; otherwise a file:// URL is returned for dev.
type FSStore struct {
	base      string
	publicURL string
}

func NewFSStore(base, publicURL string) *FSStore {
	if base == "" {
		base = "./data"
	}
	return &FSStore{base: base, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *FSStore) SignedURL(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + (&url.URL{Path: clean}).EscapedPath(), nil
	}
	abs, err := filepath.Abs(filepath.Join(s.base, filepath.FromSlash(clean)))
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", ErrBadKey
	}
	slashed := strings.ReplaceAll(k, "\\", "/")
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", ErrBadKey
		}
	}
	c := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if c == "" || c == "." {
		return "", ErrBadKey
	}
	return c, nil
}
