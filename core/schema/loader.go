package schema

import (
	"context"
	"io/fs"
	"path"
	"strings"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
)

// DefaultEncoding is the only encoding FSLoader reads.
const DefaultEncoding = "utf-8"

// Loader reads raw grammar text. It is supplied by the host so the cache
// never touches the filesystem or network itself.
type Loader interface {
	Load(ctx context.Context, path, encoding string) (string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path, encoding string) (string, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path, encoding string) (string, error) {
	return f(ctx, path, encoding)
}

// FSLoader loads grammars from an fs.FS such as os.DirFS.
type FSLoader struct {
	FS fs.FS
}

// Load reads path from the filesystem.
func (l FSLoader) Load(ctx context.Context, p, encoding string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !isUTF8(encoding) {
		return "", jerrors.NewUnsupported("encoding "+encoding, "only utf-8 grammars are supported")
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	data, err := fs.ReadFile(l.FS, name)
	if err != nil {
		return "", jerrors.NewIO("read schema", p, err)
	}
	return string(data), nil
}

func isUTF8(encoding string) bool {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}
