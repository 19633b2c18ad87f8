package loader

import (
	"context"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// Dir reads documents from the top level of a local directory.
type Dir struct {
	root string
	fsys fs.FS
}

func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat document directory", goerr.V("path", root))
	}
	if !info.IsDir() {
		return nil, goerr.New("document path is not a directory", goerr.V("path", root))
	}
	return &Dir{root: root, fsys: os.DirFS(root)}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

func (d *Dir) String() string { return d.root }

func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := fs.ReadDir(d.fsys, ".")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read document directory", goerr.V("path", d.root))
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := d.fsys.Open(name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open document", goerr.V("path", d.root), goerr.V("name", name))
	}
	return f, nil
}
