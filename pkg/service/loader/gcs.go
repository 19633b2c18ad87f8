package loader

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// GCS reads documents stored under a Cloud Storage prefix. Objects in nested
// "directories" are ignored.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(ctx context.Context, uri string) (*GCS, error) {
	bucket, prefix, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

// ParseGCSURI splits gs://bucket/prefix. A non-empty prefix always ends with "/".
func ParseGCSURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, gcsScheme)
	if !ok {
		return "", "", goerr.New("not a gs:// URI", goerr.V("uri", uri))
	}

	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", goerr.New("bucket is empty", goerr.V("uri", uri))
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

func (g *GCS) String() string {
	return gcsScheme + g.bucket + "/" + g.prefix
}

func (g *GCS) List(ctx context.Context) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix:    g.prefix,
		Delimiter: "/",
	})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("bucket", g.bucket), goerr.V("prefix", g.prefix))
		}
		if attrs.Name == "" {
			continue
		}
		name := strings.TrimPrefix(attrs.Name, g.prefix)
		if !IsDocument(name) {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.prefix + name).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object", goerr.V("bucket", g.bucket), goerr.V("name", g.prefix+name))
	}
	return r, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
