// Package loader lists and opens course documents from a local directory or
// a Cloud Storage prefix.
package loader

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Source is a collection of course documents.
type Source interface {
	// String returns the location for logging
	String() string

	// List returns the names of document files, sorted
	List(ctx context.Context) ([]string, error)

	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

var documentExts = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
}

// IsDocument reports whether name looks like a course document.
func IsDocument(name string) bool {
	return documentExts[strings.ToLower(path.Ext(name))]
}

// IsParsable reports whether the text of name can be read: plain text or PDF.
func IsParsable(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

const gcsScheme = "gs://"

// Open returns the Source for location: a gs://bucket/prefix URI or a local directory.
func Open(ctx context.Context, location string) (Source, error) {
	if location == "" {
		return nil, goerr.New("document location is empty")
	}
	if strings.HasPrefix(location, gcsScheme) {
		return NewGCS(ctx, location)
	}
	return NewDir(location)
}
