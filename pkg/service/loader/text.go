package loader

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

const (
	maxPDFSize  = 32 * 1024 * 1024
	maxPDFPages = 500
)

// Text returns the plain text of document name read from r. Plain text is
// passed through; PDF pages are extracted in order, one line per text line.
func Text(name string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt":
		return r, nil
	case ".pdf":
		return pdfText(name, r)
	default:
		return nil, goerr.Wrap(model.ErrDocumentFormat, "document format is not supported", goerr.V(model.DocumentKey, name))
	}
}

func pdfText(name string, r io.Reader) (_ io.Reader, err error) {
	// The PDF parser panics on some malformed inputs
	defer func() {
		if v := recover(); v != nil {
			err = goerr.Wrap(model.ErrDocumentFormat, "malformed PDF", goerr.V(model.DocumentKey, name), goerr.V("panic", v))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(r, maxPDFSize+1))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read PDF", goerr.V(model.DocumentKey, name))
	}
	if len(data) > maxPDFSize {
		return nil, goerr.Wrap(model.ErrDocumentFormat, "PDF is too large", goerr.V(model.DocumentKey, name), goerr.V("limit", maxPDFSize))
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, goerr.Wrap(model.ErrDocumentFormat, "invalid PDF", goerr.V(model.DocumentKey, name), goerr.V("error", err.Error()))
	}

	pages := doc.NumPage()
	if pages == 0 {
		return nil, goerr.Wrap(model.ErrDocumentFormat, "PDF has no pages", goerr.V(model.DocumentKey, name))
	}
	if pages > maxPDFPages {
		return nil, goerr.Wrap(model.ErrDocumentFormat, "PDF has too many pages", goerr.V(model.DocumentKey, name), goerr.V("pages", pages))
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, goerr.Wrap(model.ErrDocumentFormat, "failed to extract PDF text",
				goerr.V(model.DocumentKey, name), goerr.V("page", i), goerr.V("error", err.Error()))
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			b.WriteByte('\n')
		}
	}

	return strings.NewReader(strings.ReplaceAll(b.String(), "\x00", "")), nil
}
