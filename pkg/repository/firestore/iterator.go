package firestore

import (
	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

func collectRefs(iter *firestore.DocumentIterator) ([]*firestore.DocumentRef, error) {
	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents for deletion")
		}
		refs = append(refs, doc.Ref)
	}
	return refs, nil
}
