package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
)

const (
	CatalogCollection = "courses"
	ContentCollection = "chunks"

	// distanceField receives the cosine distance computed by FindNearest
	distanceField = "vector_distance"
)

type Firestore struct {
	client  *firestore.Client
	catalog *catalogRepository
	content *contentRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces both collections, e.g. for parallel test runs.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.catalog.collectionPrefix = prefix
		f.content.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	f := &Firestore{
		client:  client,
		catalog: newCatalogRepository(client),
		content: newContentRepository(client),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Catalog() interfaces.CatalogRepository {
	return f.catalog
}

func (f *Firestore) Content() interfaces.ContentRepository {
	return f.content
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// deleteQuery removes every document matched by q.
func deleteQuery(ctx context.Context, client *firestore.Client, q firestore.Query) error {
	iter := q.Documents(ctx)
	defer iter.Stop()

	refs, err := collectRefs(iter)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}

	bulkWriter := client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, ref := range refs {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return goerr.Wrap(err, "failed to add Delete operation to bulk writer")
		}
	}
	bulkWriter.Flush()

	return nil
}

// cosineSimilarity converts a FindNearest cosine distance back to similarity.
func cosineSimilarity(distance float64) float64 {
	return 1 - distance
}
