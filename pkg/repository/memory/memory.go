package memory

import (
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
)

// Memory is an in-process Repository. Similarity search is brute-force cosine.
type Memory struct {
	catalog *catalogRepository
	content *contentRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		catalog: newCatalogRepository(),
		content: newContentRepository(),
	}
}

func (m *Memory) Catalog() interfaces.CatalogRepository {
	return m.catalog
}

func (m *Memory) Content() interfaces.ContentRepository {
	return m.content
}

func (m *Memory) Close() error {
	return nil
}
