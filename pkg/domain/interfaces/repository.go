package interfaces

// Repository bundles the two logical collections backing retrieval.
type Repository interface {
	Catalog() CatalogRepository
	Content() ContentRepository
	Close() error
}
