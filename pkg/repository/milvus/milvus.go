package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

const (
	CatalogCollection = "course_catalog"
	ContentCollection = "course_content"

	fieldID           = "id"
	fieldEmbedding    = "embedding"
	fieldTitle        = "title"
	fieldLink         = "link"
	fieldInstructor   = "instructor"
	fieldLessons      = "lessons"
	fieldCourseTitle  = "course_title"
	fieldLessonNumber = "lesson_number"
	fieldChunkIndex   = "chunk_index"
	fieldContent      = "content"

	maxVarChar = 65535
	nlist      = 128
	nprobe     = 16
)

// Milvus is a Repository backed by two Milvus collections with IVF_FLAT/COSINE indexes.
type Milvus struct {
	client    client.Client
	dimension int
	catalog   *catalogRepository
	content   *contentRepository
}

var _ interfaces.Repository = &Milvus{}

type Option func(*Milvus)

// WithCollectionPrefix namespaces both collections.
func WithCollectionPrefix(prefix string) Option {
	return func(m *Milvus) {
		m.catalog.collection = prefix + CatalogCollection
		m.content.collection = prefix + ContentCollection
	}
}

// New connects to Milvus at addr and ensures both collections exist and are loaded.
func New(ctx context.Context, addr string, dimension int, opts ...Option) (*Milvus, error) {
	c, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to milvus", goerr.V("addr", addr))
	}

	m := &Milvus{
		client:    c,
		dimension: dimension,
		catalog:   &catalogRepository{client: c, collection: CatalogCollection, dimension: dimension},
		content:   &contentRepository{client: c, collection: ContentCollection, dimension: dimension},
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.ensureCollection(ctx, m.catalog.collection, catalogSchema(m.catalog.collection, dimension)); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := m.ensureCollection(ctx, m.content.collection, contentSchema(m.content.collection, dimension)); err != nil {
		_ = c.Close()
		return nil, err
	}

	return m, nil
}

func (m *Milvus) Catalog() interfaces.CatalogRepository {
	return m.catalog
}

func (m *Milvus) Content() interfaces.ContentRepository {
	return m.content
}

func (m *Milvus) Close() error {
	return m.client.Close()
}

func (m *Milvus) ensureCollection(ctx context.Context, name string, schema *entity.Schema) error {
	exists, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return goerr.Wrap(err, "failed to check milvus collection", goerr.V("collection", name))
	}

	if !exists {
		if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return goerr.Wrap(err, "failed to create milvus collection", goerr.V("collection", name))
		}

		idx, err := entity.NewIndexIvfFlat(entity.COSINE, nlist)
		if err != nil {
			return goerr.Wrap(err, "failed to build milvus index")
		}
		if err := m.client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
			return goerr.Wrap(err, "failed to create milvus index", goerr.V("collection", name))
		}
		logging.From(ctx).Info("Created milvus collection", "collection", name, "dimension", m.dimension)
	}

	if err := m.client.LoadCollection(ctx, name, false); err != nil {
		return goerr.Wrap(err, "failed to load milvus collection", goerr.V("collection", name))
	}
	return nil
}

func varCharField(name string, maxLength int64) *entity.Field {
	return entity.NewField().WithName(name).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxLength)
}

func primaryKeyField() *entity.Field {
	return varCharField(fieldID, 64).WithIsPrimaryKey(true)
}

func vectorField(dimension int) *entity.Field {
	return entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dimension))
}

func catalogSchema(name string, dimension int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("course catalog for title resolution").
		WithField(primaryKeyField()).
		WithField(varCharField(fieldTitle, 1024)).
		WithField(varCharField(fieldLink, 2048)).
		WithField(varCharField(fieldInstructor, 1024)).
		WithField(varCharField(fieldLessons, maxVarChar)).
		WithField(vectorField(dimension))
}

func contentSchema(name string, dimension int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("course transcript chunks").
		WithField(primaryKeyField()).
		WithField(varCharField(fieldCourseTitle, 1024)).
		WithField(entity.NewField().WithName(fieldLessonNumber).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
		WithField(varCharField(fieldContent, maxVarChar)).
		WithField(vectorField(dimension))
}

func searchParam() (entity.SearchParam, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(nprobe)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build milvus search param")
	}
	return sp, nil
}

func findColumn(columns []entity.Column, name string) entity.Column {
	for _, col := range columns {
		if col.Name() == name {
			return col
		}
	}
	return nil
}

func varCharData(columns []entity.Column, name string) []string {
	if col, ok := findColumn(columns, name).(*entity.ColumnVarChar); ok {
		return col.Data()
	}
	return nil
}

func int64Data(columns []entity.Column, name string) []int64 {
	if col, ok := findColumn(columns, name).(*entity.ColumnInt64); ok {
		return col.Data()
	}
	return nil
}

func at[T any](data []T, i int) T {
	var zero T
	if i < len(data) {
		return data[i]
	}
	return zero
}

// quote renders s as a Milvus string literal.
func quote(s string) string {
	return strconv.Quote(s)
}

// filterExpr renders filter as a Milvus boolean expression. Empty means no filter.
func filterExpr(filter model.SearchFilter) string {
	var conds []string
	if filter.CourseTitle != "" {
		conds = append(conds, fmt.Sprintf("%s == %s", fieldCourseTitle, quote(filter.CourseTitle)))
	}
	if filter.LessonNumber != nil {
		conds = append(conds, fmt.Sprintf("%s == %d", fieldLessonNumber, *filter.LessonNumber))
	}
	return strings.Join(conds, " and ")
}

// strong makes reads observe preceding upserts and deletes.
var strong = client.WithSearchQueryConsistencyLevel(entity.ClStrong)
