package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type lessonDoc struct {
	Number int    `firestore:"number"`
	Title  string `firestore:"title"`
	Link   string `firestore:"link"`
}

// courseDoc is the Firestore document representation of a catalog entry.
// Lesson bodies live in the chunks collection only.
type courseDoc struct {
	Title      string             `firestore:"title"`
	Link       string             `firestore:"link"`
	Instructor string             `firestore:"instructor"`
	Lessons    []lessonDoc        `firestore:"lessons"`
	Embedding  firestore.Vector32 `firestore:"embedding,omitempty"`
	Distance   float64            `firestore:"vector_distance,omitempty"`
}

func toCourseDoc(entry *model.CatalogEntry) *courseDoc {
	c := entry.Course
	doc := &courseDoc{
		Title:      c.Title,
		Link:       c.Link,
		Instructor: c.Instructor,
		Lessons:    make([]lessonDoc, len(c.Lessons)),
	}
	for i, l := range c.Lessons {
		doc.Lessons[i] = lessonDoc{Number: l.Number, Title: l.Title, Link: l.Link}
	}
	if len(entry.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(entry.Embedding)
	}
	return doc
}

func fromCourseDoc(d *courseDoc) *model.Course {
	c := &model.Course{
		Title:      d.Title,
		Link:       d.Link,
		Instructor: d.Instructor,
		Lessons:    make([]*model.Lesson, len(d.Lessons)),
	}
	for i, l := range d.Lessons {
		c.Lessons[i] = &model.Lesson{Number: l.Number, Title: l.Title, Link: l.Link}
	}
	return c
}

type catalogRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newCatalogRepository(client *firestore.Client) *catalogRepository {
	return &catalogRepository{client: client}
}

func (r *catalogRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + CatalogCollection)
}

func (r *catalogRepository) Put(ctx context.Context, entry *model.CatalogEntry) error {
	if entry == nil || entry.Course == nil || entry.Course.Title == "" {
		return goerr.Wrap(model.ErrInvalidArgument, "catalog entry requires course title")
	}

	docRef := r.collection().Doc(entry.Course.Key())
	if _, err := docRef.Set(ctx, toCourseDoc(entry)); err != nil {
		return goerr.Wrap(err, "failed to put course", goerr.V(model.CourseTitleKey, entry.Course.Title))
	}
	return nil
}

func (r *catalogRepository) Get(ctx context.Context, title string) (*model.Course, error) {
	doc, err := r.collection().Doc(model.CourseKey(title)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "course not found", goerr.V(model.CourseTitleKey, title))
		}
		return nil, goerr.Wrap(err, "failed to get course", goerr.V(model.CourseTitleKey, title))
	}

	var d courseDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal course", goerr.V(model.CourseTitleKey, title))
	}
	return fromCourseDoc(&d), nil
}

func (r *catalogRepository) Exists(ctx context.Context, title string) (bool, error) {
	_, err := r.collection().Doc(model.CourseKey(title)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to check course", goerr.V(model.CourseTitleKey, title))
	}
	return true, nil
}

func (r *catalogRepository) List(ctx context.Context) ([]*model.Course, error) {
	iter := r.collection().OrderBy("title", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	courses := make([]*model.Course, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate courses")
		}

		var d courseDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal course")
		}
		courses = append(courses, fromCourseDoc(&d))
	}
	return courses, nil
}

func (r *catalogRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.CourseMatch, error) {
	vq := r.collection().FindNearest("embedding", firestore.Vector32(embedding), limit,
		firestore.DistanceMeasureCosine, &firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.CourseMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate course vector search results")
		}

		var d courseDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal course from vector search")
		}
		matches = append(matches, &model.CourseMatch{
			Course: fromCourseDoc(&d),
			Score:  cosineSimilarity(d.Distance),
		})
	}
	return matches, nil
}

func (r *catalogRepository) DeleteAll(ctx context.Context) error {
	if err := deleteQuery(ctx, r.client, r.collection().Query); err != nil {
		return goerr.Wrap(err, "failed to delete courses")
	}
	return nil
}
