package milvus

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

type lessonRow struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

type catalogRepository struct {
	client     client.Client
	collection string
	dimension  int
}

var catalogOutputFields = []string{fieldTitle, fieldLink, fieldInstructor, fieldLessons}

func (r *catalogRepository) Put(ctx context.Context, entry *model.CatalogEntry) error {
	if entry == nil || entry.Course == nil || entry.Course.Title == "" {
		return goerr.Wrap(model.ErrInvalidArgument, "catalog entry requires course title")
	}
	c := entry.Course

	lessons := make([]lessonRow, len(c.Lessons))
	for i, l := range c.Lessons {
		lessons[i] = lessonRow{Number: l.Number, Title: l.Title, Link: l.Link}
	}
	raw, err := json.Marshal(lessons)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal lessons", goerr.V(model.CourseTitleKey, c.Title))
	}

	_, err = r.client.Upsert(ctx, r.collection, "",
		entity.NewColumnVarChar(fieldID, []string{c.Key()}),
		entity.NewColumnVarChar(fieldTitle, []string{c.Title}),
		entity.NewColumnVarChar(fieldLink, []string{c.Link}),
		entity.NewColumnVarChar(fieldInstructor, []string{c.Instructor}),
		entity.NewColumnVarChar(fieldLessons, []string{string(raw)}),
		entity.NewColumnFloatVector(fieldEmbedding, r.dimension, [][]float32{entry.Embedding}),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert course into milvus", goerr.V(model.CourseTitleKey, c.Title))
	}
	return nil
}

func (r *catalogRepository) query(ctx context.Context, expr string) ([]*model.Course, error) {
	rs, err := r.client.Query(ctx, r.collection, []string{}, expr, catalogOutputFields, strong)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query milvus catalog", goerr.V("expr", expr))
	}
	return decodeCourses(rs)
}

func decodeCourses(columns []entity.Column) ([]*model.Course, error) {
	titles := varCharData(columns, fieldTitle)
	links := varCharData(columns, fieldLink)
	instructors := varCharData(columns, fieldInstructor)
	lessons := varCharData(columns, fieldLessons)

	courses := make([]*model.Course, 0, len(titles))
	for i, title := range titles {
		c := &model.Course{
			Title:      title,
			Link:       at(links, i),
			Instructor: at(instructors, i),
		}
		if raw := at(lessons, i); raw != "" {
			var rows []lessonRow
			if err := json.Unmarshal([]byte(raw), &rows); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal lessons", goerr.V(model.CourseTitleKey, title))
			}
			for _, row := range rows {
				c.Lessons = append(c.Lessons, &model.Lesson{Number: row.Number, Title: row.Title, Link: row.Link})
			}
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func (r *catalogRepository) Get(ctx context.Context, title string) (*model.Course, error) {
	courses, err := r.query(ctx, fieldID+" == "+quote(model.CourseKey(title)))
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "course not found", goerr.V(model.CourseTitleKey, title))
	}
	return courses[0], nil
}

func (r *catalogRepository) Exists(ctx context.Context, title string) (bool, error) {
	courses, err := r.query(ctx, fieldID+" == "+quote(model.CourseKey(title)))
	if err != nil {
		return false, err
	}
	return len(courses) > 0, nil
}

func (r *catalogRepository) List(ctx context.Context) ([]*model.Course, error) {
	courses, err := r.query(ctx, fieldID+` != ""`)
	if err != nil {
		return nil, err
	}
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].Title < courses[j].Title
	})
	return courses, nil
}

func (r *catalogRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.CourseMatch, error) {
	sp, err := searchParam()
	if err != nil {
		return nil, err
	}

	results, err := r.client.Search(ctx, r.collection, []string{}, "", catalogOutputFields,
		[]entity.Vector{entity.FloatVector(embedding)}, fieldEmbedding, entity.COSINE, limit, sp, strong)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search milvus catalog")
	}

	matches := make([]*model.CourseMatch, 0, limit)
	for _, res := range results {
		courses, err := decodeCourses(res.Fields)
		if err != nil {
			return nil, err
		}
		for i := 0; i < res.ResultCount && i < len(courses); i++ {
			matches = append(matches, &model.CourseMatch{
				Course: courses[i],
				Score:  float64(res.Scores[i]),
			})
		}
	}
	return matches, nil
}

func (r *catalogRepository) DeleteAll(ctx context.Context) error {
	if err := r.client.Delete(ctx, r.collection, "", fieldID+` != ""`); err != nil {
		return goerr.Wrap(err, "failed to delete milvus catalog")
	}
	return nil
}
