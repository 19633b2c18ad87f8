package model

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// EmbeddingDimension is the default dimension of embedding vectors.
// Gemini text-embedding-004 uses 768 dimensions.
const EmbeddingDimension = 768

// keyNamespace scopes the UUIDv5 keys derived from course titles.
var keyNamespace = uuid.MustParse("5b0c3f7e-8a51-4d3c-9f2e-6c1d9a7b4e21")

// Course is a parsed course transcript. Title is the unique identifier.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []*Lesson
}

// Key returns a stable storage key derived from the course title.
func (c *Course) Key() string {
	return CourseKey(c.Title)
}

// CourseKey returns the stable storage key for a course title.
func CourseKey(title string) string {
	return uuid.NewSHA1(keyNamespace, []byte(title)).String()
}

// Lesson returns the lesson with the given number, or nil.
func (c *Course) Lesson(number int) *Lesson {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l
		}
	}
	return nil
}

// LessonLink returns the link of the given lesson, or empty string.
func (c *Course) LessonLink(number int) string {
	if l := c.Lesson(number); l != nil {
		return l.Link
	}
	return ""
}

// Lesson is owned by its Course. Number is unique within the course only.
type Lesson struct {
	Number int
	Title  string
	Link   string
	Body   string
}

// Chunk is a bounded, context-prefixed window of lesson text.
type Chunk struct {
	CourseTitle  string
	LessonNumber int
	Index        int
	Content      string
}

// ID returns a stable identifier so re-ingestion overwrites existing chunks.
func (c *Chunk) ID() string {
	return uuid.NewSHA1(keyNamespace, []byte(c.CourseTitle+"\x00"+strconv.Itoa(c.Index))).String()
}

func (c *Chunk) String() string {
	return fmt.Sprintf("%s#%d", c.CourseTitle, c.Index)
}

// ChunkRecord is a chunk with its embedding, as stored in the content index.
type ChunkRecord struct {
	Chunk     *Chunk
	Embedding []float32
}

// CatalogEntry is a course with the embedding of its title, as stored in the catalog index.
type CatalogEntry struct {
	Course    *Course
	Embedding []float32
}

// ContentHit is a chunk returned by a similarity search. Higher Score is more similar.
type ContentHit struct {
	Chunk *Chunk
	Score float64
}

// CourseMatch is a catalog entry returned by a similarity search.
type CourseMatch struct {
	Course *Course
	Score  float64
}

// SearchFilter restricts content search. Zero value means no restriction.
type SearchFilter struct {
	CourseTitle  string
	LessonNumber *int
}

// Match reports whether chunk satisfies the filter.
func (f SearchFilter) Match(c *Chunk) bool {
	if f.CourseTitle != "" && c.CourseTitle != f.CourseTitle {
		return false
	}
	if f.LessonNumber != nil && c.LessonNumber != *f.LessonNumber {
		return false
	}
	return true
}

// CatalogStats summarizes the ingested courses.
type CatalogStats struct {
	TotalCourses int
	CourseTitles []string
}
