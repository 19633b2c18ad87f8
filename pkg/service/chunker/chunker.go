package chunker

import (
	"fmt"

	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// Chunker splits lesson bodies into fixed-size overlapping windows.
// Sizes are measured in runes.
type Chunker struct {
	size    int
	overlap int
}

type Option func(*Chunker)

func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a Chunker. An overlap not smaller than the chunk size is clamped to size/4.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		c.size = DefaultChunkSize
	}
	if c.overlap < 0 {
		c.overlap = 0
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Windows returns the raw windows of text. Adjacent windows share exactly
// Overlap() runes; the last window may be shorter than Size().
func (c *Chunker) Windows(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var windows []string
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}

// Split chunks every lesson of course. Chunks never span lessons and are
// numbered course-wide in lesson order.
func (c *Chunker) Split(course *model.Course) []*model.Chunk {
	var chunks []*model.Chunk
	for _, lesson := range course.Lessons {
		for _, w := range c.Windows(lesson.Body) {
			chunks = append(chunks, &model.Chunk{
				CourseTitle:  course.Title,
				LessonNumber: lesson.Number,
				Index:        len(chunks),
				Content:      Prefix(course.Title, lesson.Number) + w,
			})
		}
	}
	return chunks
}

// Prefix is the context string prepended to every stored chunk.
func Prefix(courseTitle string, lessonNumber int) string {
	return fmt.Sprintf("Course %s Lesson %d content: ", courseTitle, lessonNumber)
}
