package chunker_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/service/chunker"
)

const mcpDoc = `Course Title: Intro to MCP
Course Link: https://example.com/mcp
Course Instructor: Ada Lovelace

Lesson 0: Introduction
Lesson Link: https://example.com/mcp/0
MCP is the Model Context Protocol. It connects models to tools.

Lesson 1: Building a server
An MCP server exposes tools, resources and prompts.
Lesson Link: this line is body text, not a link
`

func TestParse(t *testing.T) {
	t.Run("parses header and lessons", func(t *testing.T) {
		course, err := chunker.Parse("mcp.txt", strings.NewReader(mcpDoc))
		gt.NoError(t, err).Required()

		gt.Value(t, course.Title).Equal("Intro to MCP")
		gt.Value(t, course.Link).Equal("https://example.com/mcp")
		gt.Value(t, course.Instructor).Equal("Ada Lovelace")
		gt.Array(t, course.Lessons).Length(2).Required()

		gt.Value(t, course.Lessons[0].Number).Equal(0)
		gt.Value(t, course.Lessons[0].Title).Equal("Introduction")
		gt.Value(t, course.Lessons[0].Link).Equal("https://example.com/mcp/0")
		gt.Value(t, course.Lessons[0].Body).Equal("MCP is the Model Context Protocol. It connects models to tools.")

		gt.Value(t, course.Lessons[1].Link).Equal("")
		gt.String(t, course.Lessons[1].Body).Contains("Lesson Link: this line is body text")
	})

	testCases := []struct {
		name string
		doc  string
	}{
		{name: "empty document", doc: ""},
		{name: "missing course title", doc: "Course Link: https://example.com\nLesson 1: A\nbody"},
		{name: "empty course title", doc: "Course Title:   \nLesson 1: A\nbody"},
		{name: "no lessons", doc: "Course Title: Lonely\nCourse Link: https://example.com"},
		{name: "garbage in header", doc: "Course Title: X\nthis is not a header\nLesson 1: A\nbody"},
		{name: "duplicate lesson", doc: "Course Title: X\nLesson 1: A\nbody\nLesson 1: B\nbody"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := chunker.Parse("bad.txt", strings.NewReader(tc.doc))
			gt.Value(t, err).NotNil()
			gt.Bool(t, errors.Is(err, model.ErrDocumentFormat)).True()
		})
	}
}

func TestChunkerOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := chunker.New()
		gt.Value(t, c.Size()).Equal(chunker.DefaultChunkSize)
		gt.Value(t, c.Overlap()).Equal(chunker.DefaultOverlap)
	})

	t.Run("overlap not smaller than size is clamped", func(t *testing.T) {
		c := chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(100))
		gt.Value(t, c.Overlap()).Equal(25)
	})

	t.Run("non-positive size falls back to default", func(t *testing.T) {
		c := chunker.New(chunker.WithChunkSize(0))
		gt.Value(t, c.Size()).Equal(chunker.DefaultChunkSize)
	})
}

func TestWindows(t *testing.T) {
	text := strings.Repeat("0123456789あいうえお", 37) + "end"
	c := chunker.New(chunker.WithChunkSize(50), chunker.WithOverlap(12))

	windows := c.Windows(text)
	gt.Number(t, len(windows)).GreaterOrEqual(2)

	t.Run("deterministic", func(t *testing.T) {
		again := c.Windows(text)
		gt.Value(t, again).Equal(windows)
	})

	t.Run("adjacent windows share overlap", func(t *testing.T) {
		for i := 0; i+1 < len(windows); i++ {
			cur := []rune(windows[i])
			next := []rune(windows[i+1])
			gt.Value(t, len(cur)).Equal(50)
			gt.Value(t, string(cur[len(cur)-12:])).Equal(string(next[:12]))
		}
	})

	t.Run("concatenation minus overlaps reconstructs text", func(t *testing.T) {
		var b strings.Builder
		for i, w := range windows {
			r := []rune(w)
			if i > 0 {
				r = r[12:]
			}
			b.WriteString(string(r))
		}
		gt.Value(t, b.String()).Equal(text)
	})

	t.Run("short text is a single window", func(t *testing.T) {
		gt.Value(t, c.Windows("tiny")).Equal([]string{"tiny"})
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		gt.Array(t, c.Windows("")).Length(0)
	})
}

func TestSplit(t *testing.T) {
	course, err := chunker.Parse("mcp.txt", strings.NewReader(mcpDoc))
	gt.NoError(t, err).Required()

	c := chunker.New(chunker.WithChunkSize(30), chunker.WithOverlap(5))
	chunks := c.Split(course)
	gt.Number(t, len(chunks)).GreaterOrEqual(3)

	for i, chunk := range chunks {
		gt.Value(t, chunk.Index).Equal(i)
		gt.Value(t, chunk.CourseTitle).Equal("Intro to MCP")
		gt.String(t, chunk.Content).Contains(chunker.Prefix("Intro to MCP", chunk.LessonNumber))
	}

	// lesson order is preserved and chunks never span lessons
	gt.Value(t, chunks[0].LessonNumber).Equal(0)
	gt.Value(t, chunks[len(chunks)-1].LessonNumber).Equal(1)

	again := c.Split(course)
	gt.Value(t, again).Equal(chunks)
}
