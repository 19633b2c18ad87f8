package model

import "fmt"

// Source records where a piece of retrieved text came from.
type Source struct {
	CourseTitle  string
	LessonNumber *int
	Link         string
}

// Label renders the source as "Title - Lesson N", or just the title for course-level sources.
func (s *Source) Label() string {
	if s.LessonNumber == nil {
		return s.CourseTitle
	}
	return fmt.Sprintf("%s - Lesson %d", s.CourseTitle, *s.LessonNumber)
}

// Markdown renders the source as a markdown link when a link is known.
func (s *Source) Markdown() string {
	if s.Link == "" {
		return s.Label()
	}
	return fmt.Sprintf("[%s](%s)", s.Label(), s.Link)
}
