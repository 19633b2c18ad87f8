package chunker

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

const (
	labelCourseTitle      = "Course Title:"
	labelCourseLink       = "Course Link:"
	labelCourseInstructor = "Course Instructor:"
	labelLessonLink       = "Lesson Link:"
)

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Parse reads a course transcript. The header block must start with "Course Title:"
// and may carry "Course Link:" and "Course Instructor:"; lessons start at "Lesson <n>:"
// lines, optionally followed by a "Lesson Link:" line.
func Parse(name string, r io.Reader) (*model.Course, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	course := &model.Course{}
	var (
		current  *model.Lesson
		body     []string
		lineNo   int
		expectLL bool
		seen     = map[int]bool{}
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		course.Lessons = append(course.Lessons, current)
		body = nil
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			if course.Title == "" {
				return nil, goerr.Wrap(model.ErrDocumentFormat, "lesson before course title",
					goerr.V(model.DocumentKey, name), goerr.V(model.LineKey, lineNo))
			}
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, goerr.Wrap(model.ErrDocumentFormat, "invalid lesson number",
					goerr.V(model.DocumentKey, name), goerr.V(model.LineKey, lineNo))
			}
			if seen[number] {
				return nil, goerr.Wrap(model.ErrDocumentFormat, "duplicate lesson number",
					goerr.V(model.DocumentKey, name), goerr.V(model.LineKey, lineNo), goerr.V("lesson", number))
			}
			seen[number] = true

			flush()
			current = &model.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			expectLL = true
			continue
		}

		if current != nil {
			if expectLL && line != "" {
				expectLL = false
				if link, ok := strings.CutPrefix(line, labelLessonLink); ok {
					current.Link = strings.TrimSpace(link)
					continue
				}
			}
			body = append(body, raw)
			continue
		}

		// header block
		switch {
		case line == "":
			continue
		case course.Title == "":
			title, ok := strings.CutPrefix(line, labelCourseTitle)
			if !ok {
				return nil, goerr.Wrap(model.ErrDocumentFormat, "document must start with course title",
					goerr.V(model.DocumentKey, name), goerr.V(model.LineKey, lineNo))
			}
			course.Title = strings.TrimSpace(title)
			if course.Title == "" {
				return nil, goerr.Wrap(model.ErrDocumentFormat, "course title is empty",
					goerr.V(model.DocumentKey, name), goerr.V(model.LineKey, lineNo))
			}
		case strings.HasPrefix(line, labelCourseLink):
			course.Link = strings.TrimSpace(strings.TrimPrefix(line, labelCourseLink))
		case strings.HasPrefix(line, labelCourseInstructor):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, labelCourseInstructor))
		default:
			return nil, goerr.Wrap(model.ErrDocumentFormat, "unexpected line in course header",
				goerr.V(model.DocumentKey, name), goerr.V(model.LineKey, lineNo))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read course document", goerr.V(model.DocumentKey, name))
	}

	if course.Title == "" {
		return nil, goerr.Wrap(model.ErrDocumentFormat, "course title is missing", goerr.V(model.DocumentKey, name))
	}
	flush()
	if len(course.Lessons) == 0 {
		return nil, goerr.Wrap(model.ErrDocumentFormat, "course has no lessons",
			goerr.V(model.DocumentKey, name), goerr.V(model.CourseTitleKey, course.Title))
	}

	return course, nil
}
