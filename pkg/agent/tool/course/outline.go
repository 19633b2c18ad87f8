package course

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/syllabus/pkg/agent/tool"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

type outlineTool struct {
	retriever Retriever
}

func (t *outlineTool) Kind() tool.Kind { return tool.KindCourseOutline }

func (t *outlineTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        tool.KindCourseOutline.String(),
		Description: "Get the outline of a course: title, link, instructor and the numbered list of lessons",
		Parameters: map[string]*gollem.Parameter{
			"course_name": {
				Type:        gollem.TypeString,
				Description: "Course title (partial matches work)",
				Required:    true,
			},
		},
	}
}

func (t *outlineTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	name, ok, err := tool.StringArg(args, "course_name")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "course_name is required")
	}

	tool.Updatef(ctx, "Getting course outline: %s", name)

	title, err := t.retriever.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrCourseNotFound) {
			return &tool.Result{Text: fmt.Sprintf("No course found matching '%s'", name)}, nil
		}
		return &tool.Result{Text: "Search error: " + err.Error()}, nil
	}

	c, err := t.retriever.Course(ctx, title)
	if err != nil {
		if errors.Is(err, model.ErrCourseNotFound) {
			return &tool.Result{Text: fmt.Sprintf("No course found matching '%s'", name)}, nil
		}
		return &tool.Result{Text: "Search error: " + err.Error()}, nil
	}

	return &tool.Result{
		Text: renderOutline(c),
		Sources: []*model.Source{
			{CourseTitle: c.Title, Link: c.Link},
		},
	}, nil
}

func renderOutline(c *model.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course Title: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&b, "Course Instructor: %s\n", c.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "\n%d. %s", l.Number, l.Title)
	}
	return b.String()
}
