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
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

type searchTool struct {
	retriever Retriever
}

func (t *searchTool) Kind() tool.Kind { return tool.KindSearchContent }

func (t *searchTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        tool.KindSearchContent.String(),
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "What to search for in the course content",
				Required:    true,
			},
			"course_name": {
				Type:        gollem.TypeString,
				Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": {
				Type:        gollem.TypeInteger,
				Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
			},
		},
	}
}

func (t *searchTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	query, ok, err := tool.StringArg(args, "query")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "query is required")
	}

	courseName, _, err := tool.StringArg(args, "course_name")
	if err != nil {
		return nil, err
	}

	var filter model.SearchFilter
	if n, ok, err := tool.IntArg(args, "lesson_number"); err != nil {
		return nil, err
	} else if ok {
		filter.LessonNumber = &n
	}

	if courseName != "" {
		title, err := t.retriever.Resolve(ctx, courseName)
		if err != nil {
			if errors.Is(err, model.ErrCourseNotFound) {
				return &tool.Result{Text: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
			}
			return &tool.Result{Text: "Search error: " + err.Error()}, nil
		}
		filter.CourseTitle = title
	}

	tool.Updatef(ctx, "Searching course content: %s", query)

	hits, err := t.retriever.Search(ctx, query, filter, 0)
	if err != nil {
		logging.From(ctx).Warn("course content search failed", "error", err)
		return &tool.Result{Text: "Search error: " + err.Error()}, nil
	}

	if len(hits) == 0 {
		return &tool.Result{Text: emptyMessage(filter)}, nil
	}

	return t.format(ctx, hits), nil
}

func emptyMessage(filter model.SearchFilter) string {
	msg := "No relevant content found"
	if filter.CourseTitle != "" {
		msg += fmt.Sprintf(" in course '%s'", filter.CourseTitle)
	}
	if filter.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *filter.LessonNumber)
	}
	return msg
}

func (t *searchTool) format(ctx context.Context, hits []*model.ContentHit) *tool.Result {
	courses := make(map[string]*model.Course)
	lookup := func(title string) *model.Course {
		if c, ok := courses[title]; ok {
			return c
		}
		c, err := t.retriever.Course(ctx, title)
		if err != nil {
			logging.From(ctx).Debug("course lookup for source link failed", "course", title, "error", err)
			c = nil
		}
		courses[title] = c
		return c
	}

	blocks := make([]string, 0, len(hits))
	sources := make([]*model.Source, 0, len(hits))
	for _, hit := range hits {
		lesson := hit.Chunk.LessonNumber
		src := &model.Source{
			CourseTitle:  hit.Chunk.CourseTitle,
			LessonNumber: &lesson,
		}
		if c := lookup(hit.Chunk.CourseTitle); c != nil {
			src.Link = c.LessonLink(lesson)
		}

		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", src.Label(), hit.Chunk.Content))
		sources = append(sources, src)
	}

	return &tool.Result{
		Text:    strings.Join(blocks, "\n\n"),
		Sources: sources,
	}
}
