package tool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/agent/tool"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

type fakeTool struct {
	kind     tool.Kind
	name     string
	executed []map[string]any
	result   *tool.Result
	err      error
}

func (f *fakeTool) Kind() tool.Kind { return f.kind }

func (f *fakeTool) Spec() gollem.ToolSpec {
	name := f.name
	if name == "" {
		name = f.kind.String()
	}
	return gollem.ToolSpec{Name: name, Description: "fake"}
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	f.executed = append(f.executed, args)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestParseKind(t *testing.T) {
	k, err := tool.ParseKind("search_course_content")
	gt.NoError(t, err).Required()
	gt.Value(t, k).Equal(tool.KindSearchContent)

	k, err = tool.ParseKind("get_course_outline")
	gt.NoError(t, err).Required()
	gt.Value(t, k).Equal(tool.KindCourseOutline)

	_, err = tool.ParseKind("delete_everything")
	gt.Error(t, err).Is(model.ErrUnknownTool)
}

func TestRegister(t *testing.T) {
	t.Run("nil tool", func(t *testing.T) {
		r, err := tool.NewRegistry()
		gt.NoError(t, err).Required()
		gt.Value(t, r.Register(nil)).NotNil()
	})

	t.Run("duplicate kind", func(t *testing.T) {
		_, err := tool.NewRegistry(
			&fakeTool{kind: tool.KindSearchContent},
			&fakeTool{kind: tool.KindSearchContent},
		)
		gt.Value(t, err).NotNil()
	})

	t.Run("spec name must match kind", func(t *testing.T) {
		_, err := tool.NewRegistry(&fakeTool{kind: tool.KindSearchContent, name: "search"})
		gt.Value(t, err).NotNil()
	})

	t.Run("undefined kind", func(t *testing.T) {
		_, err := tool.NewRegistry(&fakeTool{kind: tool.Kind(99), name: "unknown"})
		gt.Error(t, err).Is(model.ErrUnknownTool)
	})
}

func TestSpecsAreOrderedByKind(t *testing.T) {
	r, err := tool.NewRegistry(
		&fakeTool{kind: tool.KindCourseOutline},
		&fakeTool{kind: tool.KindSearchContent},
	)
	gt.NoError(t, err).Required()

	specs := r.Specs()
	gt.Array(t, specs).Length(2).Required()
	gt.Value(t, specs[0].Name).Equal("search_course_content")
	gt.Value(t, specs[1].Name).Equal("get_course_outline")

	tools := r.Tools()
	gt.Array(t, tools).Length(2).Required()
	gt.Value(t, tools[0].Spec().Name).Equal("search_course_content")
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	lesson := 2
	search := &fakeTool{
		kind: tool.KindSearchContent,
		result: &tool.Result{
			Text:    "[Course - Lesson 2]\nbody",
			Sources: []*model.Source{{CourseTitle: "Course", LessonNumber: &lesson}},
		},
	}
	r, err := tool.NewRegistry(search)
	gt.NoError(t, err).Required()

	t.Run("dispatches by name", func(t *testing.T) {
		result, err := r.Execute(ctx, &gollem.FunctionCall{
			ID:        "call-1",
			Name:      "search_course_content",
			Arguments: map[string]any{"query": "body"},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, result.Text).Equal("[Course - Lesson 2]\nbody")
		gt.Array(t, result.Sources).Length(1)
		gt.Value(t, search.executed[len(search.executed)-1]["query"]).Equal("body")
	})

	t.Run("nil arguments become empty map", func(t *testing.T) {
		_, err := r.Execute(ctx, &gollem.FunctionCall{Name: "search_course_content"})
		gt.NoError(t, err).Required()
		gt.Value(t, search.executed[len(search.executed)-1]).NotNil()
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.Execute(ctx, &gollem.FunctionCall{Name: "rm_rf"})
		gt.Error(t, err).Is(model.ErrUnknownTool)
	})

	t.Run("known but unregistered kind", func(t *testing.T) {
		_, err := r.Execute(ctx, &gollem.FunctionCall{Name: "get_course_outline"})
		gt.Error(t, err).Is(model.ErrUnknownTool)
	})

	t.Run("tool error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		r, err := tool.NewRegistry(&fakeTool{kind: tool.KindCourseOutline, err: boom})
		gt.NoError(t, err).Required()
		_, err = r.Execute(ctx, &gollem.FunctionCall{Name: "get_course_outline"})
		gt.Error(t, err).Is(boom)
	})
}

func TestGollemAdapter(t *testing.T) {
	r, err := tool.NewRegistry(&fakeTool{
		kind:   tool.KindSearchContent,
		result: &tool.Result{Text: "found"},
	})
	gt.NoError(t, err).Required()

	out, err := r.Tools()[0].Run(context.Background(), map[string]any{"query": "x"})
	gt.NoError(t, err).Required()
	gt.Value(t, out["result"]).Equal("found")
}

func TestIntArg(t *testing.T) {
	for name, tc := range map[string]struct {
		value  any
		want   int
		ok     bool
		hasErr bool
	}{
		"float64":  {value: float64(3), want: 3, ok: true},
		"int":      {value: 4, want: 4, ok: true},
		"int64":    {value: int64(5), want: 5, ok: true},
		"string":   {value: " 6 ", want: 6, ok: true},
		"nil":      {value: nil},
		"fraction": {value: 1.5, hasErr: true},
		"bool":     {value: true, hasErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			got, ok, err := tool.IntArg(map[string]any{"n": tc.value}, "n")
			if tc.hasErr {
				gt.Error(t, err).Is(model.ErrInvalidArgument)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, ok).Equal(tc.ok)
			gt.Value(t, got).Equal(tc.want)
		})
	}
}

func TestStringArg(t *testing.T) {
	s, ok, err := tool.StringArg(map[string]any{"q": "  hi "}, "q")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).True()
	gt.Value(t, s).Equal("hi")

	_, ok, err = tool.StringArg(map[string]any{"q": "   "}, "q")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).False()

	_, _, err = tool.StringArg(map[string]any{"q": 1.0}, "q")
	gt.Error(t, err).Is(model.ErrInvalidArgument)
}

func TestUpdate(t *testing.T) {
	var got []string
	ctx := tool.WithUpdate(context.Background(), func(ctx context.Context, msg string) {
		got = append(got, msg)
	})
	tool.Update(ctx, "working")
	tool.Updatef(ctx, "lesson %d", 3)
	tool.Update(context.Background(), "dropped")
	gt.Value(t, got).Equal([]string{"working", "lesson 3"})
}
