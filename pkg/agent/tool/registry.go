package tool

import (
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

// Kind enumerates every tool the assistant can call.
type Kind int

const (
	KindSearchContent Kind = iota + 1
	KindCourseOutline
)

// Kinds returns all tool kinds in declaration order.
func Kinds() []Kind {
	return []Kind{KindSearchContent, KindCourseOutline}
}

// String returns the name the LLM uses to call the tool.
func (k Kind) String() string {
	switch k {
	case KindSearchContent:
		return "search_course_content"
	case KindCourseOutline:
		return "get_course_outline"
	default:
		return "unknown"
	}
}

// ParseKind maps a tool name from an LLM function call to its Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, goerr.Wrap(model.ErrUnknownTool, "tool name is not defined", goerr.V(model.ToolNameKey, name))
}

// Result is the outcome of one tool execution. Sources cite where Text came from.
type Result struct {
	Text    string
	Sources []*model.Source
}

// Tool is a capability exposed to the LLM.
type Tool interface {
	Kind() Kind
	Spec() gollem.ToolSpec
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Registry maps tool kinds to implementations. It holds no per-query state.
type Registry struct {
	tools map[Kind]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[Kind]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Tool) error {
	if t == nil {
		return goerr.New("tool is nil")
	}

	kind := t.Kind()
	if !slices.Contains(Kinds(), kind) {
		return goerr.Wrap(model.ErrUnknownTool, "tool kind is not defined", goerr.V("kind", int(kind)))
	}
	if name := t.Spec().Name; name != kind.String() {
		return goerr.New("tool spec name does not match its kind",
			goerr.V(model.ToolNameKey, name),
			goerr.V("kind", kind.String()),
		)
	}
	if _, exists := r.tools[kind]; exists {
		return goerr.New("tool is already registered", goerr.V(model.ToolNameKey, kind.String()))
	}

	r.tools[kind] = t
	return nil
}

// registered returns tools in kind order so schemas are stable across requests.
func (r *Registry) registered() []Tool {
	var tools []Tool
	for _, k := range Kinds() {
		if t, ok := r.tools[k]; ok {
			tools = append(tools, t)
		}
	}
	return tools
}

// Specs returns the schemas of all registered tools.
func (r *Registry) Specs() []gollem.ToolSpec {
	var specs []gollem.ToolSpec
	for _, t := range r.registered() {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Tools adapts registered tools for gollem.WithSessionTools.
func (r *Registry) Tools() []gollem.Tool {
	var tools []gollem.Tool
	for _, t := range r.registered() {
		tools = append(tools, &gollemTool{tool: t})
	}
	return tools
}

// Execute runs the tool named by call. Unknown names fail with model.ErrUnknownTool.
func (r *Registry) Execute(ctx context.Context, call *gollem.FunctionCall) (*Result, error) {
	kind, err := ParseKind(call.Name)
	if err != nil {
		return nil, err
	}

	t, ok := r.tools[kind]
	if !ok {
		return nil, goerr.Wrap(model.ErrUnknownTool, "tool is not registered", goerr.V(model.ToolNameKey, call.Name))
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		return nil, goerr.Wrap(err, "tool execution failed", goerr.V(model.ToolNameKey, call.Name))
	}
	return result, nil
}

type gollemTool struct {
	tool Tool
}

func (g *gollemTool) Spec() gollem.ToolSpec {
	return g.tool.Spec()
}

func (g *gollemTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	result, err := g.tool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": result.Text}, nil
}
