package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/syllabus/pkg/agent/tool"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/secmon-lab/syllabus/pkg/utils/metrics"
)

//go:embed prompt/query_system.md
var querySystemPromptTmpl string

var querySystemPrompt = template.Must(template.New("query_system").Parse(querySystemPromptTmpl))

// NoAnswerText is returned when the LLM produces no text.
const NoAnswerText = "I couldn't generate a response."

const questionPrefix = "Answer this question about course materials: "

// CatalogReader lists the ingested courses.
type CatalogReader interface {
	Stats(ctx context.Context) (*model.CatalogStats, error)
}

// QueryUseCase answers questions about course materials. The LLM may request
// one round of tool calls, after which it must answer without tools.
type QueryUseCase struct {
	llm      gollem.LLMClient
	registry *tool.Registry
	catalog  CatalogReader
	sessions interfaces.SessionStore
}

func NewQueryUseCase(llm gollem.LLMClient, registry *tool.Registry, catalog CatalogReader, sessions interfaces.SessionStore) *QueryUseCase {
	return &QueryUseCase{
		llm:      llm,
		registry: registry,
		catalog:  catalog,
		sessions: sessions,
	}
}

// Ask answers question within the session. An empty sessionID starts a new session.
func (uc *QueryUseCase) Ask(ctx context.Context, sessionID model.SessionID, question string) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		metrics.RecordQuery(metrics.OutcomeInvalid)
		return nil, goerr.Wrap(model.ErrInvalidArgument, "query is empty")
	}
	if sessionID == "" {
		sessionID = model.NewSessionID()
	}

	ctx = logging.With(ctx, logging.From(ctx).With(model.SessionIDKey, sessionID.String()))

	answer, err := uc.ask(ctx, sessionID, question)
	if err != nil {
		metrics.RecordQuery(metrics.OutcomeFailed)
		return nil, err
	}
	metrics.RecordQuery(metrics.OutcomeAnswered)
	return answer, nil
}

func (uc *QueryUseCase) ask(ctx context.Context, sessionID model.SessionID, question string) (*model.Answer, error) {
	logger := logging.From(ctx)

	unlock, err := uc.sessions.Lock(ctx, sessionID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to lock session", goerr.V(model.SessionIDKey, sessionID))
	}
	defer unlock()

	history, err := uc.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session history", goerr.V(model.SessionIDKey, sessionID))
	}

	systemPrompt, err := buildQuerySystemPrompt(history)
	if err != nil {
		return nil, err
	}

	ssn, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(systemPrompt),
		gollem.WithSessionTools(uc.registry.Tools()...),
	)
	if err != nil {
		return nil, wrapGeneration(err, "failed to create LLM session")
	}

	start := time.Now()
	resp, err := ssn.GenerateContent(ctx, gollem.Text(questionPrefix+question))
	metrics.ObserveLLM(metrics.PhaseTool, start)
	if err != nil {
		return nil, wrapGeneration(err, "failed to generate content")
	}

	answer := &model.Answer{SessionID: sessionID}

	if len(resp.FunctionCalls) == 0 {
		answer.Text = strings.Join(resp.Texts, "\n")
	} else {
		responses, sources, err := uc.runTools(ctx, resp.FunctionCalls)
		if err != nil {
			return nil, err
		}
		answer.Sources = sources
		answer.ToolCalls = len(resp.FunctionCalls)

		text, err := uc.answer(ctx, ssn, systemPrompt, responses)
		if err != nil {
			return nil, err
		}
		answer.Text = text
	}

	if strings.TrimSpace(answer.Text) == "" {
		answer.Text = NoAnswerText
	}

	if err := uc.sessions.Append(ctx, sessionID,
		model.NewTurn(model.RoleUser, question),
		model.NewTurn(model.RoleAssistant, answer.Text),
	); err != nil {
		return nil, goerr.Wrap(err, "failed to save session history", goerr.V(model.SessionIDKey, sessionID))
	}

	logger.Info("query answered",
		"tool_calls", answer.ToolCalls,
		"sources", len(answer.Sources),
	)
	return answer, nil
}

// runTools executes calls in order. Sources are collected in call order.
func (uc *QueryUseCase) runTools(ctx context.Context, calls []*gollem.FunctionCall) ([]gollem.Input, []*model.Source, error) {
	logger := logging.From(ctx)

	var (
		responses []gollem.Input
		sources   []*model.Source
	)
	for _, call := range calls {
		metrics.RecordToolCall(call.Name)
		logger.Debug("executing tool", model.ToolNameKey, call.Name, "args", call.Arguments)

		result, err := uc.registry.Execute(ctx, call)
		if err != nil {
			if errors.Is(err, model.ErrUnknownTool) {
				return nil, nil, err
			}
			logger.Warn("tool execution failed", model.ToolNameKey, call.Name, "error", err)
			responses = append(responses, gollem.FunctionResponse{
				ID:    call.ID,
				Name:  call.Name,
				Data:  map[string]any{"error": err.Error()},
				Error: err,
			})
			continue
		}

		responses = append(responses, gollem.FunctionResponse{
			ID:   call.ID,
			Name: call.Name,
			Data: map[string]any{"result": result.Text},
		})
		sources = append(sources, result.Sources...)
	}
	return responses, sources, nil
}

// answer runs the final generation in a session that carries the tool round
// but offers no tools.
func (uc *QueryUseCase) answer(ctx context.Context, toolSession gollem.Session, systemPrompt string, responses []gollem.Input) (string, error) {
	history, err := toolSession.History()
	if err != nil {
		return "", wrapGeneration(err, "failed to read LLM session history")
	}

	opts := []gollem.SessionOption{gollem.WithSessionSystemPrompt(systemPrompt)}
	if history != nil {
		opts = append(opts, gollem.WithSessionHistory(history))
	}

	ssn, err := uc.llm.NewSession(ctx, opts...)
	if err != nil {
		return "", wrapGeneration(err, "failed to create LLM session")
	}

	start := time.Now()
	resp, err := ssn.GenerateContent(ctx, responses...)
	metrics.ObserveLLM(metrics.PhaseAnswer, start)
	if err != nil {
		return "", wrapGeneration(err, "failed to generate answer")
	}

	if len(resp.FunctionCalls) > 0 {
		names := make([]string, len(resp.FunctionCalls))
		for i, call := range resp.FunctionCalls {
			names[i] = call.Name
		}
		logging.From(ctx).Warn("ignoring tool calls after the tool round", "tools", names)
	}

	return strings.Join(resp.Texts, "\n"), nil
}

// Courses returns the catalog statistics.
func (uc *QueryUseCase) Courses(ctx context.Context) (*model.CatalogStats, error) {
	stats, err := uc.catalog.Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get course stats")
	}
	return stats, nil
}

// ClearSession drops the history of a session.
func (uc *QueryUseCase) ClearSession(ctx context.Context, sessionID model.SessionID) error {
	if sessionID == "" {
		return goerr.Wrap(model.ErrInvalidArgument, "session id is empty")
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V(model.SessionIDKey, sessionID))
	}
	return nil
}

func wrapGeneration(err error, msg string) error {
	return goerr.Wrap(model.ErrGeneration, msg, goerr.V("error", err.Error()))
}

type promptTurn struct {
	Speaker string
	Content string
}

type queryPromptData struct {
	History []promptTurn
}

func buildQuerySystemPrompt(history []*model.Turn) (string, error) {
	var data queryPromptData
	for _, turn := range history {
		speaker := "User"
		if turn.Role == model.RoleAssistant {
			speaker = "Assistant"
		}
		data.History = append(data.History, promptTurn{Speaker: speaker, Content: turn.Content})
	}

	var buf bytes.Buffer
	if err := querySystemPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}
