// Package course provides the course material tools offered to the LLM.
package course

import (
	"context"

	"github.com/secmon-lab/syllabus/pkg/agent/tool"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

// Retriever is the subset of retrieval.Service the tools depend on.
type Retriever interface {
	Resolve(ctx context.Context, partial string) (string, error)
	Search(ctx context.Context, query string, filter model.SearchFilter, topK int) ([]*model.ContentHit, error)
	Course(ctx context.Context, title string) (*model.Course, error)
}

// New builds every course tool backed by r.
func New(r Retriever) []tool.Tool {
	return []tool.Tool{
		&searchTool{retriever: r},
		&outlineTool{retriever: r},
	}
}
