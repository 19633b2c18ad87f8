package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared across layers
var (
	ErrDocumentFormat  = goerr.New("malformed course document")
	ErrCourseNotFound  = goerr.New("course not found")
	ErrUnknownTool     = goerr.New("unknown tool")
	ErrGeneration      = goerr.New("generation failed")
	ErrInvalidArgument = goerr.New("invalid argument")
	ErrNotFound        = goerr.New("not found")
)

// Context keys for error values
const (
	CourseTitleKey = "course_title"
	ToolNameKey    = "tool_name"
	SessionIDKey   = "session_id"
	DocumentKey    = "document"
	LineKey        = "line"
)
