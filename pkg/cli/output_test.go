package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/usecase"
)

func init() {
	color.NoColor = true
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &usecase.IngestReport{
		Courses:  []string{"Intro to MCP"},
		Existing: []string{"Advanced Retrieval for AI"},
		Skipped:  []string{"slides.pdf"},
		Failed:   []*usecase.IngestFailure{{Name: "broken.txt", Err: goerr.New("missing course title")}},
		Chunks:   3,
	})

	out := buf.String()
	gt.String(t, out).Contains("+ Intro to MCP")
	gt.String(t, out).Contains("= Advanced Retrieval for AI (already indexed)")
	gt.String(t, out).Contains("- slides.pdf (unsupported format)")
	gt.String(t, out).Contains("! broken.txt: missing course title")
	gt.String(t, out).Contains("1 courses added, 3 chunks indexed")
}

func TestPrintAnswer(t *testing.T) {
	lesson := 2
	var buf bytes.Buffer
	printAnswer(&buf, &model.Answer{
		Text: "MCP servers expose tools.",
		Sources: []*model.Source{
			{CourseTitle: "Intro to MCP", LessonNumber: &lesson, Link: "https://example.com/mcp/2"},
			{CourseTitle: "Advanced Retrieval for AI"},
		},
		SessionID: "session_1",
	})

	out := buf.String()
	gt.String(t, out).Contains("MCP servers expose tools.")
	gt.String(t, out).Contains("  - [Intro to MCP - Lesson 2](https://example.com/mcp/2)\n")
	gt.String(t, out).Contains("  - Advanced Retrieval for AI\n")
	gt.String(t, out).Contains("session: session_1")
}

func TestPrintAnswerWithoutSources(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, &model.Answer{Text: "Hello.", SessionID: "session_2"})
	gt.Bool(t, bytes.Contains(buf.Bytes(), []byte("Sources"))).False()
}
