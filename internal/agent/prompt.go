package agent

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/session"
	"github.com/ziadkadry99/docchat/internal/store"
)

// historyLimit caps how many prior conversation messages are replayed to
// the model per request.
const historyLimit = 20

const generalSystem = `You are a helpful assistant. Answer the user's question directly and concisely. If you do not know the answer, say so.`

const groundedSystem = `You are a document analysis assistant. Answer strictly from the excerpts provided below. Each excerpt is labelled with its source document and location; cite those labels when you use them. If the excerpts do not contain the answer, say the documents do not cover it rather than guessing.`

const spreadsheetSystem = groundedSystem + `

The excerpts include tabular data with headers. When asked about trends, totals or comparisons, reason over the rows you are given and show the figures you used.`

const notebookSystem = groundedSystem + `

The excerpts come from notebook cells. Distinguish code cells from narrative when explaining what the notebook does.`

// buildPrompt assembles the message list sent to the model: a mode system
// prompt, the retrieved excerpts (when grounded), and recent history.
func buildPrompt(sess *session.Session, req Request, result *retrieval.Result) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemFor(req.Mode)}}

	if result != nil {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: renderExcerpts(result),
		})
	}

	history := sess.Messages()
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, m := range history {
		messages = append(messages, llm.Message{
			Role:    roleFor(m.Role),
			Content: m.Content,
		})
	}
	return messages
}

func systemFor(mode Mode) string {
	switch mode {
	case ModeSpreadsheet:
		return spreadsheetSystem
	case ModeNotebook:
		return notebookSystem
	case ModeDocumentQA:
		return groundedSystem
	default:
		return generalSystem
	}
}

func roleFor(r session.Role) llm.Role {
	if r == session.RoleAssistant {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

// renderExcerpts formats the retrieved chunks, each prefixed with the
// document it came from and where inside it.
func renderExcerpts(result *retrieval.Result) string {
	var b strings.Builder
	b.WriteString("Excerpts from the documents in scope:\n")
	for i, m := range result.Matches {
		src := result.Sources[i]
		b.WriteString(fmt.Sprintf("\n[%d] %s%s:\n%s\n", i+1, src.DocumentName, locatorLabel(m.Chunk.Locator), m.Chunk.Text))
	}
	return b.String()
}

func locatorLabel(loc store.Locator) string {
	switch {
	case loc.Page > 0:
		return fmt.Sprintf(", page %d", loc.Page)
	case loc.CellRange != "":
		if loc.Sheet != "" {
			return fmt.Sprintf(", sheet %s %s", loc.Sheet, loc.CellRange)
		}
		return ", rows " + loc.CellRange
	case loc.Cell > 0:
		return fmt.Sprintf(", cell %d", loc.Cell)
	default:
		return ""
	}
}
