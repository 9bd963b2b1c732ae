package agent

import "fmt"

// Mode is the closed set of agent modes a client can request. The mode is
// declared explicitly by the client, never inferred from content.
type Mode string

const (
	ModeGeneral     Mode = "general"
	ModeDocumentQA  Mode = "document-qa"
	ModeSpreadsheet Mode = "spreadsheet"
	ModeNotebook    Mode = "notebook"
)

// ParseMode validates a client-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGeneral, ModeDocumentQA, ModeSpreadsheet, ModeNotebook:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown agent mode %q (accepted: general, document-qa, spreadsheet, notebook)", s)
	}
}

// RequiresScope reports whether the mode needs at least one document in the
// session's scope.
func (m Mode) RequiresScope() bool {
	switch m {
	case ModeGeneral:
		return false
	case ModeDocumentQA, ModeSpreadsheet, ModeNotebook:
		return true
	}
	return false
}
