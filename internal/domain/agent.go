package domain

// ReasoningEffort tunes how much thinking the backend agent spends on a query.
type ReasoningEffort string

const (
	EffortMinimal ReasoningEffort = "minimal"
	EffortLow     ReasoningEffort = "low"
	EffortMedium  ReasoningEffort = "medium"
	EffortHigh    ReasoningEffort = "high"
)

// Verbosity tunes the length of the backend agent's answer.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// OutputFormat selects the markup dialect of the answer.
type OutputFormat string

const (
	FormatSlack    OutputFormat = "slack"
	FormatMarkdown OutputFormat = "markdown"
)

// AskRequest is a single question for the remote reasoning agent.
// PreviousResponseID, when set, resumes the agent's prior reasoning
// context for the thread instead of starting fresh.
type AskRequest struct {
	Query               string
	Files               []FileAttachment
	PreviousResponseID  string
	OutputFormat        OutputFormat
	ReasoningEffort     ReasoningEffort
	Verbosity           Verbosity
	DisableTools        bool
	WriteTools          []string
	AgentPromptOverride string
}

// AskResult is the completed answer for one turn. ContinuationToken is the
// opaque backend-issued handle that lets the next turn in the same thread
// resume this reasoning context. It may be empty when the backend did not
// issue one.
type AskResult struct {
	Answer            string
	ContinuationToken string
}

// Document is the result of a get-document lookup.
type Document struct {
	ID      string `json:"document_id"`
	Content string `json:"content"`
}
