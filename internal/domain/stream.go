package domain

import "encoding/json"

// StreamEventType classifies an event on the agent's streaming endpoint.
type StreamEventType string

const (
	EventStatus        StreamEventType = "status"
	EventToolCall      StreamEventType = "tool_call"
	EventToolResult    StreamEventType = "tool_result"
	EventFinalAnswer   StreamEventType = "final_answer"
	EventMessage       StreamEventType = "message"
	EventTraceInfo     StreamEventType = "trace_info"
	EventError         StreamEventType = "error"
	EventAgentDecision StreamEventType = "agent_decision"
)

// StreamEvent is one frame of the agent's event stream. Data is kept opaque;
// only final_answer and error frames are decoded by the client, everything
// else is passed through to the progress callback as-is.
type StreamEvent struct {
	Type StreamEventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FinalAnswerPayload is the decoded body of a final_answer frame. The
// backend names the continuation token "response_id" on the wire.
type FinalAnswerPayload struct {
	Answer     string `json:"answer"`
	ResponseID string `json:"response_id"`
}
