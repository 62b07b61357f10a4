// Package protocol implements the JSON-RPC-over-SSE client for the remote
// reasoning agent: the buffered "ask" tool call, the incremental event
// stream, and the get_document lookup.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"askbridge/internal/domain"
	"askbridge/internal/metrics"
)

const (
	defaultTimeout    = 10 * time.Minute
	defaultRPCPath    = "/mcp"
	defaultStreamPath = "/api/ask/stream"
)

// Config configures a Client. BaseURL is required.
type Config struct {
	BaseURL    string
	RPCPath    string        // JSON-RPC endpoint, default /mcp
	StreamPath string        // dedicated streaming endpoint, default /api/ask/stream
	Timeout    time.Duration // wall-clock ceiling per attempt, default 10m
	MaxRetries int           // transient-error retries, default 3
	RetryBase  time.Duration // first backoff delay, default 1s
	RetryCap   time.Duration // backoff ceiling, default 8s
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the reasoning-agent backend. It holds no per-call state;
// one Client may serve concurrent calls across tenants.
type Client struct {
	baseURL    string
	rpcPath    string
	streamPath string
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	retryCap   time.Duration
	http       *http.Client
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.RPCPath == "" {
		cfg.RPCPath = defaultRPCPath
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = defaultStreamPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBaseDelay
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = defaultRetryMaxDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		rpcPath:    cfg.RPCPath,
		streamPath: cfg.StreamPath,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		retryCap:   cfg.RetryCap,
		http:       cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// --- JSON-RPC envelope ---

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type rpcResponse struct {
	Result *rpcResult `json:"result"`
	Error  *rpcError  `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResult struct {
	Content []rpcContent `json:"content"`
}

type rpcContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type askArguments struct {
	Query               string                  `json:"query"`
	Files               []domain.FileAttachment `json:"files"`
	PreviousResponseID  *string                 `json:"previous_response_id"`
	OutputFormat        string                  `json:"output_format"`
	ReasoningEffort     string                  `json:"reasoning_effort,omitempty"`
	Verbosity           string                  `json:"verbosity,omitempty"`
	DisableTools        bool                    `json:"disable_tools,omitempty"`
	WriteTools          []string                `json:"write_tools,omitempty"`
	AgentPromptOverride string                  `json:"agent_prompt_override,omitempty"`
}

func buildAskArguments(req domain.AskRequest) askArguments {
	files := req.Files
	if files == nil {
		files = []domain.FileAttachment{}
	}
	format := req.OutputFormat
	if format == "" {
		format = domain.FormatSlack
	}
	args := askArguments{
		Query:               req.Query,
		Files:               files,
		OutputFormat:        string(format),
		ReasoningEffort:     string(req.ReasoningEffort),
		Verbosity:           string(req.Verbosity),
		DisableTools:        req.DisableTools,
		WriteTools:          req.WriteTools,
		AgentPromptOverride: req.AgentPromptOverride,
	}
	if req.PreviousResponseID != "" {
		id := req.PreviousResponseID
		args.PreviousResponseID = &id
	}
	return args
}

// askToolResult is the JSON embedded in the envelope's content[0].text.
type askToolResult struct {
	Answer     string `json:"answer"`
	ResponseID string `json:"response_id"`
}

// Ask issues a buffered tools/call and waits for the complete answer.
func (c *Client) Ask(ctx context.Context, bearer string, req domain.AskRequest) (*domain.AskResult, error) {
	result, err := c.callTool(ctx, bearer, "ask", buildAskArguments(req))
	if err != nil {
		return nil, err
	}

	var out askToolResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		metrics.AskFailuresTotal.Inc()
		return nil, &MalformedResponseError{Detail: fmt.Sprintf("tool result is not valid JSON: %v", err)}
	}
	return &domain.AskResult{Answer: out.Answer, ContinuationToken: out.ResponseID}, nil
}

// GetDocument fetches a document by ID through the same envelope.
func (c *Client) GetDocument(ctx context.Context, bearer, documentID string) (*domain.Document, error) {
	args := struct {
		DocumentID string `json:"document_id"`
	}{DocumentID: documentID}

	result, err := c.callTool(ctx, bearer, "get_document", args)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(result.Content[0].Text), &doc); err != nil {
		return nil, &MalformedResponseError{Detail: fmt.Sprintf("document result is not valid JSON: %v", err)}
	}
	return &doc, nil
}

// callTool posts one JSON-RPC tools/call and scans the SSE-framed body for
// the first parseable envelope. Guarantees a non-nil Result with at least
// one content entry on success.
func (c *Client) callTool(ctx context.Context, bearer, tool string, args any) (*rpcResult, error) {
	metrics.AsksTotal.Inc()
	metrics.InFlightAsks.Inc()
	start := time.Now()
	defer func() {
		metrics.InFlightAsks.Dec()
		metrics.AskLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, attemptCtx, cancel, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, c.baseURL+c.rpcPath, bearer, body)
	})
	if err != nil {
		metrics.AskFailuresTotal.Inc()
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	env, err := c.readEnvelope(attemptCtx, resp.Body)
	if err != nil {
		metrics.AskFailuresTotal.Inc()
		return nil, err
	}
	if env.Error != nil {
		metrics.AskFailuresTotal.Inc()
		return nil, &BackendError{Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Result == nil || len(env.Result.Content) == 0 {
		metrics.AskFailuresTotal.Inc()
		return nil, &MalformedResponseError{Detail: "envelope has no content"}
	}
	return env.Result, nil
}

// readEnvelope scans data lines for the first one that is a JSON-RPC
// envelope. Lines that fail to parse are logged and skipped: the backend
// interleaves keep-alives and comments with the payload.
func (c *Client) readEnvelope(ctx context.Context, body io.Reader) (*rpcResponse, error) {
	frames := newFrameReader(body)
	for {
		payload, err := frames.Next()
		if err == io.EOF {
			return nil, &MalformedResponseError{Detail: "no JSON-RPC envelope in response"}
		}
		if err != nil {
			return nil, c.wrapReadError(ctx, err)
		}

		var env rpcResponse
		if err := json.Unmarshal(payload, &env); err != nil || (env.Result == nil && env.Error == nil) {
			c.logger.Debug("skipping non-envelope data line", "line", preview(payload))
			continue
		}
		return &env, nil
	}
}

// ProgressFunc receives each stream event as it arrives, in emission order.
type ProgressFunc func(domain.StreamEvent)

type streamRequest struct {
	Query              string                  `json:"query"`
	PreviousResponseID *string                 `json:"previous_response_id"`
	Files              []domain.FileAttachment `json:"files"`
}

// AskStream asks through the dedicated streaming endpoint, invoking onEvent
// for every frame, and resolves once the terminal final_answer frame is
// seen. A stream that ends without one returns ErrNoAnswer: an answerless
// completion, not a transport failure.
func (c *Client) AskStream(ctx context.Context, bearer string, req domain.AskRequest, onEvent ProgressFunc) (*domain.AskResult, error) {
	metrics.AsksTotal.Inc()
	metrics.InFlightAsks.Inc()
	start := time.Now()
	defer func() {
		metrics.InFlightAsks.Dec()
		metrics.AskLatency.Observe(time.Since(start).Seconds())
	}()

	files := req.Files
	if files == nil {
		files = []domain.FileAttachment{}
	}
	sreq := streamRequest{Query: req.Query, Files: files}
	if req.PreviousResponseID != "" {
		id := req.PreviousResponseID
		sreq.PreviousResponseID = &id
	}
	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, attemptCtx, cancel, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, c.baseURL+c.streamPath, bearer, body)
	})
	if err != nil {
		metrics.AskFailuresTotal.Inc()
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	frames := newFrameReader(resp.Body)
	for {
		payload, err := frames.Next()
		if err == io.EOF {
			metrics.AskFailuresTotal.Inc()
			return nil, ErrNoAnswer
		}
		if err != nil {
			metrics.AskFailuresTotal.Inc()
			return nil, c.wrapReadError(attemptCtx, err)
		}

		var ev domain.StreamEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			c.logger.Debug("skipping unparsable stream line", "line", preview(payload))
			continue
		}
		metrics.StreamEventsTotal.Inc()
		if onEvent != nil {
			onEvent(ev)
		}

		switch ev.Type {
		case domain.EventFinalAnswer:
			var final domain.FinalAnswerPayload
			if err := json.Unmarshal(ev.Data, &final); err != nil {
				metrics.AskFailuresTotal.Inc()
				return nil, &MalformedResponseError{Detail: fmt.Sprintf("final_answer payload: %v", err)}
			}
			return &domain.AskResult{Answer: final.Answer, ContinuationToken: final.ResponseID}, nil

		case domain.EventError:
			metrics.AskFailuresTotal.Inc()
			var msg struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(ev.Data, &msg)
			if msg.Message == "" {
				msg.Message = string(ev.Data)
			}
			return nil, &BackendError{Message: msg.Message}
		}
	}
}

func (c *Client) newRequest(ctx context.Context, url, bearer string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer "+bearer)
	return req, nil
}

// wrapReadError maps a mid-stream read failure. The attempt ceiling firing
// must surface as TimeoutError regardless of partial progress.
func (c *Client) wrapReadError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &TimeoutError{Ceiling: c.timeout}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &TransportError{Err: err}
}

func preview(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
