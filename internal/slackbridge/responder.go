package slackbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"askbridge/internal/continuity"
	"askbridge/internal/domain"
)

const persistTimeout = 10 * time.Second

// PostAPI is the slice of the Slack client the responder needs.
// *slack.Client satisfies it.
type PostAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Responder posts the reasoning agent's answer into the thread and records
// the active continuation token against the posted message.
type Responder struct {
	api          PostAPI
	store        domain.TokenStore
	tenantID     string
	inlineMarker bool // also embed the legacy text marker in the message
	logger       *slog.Logger
}

// ResponderConfig configures a Responder. Store may be nil; InlineMarker
// keeps the legacy marker tier recoverable for deployments without a store.
type ResponderConfig struct {
	API          PostAPI
	Store        domain.TokenStore
	TenantID     string
	InlineMarker bool
	Logger       *slog.Logger
}

// NewResponder creates a Responder.
func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Responder{
		api:          cfg.API,
		store:        cfg.Store,
		tenantID:     cfg.TenantID,
		inlineMarker: cfg.InlineMarker,
		logger:       cfg.Logger,
	}
}

// PostAnswer posts the answer as a thread reply, then persists the
// BotResponseRecord best-effort. Persistence failures are logged and
// absorbed: they must never fail the conversational turn, the marker tier
// exists for exactly this case.
func (r *Responder) PostAnswer(ctx context.Context, channelID, threadTS, answer, token string) (string, error) {
	text := answer
	if r.inlineMarker && token != "" {
		text = fmt.Sprintf("%s\n\n_%s_", answer, continuity.FormatMarker(token))
	}

	_, ts, err := r.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		return "", fmt.Errorf("post answer: %w", err)
	}

	if r.store != nil && token != "" {
		// Detached from the caller's context: the user-facing turn is
		// already complete.
		go r.persist(domain.BotResponseRecord{
			TenantID:  r.tenantID,
			ChannelID: channelID,
			MessageTS: ts,
			Token:     token,
		})
	}
	return ts, nil
}

func (r *Responder) persist(rec domain.BotResponseRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.store.StoreMessage(ctx, rec); err != nil {
		r.logger.Warn("could not persist bot response record",
			"channel", rec.ChannelID, "message_ts", rec.MessageTS, "error", err)
	}
}
