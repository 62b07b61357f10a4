// Package continuity resolves the continuation token to pass into the next
// reasoning-agent call for a thread. Resolution is a two-tier lookup: the
// authoritative token store first, then the legacy inline text marker. The
// tiers are mutually exclusive per call and both are strictly read-only.
package continuity

import (
	"context"
	"log/slog"
	"sort"

	"askbridge/internal/domain"
	"askbridge/internal/metrics"
)

// tier is one lookup strategy for the most recent bot message.
type tier interface {
	name() string
	lookup(ctx context.Context, tenantID string, msg domain.ThreadMessage) (string, bool)
}

// Tracker resolves continuation tokens for threads.
type Tracker struct {
	tiers  []tier
	logger *slog.Logger
}

// Config configures a Tracker. Store may be nil, in which case only the
// marker tier runs.
type Config struct {
	Store  domain.TokenStore
	Logger *slog.Logger
}

// New creates a Tracker with the store tier ahead of the marker tier.
func New(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var tiers []tier
	if cfg.Store != nil {
		tiers = append(tiers, &storeTier{store: cfg.Store, logger: logger})
	}
	tiers = append(tiers, markerTier{})
	return &Tracker{tiers: tiers, logger: logger}
}

// ResolveToken returns the continuation token for the thread, or "" for a
// fresh conversation. A thread with no prior bot messages resolves to ""
// without touching the store. Store failures are absorbed: the call degrades
// to the marker tier, never to an error.
func (t *Tracker) ResolveToken(ctx context.Context, messages []domain.ThreadMessage, botUserID, tenantID string) string {
	latest, ok := latestBotMessage(messages, botUserID)
	if !ok {
		t.logger.Debug("no prior bot message in thread, starting fresh", "tenant", tenantID)
		return ""
	}

	for _, tr := range t.tiers {
		token, ok := tr.lookup(ctx, tenantID, latest)
		if !ok {
			continue
		}
		t.logger.Info("continuation token resolved",
			"tenant", tenantID,
			"message_ts", latest.Timestamp,
			"path", tr.name(),
		)
		return token
	}

	t.logger.Info("no continuation token for thread, starting fresh",
		"tenant", tenantID, "message_ts", latest.Timestamp)
	return ""
}

// latestBotMessage returns the most recent message authored by the bot.
func latestBotMessage(messages []domain.ThreadMessage, botUserID string) (domain.ThreadMessage, bool) {
	var bot []domain.ThreadMessage
	for _, m := range messages {
		if m.UserID == botUserID {
			bot = append(bot, m)
		}
	}
	if len(bot) == 0 {
		return domain.ThreadMessage{}, false
	}
	// Platform timestamps are fixed-width decimal, so string order is
	// chronological order.
	sort.Slice(bot, func(i, j int) bool { return bot[i].Timestamp > bot[j].Timestamp })
	return bot[0], true
}

// storeTier consults the authoritative token store. Store errors are logged
// and swallowed so the marker tier gets its turn.
type storeTier struct {
	store  domain.TokenStore
	logger *slog.Logger
}

func (s *storeTier) name() string { return "store" }

func (s *storeTier) lookup(ctx context.Context, tenantID string, msg domain.ThreadMessage) (string, bool) {
	token, err := s.store.GetContinuationToken(ctx, tenantID, msg.Timestamp)
	if err != nil {
		s.logger.Warn("token store lookup failed, falling back to marker",
			"tenant", tenantID, "message_ts", msg.Timestamp, "error", err)
		return "", false
	}
	if token == "" {
		return "", false
	}
	metrics.ContinuityFastPath.Inc()
	return token, true
}

// markerTier recovers the token from the legacy inline text marker.
type markerTier struct{}

func (markerTier) name() string { return "marker" }

func (markerTier) lookup(_ context.Context, _ string, msg domain.ThreadMessage) (string, bool) {
	token := ExtractMarkerToken(msg.Text)
	if token == "" {
		return "", false
	}
	metrics.ContinuityFallback.Inc()
	return token, true
}
