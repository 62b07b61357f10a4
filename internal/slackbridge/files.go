// Package slackbridge adapts the Slack surface the client subsystem
// consumes: thread history for the continuity tracker, file metadata for the
// attachment pipeline, and posting the final answer with best-effort record
// persistence.
package slackbridge

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"askbridge/internal/domain"
)

// FileMetas converts Slack file descriptors into the pipeline's metadata
// form. Downloading url_private requires the workspace bot token, which the
// attachment pipeline presents as its own bearer.
func FileMetas(files []slack.File) []domain.FileMeta {
	out := make([]domain.FileMeta, 0, len(files))
	for _, f := range files {
		out = append(out, domain.FileMeta{
			Name:     f.Name,
			URL:      f.URLPrivateDownload,
			Mimetype: f.Mimetype,
			Size:     int64(f.Size),
		})
	}
	return out
}

// ThreadMessages fetches a thread's messages in the tracker's form.
func ThreadMessages(ctx context.Context, api *slack.Client, channelID, threadTS string) ([]domain.ThreadMessage, error) {
	var out []domain.ThreadMessage
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
	}
	for {
		msgs, hasMore, nextCursor, err := api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetch thread replies: %w", err)
		}
		for _, m := range msgs {
			user := m.User
			if user == "" {
				user = m.BotID
			}
			out = append(out, domain.ThreadMessage{
				UserID:    user,
				Timestamp: m.Timestamp,
				Text:      m.Text,
			})
		}
		if !hasMore {
			return out, nil
		}
		params.Cursor = nextCursor
	}
}
