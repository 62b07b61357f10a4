package slackbridge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"askbridge/internal/continuity"
	"askbridge/internal/domain"
)

type mockPoster struct {
	channel string
	ts      string
	err     error
	// captured text via MsgOptionText is not directly observable, so the
	// mock applies the options to an unauthenticated test config.
	lastText string
}

func (m *mockPoster) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	m.channel = channelID
	_, values, _ := slack.UnsafeApplyMsgOptions("tok", channelID, "https://slack.test/api/", options...)
	m.lastText = values.Get("text")
	return channelID, m.ts, nil
}

type recordingStore struct {
	recs chan domain.BotResponseRecord
	err  error
}

func (r *recordingStore) GetContinuationToken(context.Context, string, string) (string, error) {
	return "", nil
}

func (r *recordingStore) StoreMessage(_ context.Context, rec domain.BotResponseRecord) error {
	r.recs <- rec
	return r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPostAnswer_PersistsRecord(t *testing.T) {
	poster := &mockPoster{ts: "1700000009.000200"}
	store := &recordingStore{recs: make(chan domain.BotResponseRecord, 1)}
	r := NewResponder(ResponderConfig{API: poster, Store: store, TenantID: "acme", Logger: testLogger()})

	ts, err := r.PostAnswer(context.Background(), "C01", "1700000001.000000", "the answer", "resp_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1700000009.000200" {
		t.Fatalf("unexpected posted ts: %q", ts)
	}

	select {
	case rec := <-store.recs:
		if rec.TenantID != "acme" || rec.ChannelID != "C01" || rec.MessageTS != ts || rec.Token != "resp_1" {
			t.Fatalf("unexpected record: %+v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("record was never persisted")
	}
}

func TestPostAnswer_StoreFailureIsAbsorbed(t *testing.T) {
	poster := &mockPoster{ts: "1700000009.000200"}
	store := &recordingStore{recs: make(chan domain.BotResponseRecord, 1), err: errors.New("store down")}
	r := NewResponder(ResponderConfig{API: poster, Store: store, TenantID: "acme", Logger: testLogger()})

	if _, err := r.PostAnswer(context.Background(), "C01", "", "answer", "resp_1"); err != nil {
		t.Fatalf("persistence failure must not fail the turn: %v", err)
	}
	<-store.recs
}

func TestPostAnswer_InlineMarker(t *testing.T) {
	poster := &mockPoster{ts: "1.2"}
	r := NewResponder(ResponderConfig{API: poster, TenantID: "acme", InlineMarker: true, Logger: testLogger()})

	if _, err := r.PostAnswer(context.Background(), "C01", "", "the answer", "resp_7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := continuity.ExtractMarkerToken(poster.lastText); got != "resp_7" {
		t.Fatalf("posted text must carry a recoverable marker, got %q from %q", got, poster.lastText)
	}
	if !strings.HasPrefix(poster.lastText, "the answer") {
		t.Fatalf("answer text must lead the message, got %q", poster.lastText)
	}
}

func TestPostAnswer_PostFailure(t *testing.T) {
	poster := &mockPoster{err: errors.New("channel archived")}
	r := NewResponder(ResponderConfig{API: poster, TenantID: "acme", Logger: testLogger()})

	if _, err := r.PostAnswer(context.Background(), "C01", "", "answer", "resp_1"); err == nil {
		t.Fatal("expected post failure to surface")
	}
}

func TestFileMetas(t *testing.T) {
	metas := FileMetas([]slack.File{
		{Name: "report.pdf", URLPrivateDownload: "https://files.slack.test/report.pdf", Mimetype: "application/pdf", Size: 1024},
	})
	if len(metas) != 1 {
		t.Fatalf("expected one meta, got %d", len(metas))
	}
	m := metas[0]
	if m.Name != "report.pdf" || m.URL != "https://files.slack.test/report.pdf" || m.Mimetype != "application/pdf" || m.Size != 1024 {
		t.Fatalf("unexpected meta: %+v", m)
	}
}
