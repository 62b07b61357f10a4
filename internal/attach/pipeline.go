// Package attach downloads source-platform files and encodes them for the
// reasoning agent. Downloads are per-file and best-effort: one file's
// failure never aborts the batch.
package attach

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"askbridge/internal/domain"
	"askbridge/internal/metrics"
)

// DefaultMaxFileSize is the per-file cap. Oversized files are dropped
// whole, never truncated.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

// Pipeline fetches and base64-encodes file attachments.
type Pipeline struct {
	client  *http.Client
	token   string // source platform bearer token
	maxSize int64
	logger  *slog.Logger
}

// Config configures a Pipeline.
type Config struct {
	Token      string // bearer token for the source platform
	MaxSize    int64  // per-file byte cap, default DefaultMaxFileSize
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxFileSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		client:  cfg.HTTPClient,
		token:   cfg.Token,
		maxSize: cfg.MaxSize,
		logger:  cfg.Logger,
	}
}

// Fetch downloads each file independently and returns whichever subset
// succeeded. Oversized and failed files are logged and dropped.
func (p *Pipeline) Fetch(ctx context.Context, files []domain.FileMeta) []domain.FileAttachment {
	var out []domain.FileAttachment
	for _, meta := range files {
		att, err := p.fetchOne(ctx, meta)
		if err != nil {
			metrics.AttachmentsDropped.Inc()
			p.logger.Warn("dropping attachment", "name", meta.Name, "size", meta.Size, "error", err)
			continue
		}
		out = append(out, att)
	}
	return out
}

func (p *Pipeline) fetchOne(ctx context.Context, meta domain.FileMeta) (domain.FileAttachment, error) {
	// The declared size is checked before any transfer, and the actual
	// byte count is checked again during it: the platform's metadata is
	// not trusted to match the download.
	if meta.Size > p.maxSize {
		return domain.FileAttachment{}, fmt.Errorf("file too large: %d bytes (max %d)", meta.Size, p.maxSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return domain.FileAttachment{}, fmt.Errorf("build request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.FileAttachment{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.FileAttachment{}, fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxSize+1))
	if err != nil {
		return domain.FileAttachment{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > p.maxSize {
		return domain.FileAttachment{}, fmt.Errorf("file too large: body exceeds %d bytes", p.maxSize)
	}

	return domain.FileAttachment{
		Name:     meta.Name,
		Mimetype: meta.Mimetype,
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}
