package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"askbridge/internal/auth"
	"askbridge/internal/config"
	"askbridge/internal/domain"
	"askbridge/internal/gate"
	"askbridge/internal/metrics"
	"askbridge/internal/protocol"
	"askbridge/internal/store"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "askbridge",
		Short: "askbridge: client for the remote reasoning-agent service",
		Long:  "askbridge asks questions of a remote reasoning agent over its JSON-RPC/SSE protocol, with conversational continuity and quality gating.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.askbridge/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(askCmd())
	root.AddCommand(getDocumentCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", path)
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	var (
		streamMode bool
		previousID string
		tenantID   string
		userEmail  string
		filePaths  []string
		noGate     bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask the reasoning agent a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if tenantID == "" {
				tenantID = cfg.General.TenantID
			}
			serveMetrics(cfg)

			ctx := cmd.Context()
			query := args[0]

			if cfg.Gate.Enabled && !noGate {
				g := buildGate(cfg)
				decision := g.ShouldAnswer(ctx, query, cfg.Gate.Sources)
				if !decision.ShouldAnswer {
					logger.Info("quality gate suppressed the question", "reasoning", decision.Reasoning)
					return nil
				}
			}

			bearer, err := mintBearer(ctx, cfg, tenantID, userEmail)
			if err != nil {
				return err
			}

			req := domain.AskRequest{
				Query:              query,
				PreviousResponseID: previousID,
				OutputFormat:       domain.OutputFormat(cfg.Agent.OutputFormat),
				ReasoningEffort:    domain.ReasoningEffort(cfg.Agent.ReasoningEffort),
				Verbosity:          domain.Verbosity(cfg.Agent.Verbosity),
				DisableTools:       cfg.Agent.DisableTools,
				WriteTools:         cfg.Agent.WriteTools,
			}
			for _, p := range filePaths {
				att, err := localAttachment(p, cfg.Attachments.MaxSizeBytes)
				if err != nil {
					logger.Warn("skipping attachment", "path", p, "error", err)
					continue
				}
				req.Files = append(req.Files, att)
			}

			client := buildClient(cfg)
			var result *domain.AskResult
			if streamMode {
				result, err = client.AskStream(ctx, bearer, req, func(ev domain.StreamEvent) {
					if ev.Type != domain.EventFinalAnswer {
						fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Type, ev.Data)
					}
				})
			} else {
				result, err = client.Ask(ctx, bearer, req)
			}
			if err != nil {
				logger.Error("ask failed", "action", protocol.Classify(err).String(), "error", err)
				return fmt.Errorf("the agent could not answer this question")
			}

			fmt.Println(result.Answer)
			if result.ContinuationToken != "" {
				fmt.Fprintf(os.Stderr, "\ncontinuation token: %s\n", result.ContinuationToken)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&streamMode, "stream", false, "use the streaming endpoint and print intermediate events")
	cmd.Flags().StringVar(&previousID, "previous-response-id", "", "continuation token from a prior turn")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID (default: general.tenantId)")
	cmd.Flags().StringVar(&userEmail, "user-email", "", "attribute the call to a user")
	cmd.Flags().StringArrayVar(&filePaths, "file", nil, "attach a local file (repeatable)")
	cmd.Flags().BoolVar(&noGate, "no-gate", false, "bypass the should-answer gate")
	return cmd
}

func getDocumentCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "get-document <document-id>",
		Short: "Fetch a document from the reasoning agent's index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if tenantID == "" {
				tenantID = cfg.General.TenantID
			}

			ctx := cmd.Context()
			bearer, err := mintBearer(ctx, cfg, tenantID, "")
			if err != nil {
				return err
			}

			doc, err := buildClient(cfg).GetDocument(ctx, bearer, args[0])
			if err != nil {
				logger.Error("get-document failed", "action", protocol.Classify(err).String(), "error", err)
				return fmt.Errorf("could not fetch document %s", args[0])
			}
			fmt.Println(doc.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID (default: general.tenantId)")
	return cmd
}

func buildClient(cfg *config.Config) *protocol.Client {
	return protocol.New(protocol.Config{
		BaseURL:    cfg.Agent.BaseURL,
		RPCPath:    cfg.Agent.RPCPath,
		StreamPath: cfg.Agent.StreamPath,
		Timeout:    time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Agent.MaxRetries,
		Logger:     logger,
	})
}

func buildGate(cfg *config.Config) *gate.Gate {
	prompts := gate.DefaultPrompts()
	if cfg.Gate.PromptsPath != "" {
		loaded, err := gate.LoadPrompts(cfg.Gate.PromptsPath)
		if err != nil {
			logger.Warn("could not load gate prompts, using builtin", "error", err)
		} else {
			prompts = loaded
		}
	}

	clientCfg := openai.DefaultConfig(cfg.Gate.APIKey)
	if cfg.Gate.APIBase != "" {
		clientCfg.BaseURL = cfg.Gate.APIBase
	}
	return gate.New(gate.Config{
		Model:     openai.NewClientWithConfig(clientCfg),
		ModelName: cfg.Gate.Model,
		Prompts:   prompts,
		Logger:    logger,
	})
}

func mintBearer(ctx context.Context, cfg *config.Config, tenantID, userEmail string) (string, error) {
	tenant := domain.TenantAuth{
		TenantID:           tenantID,
		UserEmail:          userEmail,
		Expiry:             time.Duration(cfg.Auth.ExpirySeconds) * time.Second,
		PermissionAudience: cfg.Auth.PermissionAudience,
		NonBillable:        cfg.Auth.NonBillable,
	}

	var minter domain.CredentialMinter
	if cfg.Auth.MinterURL != "" {
		minter = auth.NewHTTPMinter(auth.HTTPMinterConfig{
			Endpoint: cfg.Auth.MinterURL,
			APIKey:   cfg.Auth.MinterAPIKey,
			Logger:   logger,
		})
	} else {
		minter = auth.StaticMinter{Token: cfg.Auth.StaticToken}
	}
	return minter.Mint(ctx, tenant)
}

func localAttachment(path string, maxSize int64) (domain.FileAttachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileAttachment{}, err
	}
	if info.Size() > maxSize {
		return domain.FileAttachment{}, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FileAttachment{}, err
	}
	return domain.FileAttachment{
		Name:     filepath.Base(path),
		Mimetype: http.DetectContentType(data),
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}

func buildStore(cfg *config.Config) (domain.TokenStore, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return store.NewRedisStore(rdb), func() { rdb.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// serveMetrics starts the Prometheus text endpoint when enabled.
func serveMetrics(cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}
	addr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
}
