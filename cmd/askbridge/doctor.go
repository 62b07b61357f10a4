package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"askbridge/internal/config"
	"askbridge/internal/domain"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the askbridge setup",
		Long: `Verifies that the configuration, token store, credential minting, and
reasoning-agent backend are correctly set up. Reports pass/fail per check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("askbridge doctor v%s\n\n", version)

			passed, failed := 0, 0

			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'askbridge init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			// Token store reachable and writable.
			st, closeStore, err := buildStore(cfg)
			switch {
			case err != nil:
				printFail("Token store", err.Error())
				failed++
			case st == nil:
				printWarn("Token store", "disabled; continuity relies on the legacy text marker only")
			default:
				defer closeStore()
				if err := probeStore(ctx, st, cfg.General.TenantID); err != nil {
					printFail("Token store", err.Error())
					failed++
				} else {
					printPass("Token store", cfg.Store.Backend)
					passed++
				}
			}

			// Credential minting.
			bearer, err := mintBearer(ctx, cfg, orDefault(cfg.General.TenantID, "doctor"), "")
			if err != nil {
				printFail("Credential minting", err.Error())
				failed++
			} else {
				printPass("Credential minting", fmt.Sprintf("token of %d bytes", len(bearer)))
				passed++
			}

			// Backend reachable. Any HTTP response counts: we only probe the
			// network path, not the contract.
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Agent.BaseURL, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				printFail("Agent backend", err.Error())
				failed++
			} else {
				resp.Body.Close()
				printPass("Agent backend", fmt.Sprintf("%s (HTTP %d)", cfg.Agent.BaseURL, resp.StatusCode))
				passed++
			}

			if cfg.Gate.Enabled && cfg.Gate.APIKey == "" {
				printWarn("Quality gate", "enabled but gate.apiKey is empty")
			}

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			return nil
		},
	}
}

// probeStore exercises a write and a readback against a throwaway key.
func probeStore(ctx context.Context, st domain.TokenStore, tenantID string) error {
	tenant := orDefault(tenantID, "doctor")
	ts := fmt.Sprintf("%d.000000", time.Now().Unix())
	rec := domain.BotResponseRecord{
		TenantID:  tenant,
		ChannelID: "doctor",
		MessageTS: ts,
		Token:     "doctor-probe",
	}
	if err := st.StoreMessage(ctx, rec); err != nil {
		return err
	}
	token, err := st.GetContinuationToken(ctx, tenant, ts)
	if err != nil {
		return err
	}
	if token != rec.Token {
		return fmt.Errorf("readback mismatch: got %q", token)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func printPass(name, detail string) { fmt.Printf("  ok    %-20s %s\n", name, detail) }
func printFail(name, detail string) { fmt.Printf("  FAIL  %-20s %s\n", name, detail) }
func printWarn(name, detail string) { fmt.Printf("  warn  %-20s %s\n", name, detail) }
