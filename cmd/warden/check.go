package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"warden-sh/warden/pkg/audit/recorder"
	"warden-sh/warden/pkg/audit/store"
	"warden-sh/warden/pkg/cli"
	"warden-sh/warden/pkg/policy"
	"warden-sh/warden/pkg/telemetry/metrics"
)

var (
	checkRecord bool
	checkInput  string
	checkJSON   bool
)

var checkCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Classify a shell command against the configured policy",
	Long: `Evaluate a candidate shell command against the allow/deny lists,
compliance mode, and built-in heuristics, and print the verdict.

The exit code reflects the verdict: 0 for safe, 1 for warning or
dangerous, 2 for blocked. With --record the verdict is appended to the
audit log (as a non-executed entry).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkRecord, "record", false, "append the verdict to the audit log")
	checkCmd.Flags().StringVar(&checkInput, "input", "", "natural-language request that produced the command (recorded with --record)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output verdict as JSON")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var policyMetrics *metrics.PolicyMetrics
	var auditMetrics *metrics.AuditMetrics
	if cfg.Telemetry.Metrics.Enabled {
		registry := metrics.NewRegistry()
		policyMetrics = metrics.NewPolicyMetrics(cfg.Telemetry.Metrics.Namespace, registry)
		auditMetrics = metrics.NewAuditMetrics(cfg.Telemetry.Metrics.Namespace, registry)
	}

	command := strings.Join(args, " ")
	start := time.Now()
	verdict := policy.Evaluate(command, cfg.Policy.EngineConfig())
	if policyMetrics != nil {
		policyMetrics.RecordEvaluation(verdict.Tier.String(), time.Since(start))
		if verdict.Tier == policy.TierBlocked {
			policyMetrics.RecordBlock(verdict.MatchedRule)
		}
	}

	if checkRecord {
		storage, err := store.NewJSONLStorage(&store.JSONLConfig{
			Path: cfg.Audit.LogPath,
			Sync: cfg.Audit.Sync,
		})
		if err != nil {
			return cli.NewCommandError("check", err)
		}

		rec := recorder.New(storage, &recorder.Config{
			Organization: cfg.Organization,
			Department:   cfg.Department,
			Backend:      cfg.LLMBackend,
			Metrics:      auditMetrics,
		})
		_, recordErr := rec.Record(cmd.Context(), recorder.Outcome{
			Input:    checkInput,
			Command:  command,
			Verdict:  verdict,
			Executed: false,
		})

		// Close before any exit below; runCheck ends the process directly
		// for non-safe verdicts, so a defer would never run.
		closeErr := storage.Close()
		if recordErr != nil {
			return cli.NewCommandError("check", recordErr)
		}
		if closeErr != nil {
			return cli.NewCommandError("check", closeErr)
		}
	}

	if checkJSON {
		out, err := json.MarshalIndent(map[string]any{
			"command":      command,
			"tier":         verdict.Tier.String(),
			"reason":       verdict.Reason,
			"matched_rule": verdict.MatchedRule,
		}, "", "  ")
		if err != nil {
			return cli.NewCommandError("check", err)
		}
		fmt.Println(string(out))
	} else {
		fmt.Printf("Verdict: %s\n", verdict.Tier)
		if verdict.Reason != "" {
			fmt.Printf("Reason:  %s\n", verdict.Reason)
		}
		if verdict.MatchedRule != "" {
			fmt.Printf("Rule:    %s\n", verdict.MatchedRule)
		}
	}

	if code := verdictExitCode(verdict.Tier); code != 0 {
		os.Exit(code)
	}
	return nil
}

// verdictExitCode maps a safety tier to the check command's exit code:
// 0 safe, 1 warning or dangerous, 2 blocked.
func verdictExitCode(tier policy.Tier) int {
	switch tier {
	case policy.TierBlocked:
		return 2
	case policy.TierWarning, policy.TierDangerous:
		return 1
	default:
		return 0
	}
}
