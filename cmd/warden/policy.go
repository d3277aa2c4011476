package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"warden-sh/warden/pkg/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and validate the configured policy",
}

var policyLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the policy configuration for common mistakes",
	Long: `Validate the allow and deny lists: empty patterns, duplicates, and
allow patterns that a deny pattern always overrides. Lint findings are
warnings; the command fails only when the configuration cannot load.`,
	RunE: runPolicyLint,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy configuration",
	RunE:  runPolicyShow,
}

func init() {
	policyCmd.AddCommand(policyLintCmd)
	policyCmd.AddCommand(policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}

func runPolicyLint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	findings := lintPatterns(cfg.Policy.AllowedCommands, cfg.Policy.BlockedCommands)
	if len(findings) == 0 {
		fmt.Println("policy: ok")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("warning: %s\n", f)
	}
	fmt.Printf("\n%d finding(s)\n", len(findings))
	return nil
}

// lintPatterns reports misconfigurations that silently weaken or dead-letter
// rules. Matching is the engine's: case-insensitive substring.
func lintPatterns(allow, deny []string) []string {
	var findings []string

	seen := make(map[string]string)
	checkList := func(name string, patterns []string) {
		for _, p := range patterns {
			if strings.TrimSpace(p) == "" {
				findings = append(findings, fmt.Sprintf("%s list contains an empty pattern (ignored by the engine)", name))
				continue
			}
			key := strings.ToLower(p)
			if prev, ok := seen[key]; ok {
				findings = append(findings, fmt.Sprintf("pattern %q duplicates %s entry %q", p, prev, key))
				continue
			}
			seen[key] = name
		}
	}
	checkList("allow", allow)
	checkList("deny", deny)

	// An allow pattern containing a deny pattern can never permit anything:
	// every command it matches also matches the deny rule.
	for _, a := range allow {
		la := strings.ToLower(a)
		for _, d := range deny {
			ld := strings.ToLower(d)
			if ld != "" && strings.Contains(la, ld) {
				findings = append(findings, fmt.Sprintf("allow pattern %q is dead: deny pattern %q always overrides it", a, d))
			}
		}
	}

	return findings
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engineCfg := cfg.Policy.EngineConfig()
	fmt.Printf("Compliance mode: %v\n", engineCfg.ComplianceMode)

	fmt.Printf("Allowed commands (%d):\n", len(engineCfg.AllowList))
	for _, p := range engineCfg.AllowList {
		fmt.Printf("  - %s\n", p)
	}
	fmt.Printf("Blocked commands (%d):\n", len(engineCfg.DenyList))
	for _, p := range engineCfg.DenyList {
		fmt.Printf("  - %s\n", p)
	}

	if engineCfg.ComplianceMode && len(engineCfg.AllowList) > 0 {
		fmt.Println("\nCompliance gate active: commands outside the allow list are blocked.")
	} else if engineCfg.ComplianceMode {
		fmt.Println("\nCompliance mode is on but the allow list is empty; the gate is inactive.")
	}

	sample := policy.Evaluate("ls -la", engineCfg)
	fmt.Printf("\nSample verdict for %q: %s\n", "ls -la", sample.Tier)
	return nil
}
