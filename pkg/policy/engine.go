package policy

import (
	"fmt"
	"strings"
)

// Evaluate classifies a command against the supplied policy configuration.
//
// It is a pure function: identical inputs always produce an identical
// Verdict, no I/O is performed, and it never fails. Malformed configuration
// degrades to the most conservative classification available rather than
// returning an error. Safe under unlimited concurrent use.
func Evaluate(command string, cfg Config) Verdict {
	if strings.TrimSpace(command) == "" {
		return Verdict{Tier: TierSafe}
	}

	lowered := strings.ToLower(command)

	// Compliance gate: with a non-empty allow list, the command must match
	// at least one allow pattern. An empty allow list is a no-op rule.
	if cfg.ComplianceMode && len(cfg.AllowList) > 0 {
		if !matchAny(lowered, cfg.AllowList) {
			return Verdict{
				Tier:        TierBlocked,
				Reason:      "not in allow-list",
				MatchedRule: "allow-list",
			}
		}
	}

	// The deny list is checked unconditionally: an allowed command that
	// contains a denied substring is still blocked.
	if pattern, ok := matchFirst(lowered, cfg.DenyList); ok {
		return Verdict{
			Tier:        TierBlocked,
			Reason:      fmt.Sprintf("matches blocked pattern %q", pattern),
			MatchedRule: pattern,
		}
	}

	if verdict, ok := evaluateHeuristics(lowered); ok {
		return verdict
	}

	return Verdict{Tier: TierSafe}
}

// matchAny reports whether the lowered command contains any of the patterns,
// case-insensitively.
func matchAny(lowered string, patterns []string) bool {
	_, ok := matchFirst(lowered, patterns)
	return ok
}

// matchFirst returns the first pattern the lowered command contains, in
// declaration order.
func matchFirst(lowered string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return pattern, true
		}
	}
	return "", false
}
