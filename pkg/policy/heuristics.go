package policy

import "strings"

// heuristic is a single built-in danger pattern. The table is constructed
// once at package init and never mutated.
type heuristic struct {
	// name identifies the heuristic in verdicts and metrics.
	name string

	// tier is the severity assigned on match (Dangerous or Warning).
	tier Tier

	// reason is the human-readable explanation surfaced in the verdict.
	reason string

	// patterns are case-insensitive substrings; any match triggers the
	// heuristic. Ignored when matches is set.
	patterns []string

	// matches overrides substring matching for heuristics that need more
	// than a plain contains check. Input is the lowercased command.
	matches func(lowered string) bool
}

// heuristics is evaluated in declaration order. On multiple matches the
// highest severity wins; among equal severities the first declared wins.
var heuristics = []heuristic{
	{
		name:   "recursive-forced-deletion",
		tier:   TierDangerous,
		reason: "recursive or forced deletion can be destructive",
		matches: func(lowered string) bool {
			return containsAny(lowered, "rm ", "rm -", "rmdir", "del ", "del /", "remove-item", "deltree", "rd ") &&
				containsAny(lowered, "-rf", "-r ", "-r -f", "-recurse", "-force", "/s", "/q", "/f")
		},
	},
	{
		name:     "disk-wipe-utility",
		tier:     TierDangerous,
		reason:   "disk or filesystem wipe utilities destroy data irrecoverably",
		patterns: []string{"mkfs", "fdisk", "wipefs", "diskpart", "dd if=", "dd of=", "format "},
	},
	{
		name:     "execution-policy-tampering",
		tier:     TierDangerous,
		reason:   "tampering with execution policy or dynamic code execution",
		patterns: []string{"set-executionpolicy", "invoke-expression", "iex ", "invoke-command"},
	},
	{
		name:     "privilege-elevation",
		tier:     TierWarning,
		reason:   "elevated privileges amplify the impact of mistakes",
		patterns: []string{"sudo ", "su ", "chmod ", "chown "},
	},
	{
		name:     "suppressed-confirmation",
		tier:     TierWarning,
		reason:   "confirmation prompts are suppressed",
		patterns: []string{"-confirm:$false", "force=true", "/y ", "-force"},
	},
	{
		name:   "overwrite-redirection",
		tier:   TierWarning,
		reason: "file redirection (>) overwrites existing files",
		matches: func(lowered string) bool {
			return strings.Contains(lowered, " > ") && !strings.Contains(lowered, " >> ")
		},
	},
}

// evaluateHeuristics checks the lowered command against the built-in table.
// It reports the winning verdict and whether any heuristic matched.
func evaluateHeuristics(lowered string) (Verdict, bool) {
	var best Verdict
	found := false

	for _, h := range heuristics {
		if !h.match(lowered) {
			continue
		}
		if !found || h.tier > best.Tier {
			best = Verdict{
				Tier:        h.tier,
				Reason:      h.reason,
				MatchedRule: h.name,
			}
			found = true
		}
		// Dangerous is the highest heuristic severity; no later entry
		// can outrank the first Dangerous match.
		if best.Tier == TierDangerous {
			break
		}
	}

	return best, found
}

func (h heuristic) match(lowered string) bool {
	if h.matches != nil {
		return h.matches(lowered)
	}
	return containsAny(lowered, h.patterns...)
}

func containsAny(lowered string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}
