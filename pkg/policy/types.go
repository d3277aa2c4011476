package policy

import "fmt"

// Tier represents the safety classification of a command. Tiers are ordered:
// Blocked > Dangerous > Warning > Safe. The same type is used by both the
// engine and the audit store so classification and logging cannot drift.
type Tier int

const (
	// TierSafe marks a command with no known risk indicators.
	TierSafe Tier = iota

	// TierWarning marks a command that deserves caution (elevation,
	// overwrite redirection, suppressed confirmations).
	TierWarning

	// TierDangerous marks a command matching a built-in danger heuristic
	// (recursive forced deletion, disk-wipe utilities, and similar).
	TierDangerous

	// TierBlocked marks a command refused by policy (deny-list match or
	// compliance-mode allow-list miss).
	TierBlocked
)

var tierNames = map[Tier]string{
	TierSafe:      "safe",
	TierWarning:   "warning",
	TierDangerous: "dangerous",
	TierBlocked:   "blocked",
}

// String returns the lowercase wire name of the tier.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler. Tiers serialize as their
// lowercase names (safe, warning, dangerous, blocked).
func (t Tier) MarshalText() ([]byte, error) {
	name, ok := tierNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown safety tier %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier parses a lowercase tier name.
func ParseTier(s string) (Tier, error) {
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return TierSafe, fmt.Errorf("unknown safety tier %q", s)
}

// Verdict is the result of evaluating a single command. It is created per
// Evaluate call and never retained by the engine.
type Verdict struct {
	// Tier is the safety classification.
	Tier Tier

	// Reason explains the classification. Empty for Safe verdicts.
	Reason string

	// MatchedRule names the allow/deny pattern or heuristic that decided
	// the verdict, so blocked commands can be traced back to policy.
	MatchedRule string
}

// Config carries the caller-owned policy fields consumed by the engine.
// The engine borrows it per evaluation and holds no reference afterwards.
type Config struct {
	// AllowList contains allow patterns, matched case-insensitively as
	// substrings. Only consulted in compliance mode.
	AllowList []string

	// DenyList contains deny patterns, matched case-insensitively as
	// substrings. A deny match overrides any allow-list pass.
	DenyList []string

	// ComplianceMode requires commands to match the allow list whenever
	// the list is non-empty.
	ComplianceMode bool
}
