// Package policy classifies candidate shell commands into safety tiers.
//
// The engine is a stateless evaluator: given a command string and a policy
// configuration (allow patterns, deny patterns, compliance flag), it returns
// a Verdict. Evaluation is a pure function of its inputs, with no I/O and no
// hidden state, so it is safe to call concurrently from any number of
// callers without synchronization.
//
// # Evaluation Order
//
// Rules are applied in order; the first decisive rule wins:
//
//  1. Compliance gate: when compliance mode is on and the allow list is
//     non-empty, a command that matches no allow pattern is Blocked.
//  2. Deny list: a deny match always forces Blocked, even for commands that
//     passed the compliance gate.
//  3. Built-in heuristics: an immutable table of danger patterns assigns
//     Dangerous or Warning.
//  4. Otherwise the command is Safe.
//
// Matching is deliberately substring-based and case-insensitive. This is
// conservative and can over-block (a command merely containing a denied
// substring is refused); loosening it is a security-relevant behavior change.
//
// # Basic Usage
//
//	cfg := policy.Config{
//	    DenyList:       []string{"rm -rf /"},
//	    ComplianceMode: false,
//	}
//
//	verdict := policy.Evaluate("rm -rf /tmp", cfg)
//	if verdict.Tier == policy.TierBlocked {
//	    fmt.Println("blocked:", verdict.Reason)
//	}
package policy
