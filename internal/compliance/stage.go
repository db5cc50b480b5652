package compliance

import (
	"fmt"
	"strings"
)

// StageCategory classifies a pipeline stage for outreach purposes.
type StageCategory string

const (
	// StageEligible stages may be contacted automatically.
	StageEligible StageCategory = "eligible"
	// StageBlocked stages must never be auto-contacted.
	StageBlocked StageCategory = "blocked"
	// StageHandoff stages may still be messaged but require routing a human
	// alongside any automated touch.
	StageHandoff StageCategory = "handoff"
	// StageExcluded stages were excluded explicitly by the operator.
	StageExcluded StageCategory = "excluded"
)

// stageRule pairs a category with the substring patterns that select it.
// Patterns are matched case-insensitively against the stage name. The lists
// are data so they can be unit-tested exhaustively.
type stageRule struct {
	category StageCategory
	patterns []string
}

var stageRules = []stageRule{
	{
		category: StageBlocked,
		patterns: []string{
			"closed",
			"sold",
			"lost",
			"dnc",
			"do not contact",
			"trash",
			"deceased",
			"archived",
		},
	},
	{
		category: StageHandoff,
		patterns: []string{
			"showing",
			"under contract",
			"under agreement",
			"escrow",
			"negotiat",
			"offer",
			"pending",
			"appointment set",
		},
	},
}

// StageResult reports whether a pipeline stage permits automated outreach.
type StageResult struct {
	Eligible bool
	Handoff  bool
	Category StageCategory
	Status   Status
	Reason   string
}

// EvaluateStage classifies a stage name. Operator-configured exclusions are
// checked first with an exact case-insensitive match so they always win over
// the built-in substring rules.
func EvaluateStage(stage string, excludedStages []string) StageResult {
	name := strings.TrimSpace(stage)
	lowered := strings.ToLower(name)

	for _, excluded := range excludedStages {
		if strings.EqualFold(strings.TrimSpace(excluded), name) {
			return StageResult{
				Eligible: false,
				Category: StageExcluded,
				Status:   StatusBlockedStage,
				Reason:   fmt.Sprintf("stage %q is excluded by configuration", name),
			}
		}
	}

	for _, rule := range stageRules {
		for _, pattern := range rule.patterns {
			if !strings.Contains(lowered, pattern) {
				continue
			}
			switch rule.category {
			case StageBlocked:
				return StageResult{
					Eligible: false,
					Category: StageBlocked,
					Status:   StatusBlockedStage,
					Reason:   fmt.Sprintf("stage %q matches do-not-contact pattern %q", name, pattern),
				}
			case StageHandoff:
				return StageResult{
					Eligible: true,
					Handoff:  true,
					Category: StageHandoff,
					Status:   StatusCompliant,
					Reason:   fmt.Sprintf("stage %q matches handoff pattern %q, route a human", name, pattern),
				}
			}
		}
	}

	return StageResult{
		Eligible: true,
		Category: StageEligible,
		Status:   StatusCompliant,
		Reason:   "stage permits automated outreach",
	}
}
