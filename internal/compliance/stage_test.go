package compliance

import "testing"

func TestEvaluateStageBlockPatterns(t *testing.T) {
	t.Parallel()

	for _, stage := range []string{
		"Closed - Sold",
		"CLOSED",
		"closed won",
		"Trash",
		"DNC - Do Not Contact",
		"Deceased",
		"Lost",
		"Archived 2024",
	} {
		result := EvaluateStage(stage, nil)
		if result.Eligible {
			t.Errorf("stage %q should be blocked, got %+v", stage, result)
		}
		if result.Category != StageBlocked {
			t.Errorf("stage %q expected blocked category, got %s", stage, result.Category)
		}
		if result.Status != StatusBlockedStage {
			t.Errorf("stage %q expected blocked_stage status, got %s", stage, result.Status)
		}
	}
}

func TestEvaluateStageHandoffPatterns(t *testing.T) {
	t.Parallel()

	for _, stage := range []string{
		"Showing Scheduled",
		"In Escrow",
		"Under Agreement",
		"Under Contract",
		"Negotiating",
		"Offer Submitted",
		"Appointment Set",
	} {
		result := EvaluateStage(stage, nil)
		if !result.Eligible {
			t.Errorf("stage %q should stay eligible, got %+v", stage, result)
		}
		if !result.Handoff {
			t.Errorf("stage %q should require handoff", stage)
		}
	}
}

func TestEvaluateStageEligibleByDefault(t *testing.T) {
	t.Parallel()

	for _, stage := range []string{"New Lead", "Qualifying", "Nurture", ""} {
		result := EvaluateStage(stage, nil)
		if !result.Eligible || result.Handoff {
			t.Errorf("stage %q should be plainly eligible, got %+v", stage, result)
		}
	}
}

func TestEvaluateStageOperatorExclusionWins(t *testing.T) {
	t.Parallel()

	// "Negotiating" would otherwise only trigger handoff; an exact-match
	// exclusion must block it outright.
	result := EvaluateStage("Negotiating", []string{"negotiating"})
	if result.Eligible {
		t.Fatalf("excluded stage must block, got %+v", result)
	}
	if result.Category != StageExcluded {
		t.Fatalf("expected excluded category, got %s", result.Category)
	}

	// Exclusions are exact, not substring: a different stage containing the
	// excluded word still follows the built-in rules.
	result = EvaluateStage("Negotiating Hard", []string{"negotiating"})
	if !result.Eligible || !result.Handoff {
		t.Fatalf("non-exact exclusion must not block, got %+v", result)
	}
}
