package preview

import "testing"

func TestDetermineOutcome(t *testing.T) {
	notFirst := StageResult{Stage: StageFeedState, Status: StatusPassed, Details: map[string]any{"isFirstRun": false}}
	newID := StageResult{Stage: StageIDComparison, Status: StatusPassed}
	seenID := StageResult{Stage: StageIDComparison, Status: StatusFailed}

	tests := []struct {
		name   string
		stages []StageResult
		want   Outcome
	}{
		{"no stages", nil, OutcomeWouldDeliver},
		{"first run", []StageResult{{Stage: StageFeedState, Status: StatusFailed, Details: map[string]any{"isFirstRun": true}}}, OutcomeFirstRunBaseline},
		{"new article", []StageResult{notFirst, newID}, OutcomeWouldDeliver},
		{"duplicate", []StageResult{notFirst, seenID}, OutcomeDuplicateID},
		{"duplicate passing", []StageResult{notFirst, seenID, {Stage: StagePassingComparison, Status: StatusPassed}}, OutcomeWouldDeliverPassingComparison},
		{"blocked", []StageResult{notFirst, newID, {Stage: StageBlockingComparison, Status: StatusFailed}}, OutcomeBlockedByComparison},
		{"too old", []StageResult{notFirst, newID, {Stage: StageDateCheck, Status: StatusFailed}}, OutcomeFilteredByDateCheck},
		{"filtered", []StageResult{notFirst, newID, {Stage: StageMediumFilter, Status: StatusFailed}}, OutcomeFilteredByMediumFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineOutcome(tt.stages); got.Outcome != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Outcome)
			}
		})
	}
}

func TestDetermineOutcomeBlockedFields(t *testing.T) {
	v := DetermineOutcome([]StageResult{{
		Stage:   StageBlockingComparison,
		Status:  StatusFailed,
		Details: map[string]any{"blockedByFields": []string{"title", "link"}},
	}})

	if v.Reason != "Article blocked by comparison field(s): title, link" {
		t.Errorf("Unexpected reason: %s", v.Reason)
	}
}

func TestAggregateOutcome(t *testing.T) {
	if got := AggregateOutcome(nil); got.Outcome != OutcomeWouldDeliver {
		t.Errorf("Expected %s, got %s", OutcomeWouldDeliver, got.Outcome)
	}

	same := []Verdict{{Outcome: OutcomeDuplicateID}, {Outcome: OutcomeDuplicateID}}
	if got := AggregateOutcome(same); got.Outcome != OutcomeDuplicateID {
		t.Errorf("Expected %s, got %s", OutcomeDuplicateID, got.Outcome)
	}

	mixed := []Verdict{{Outcome: OutcomeWouldDeliver}, {Outcome: OutcomeFilteredByMediumFilter}}
	if got := AggregateOutcome(mixed); got.Outcome != OutcomeMixedResults {
		t.Errorf("Expected %s, got %s", OutcomeMixedResults, got.Outcome)
	}
}
