package preview

import (
	"fmt"
	"strings"
)

type Outcome string

const (
	OutcomeWouldDeliver                  Outcome = "would-deliver"
	OutcomeWouldDeliverPassingComparison Outcome = "would-deliver-passing-comparison"
	OutcomeFirstRunBaseline              Outcome = "first-run-baseline"
	OutcomeDuplicateID                   Outcome = "duplicate-id"
	OutcomeBlockedByComparison           Outcome = "blocked-by-comparison"
	OutcomeFilteredByDateCheck           Outcome = "filtered-by-date-check"
	OutcomeFilteredByMediumFilter        Outcome = "filtered-by-medium-filter"
	OutcomeFeedUnchanged                 Outcome = "feed-unchanged"
	OutcomeFeedError                     Outcome = "feed-error"
	OutcomeArticleNotInFeed              Outcome = "article-not-in-feed"
	OutcomeMixedResults                  Outcome = "mixed-results"
)

type Verdict struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"outcomeReason"`
}

func find(stages []StageResult, stage Stage) *StageResult {
	for i := range stages {
		if stages[i].Stage == stage {
			return &stages[i]
		}
	}
	return nil
}

// DetermineOutcome reduces the stages recorded for one article and one delivery
// to the first reason it would or would not be delivered.
func DetermineOutcome(stages []StageResult) Verdict {
	if s := find(stages, StageFeedState); s != nil {
		if first, _ := s.Details["isFirstRun"].(bool); first {
			return Verdict{OutcomeFirstRunBaseline,
				"Feed has no prior articles stored. All current articles will be stored but not delivered."}
		}
	}

	if s := find(stages, StageIDComparison); s != nil && s.Status == StatusFailed {
		if p := find(stages, StagePassingComparison); p != nil && p.Status == StatusPassed {
			return Verdict{OutcomeWouldDeliverPassingComparison,
				"Article ID was already seen, but passes because a comparison field has changed."}
		}
		return Verdict{OutcomeDuplicateID,
			"Article ID has already been seen and stored. It will not be delivered again."}
	}

	if s := find(stages, StageBlockingComparison); s != nil && s.Status == StatusFailed {
		fields := "unknown fields"
		if names, ok := s.Details["blockedByFields"].([]string); ok && len(names) > 0 {
			fields = strings.Join(names, ", ")
		}
		return Verdict{OutcomeBlockedByComparison, fmt.Sprintf("Article blocked by comparison field(s): %s", fields)}
	}

	if s := find(stages, StageDateCheck); s != nil && s.Status == StatusFailed {
		return Verdict{OutcomeFilteredByDateCheck,
			"Article is older than the configured date threshold and will not be delivered."}
	}

	if s := find(stages, StageMediumFilter); s != nil && s.Status == StatusFailed {
		return Verdict{OutcomeFilteredByMediumFilter, "Article filtered out by the delivery's filter expression."}
	}

	return Verdict{OutcomeWouldDeliver, "Article passes all checks and would be delivered."}
}

// AggregateOutcome collapses per-delivery verdicts into one article verdict.
func AggregateOutcome(verdicts []Verdict) Verdict {
	if len(verdicts) == 0 {
		return Verdict{OutcomeWouldDeliver, "No deliveries configured."}
	}
	for _, v := range verdicts[1:] {
		if v.Outcome != verdicts[0].Outcome {
			return Verdict{OutcomeMixedResults, "Mixed results across deliveries."}
		}
	}
	return verdicts[0]
}
