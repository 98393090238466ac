package analytics

import (
	"testing"

	"regdash/internal/core"
)

func TestClassifyTotalAndStable(t *testing.T) {
	want := map[core.Status]Severity{
		core.StatusApproved:  SeveritySuccess,
		core.StatusRejected:  SeverityFailure,
		core.StatusInReview:  SeverityAttention,
		core.StatusPending:   SeverityInformational,
		core.StatusSubmitted: SeverityInformational,
	}
	for _, s := range core.Statuses {
		first := Classify(s)
		if !first.Known {
			t.Fatalf("%s: expected known classification", s)
		}
		if first.Severity != want[s] {
			t.Fatalf("%s: got %s want %s", s, first.Severity, want[s])
		}
		if first.Label != string(s) {
			t.Fatalf("%s: label %q", s, first.Label)
		}
		for i := 0; i < 3; i++ {
			if again := Classify(s); again != first {
				t.Fatalf("%s: unstable classification %+v vs %+v", s, again, first)
			}
		}
	}
}

func TestClassifyUnknown(t *testing.T) {
	c := Classify("Withdrawn")
	if c.Known || c.Severity != SeverityInformational || c.Label != "Withdrawn" {
		t.Fatalf("unexpected classification %+v", c)
	}
	if Classify("").Label != "Unknown" {
		t.Fatalf("expected Unknown label for empty status")
	}
}

func TestClassificationAwaiting(t *testing.T) {
	cases := map[core.Status]bool{
		core.StatusPending:   true,
		core.StatusSubmitted: true,
		core.StatusInReview:  true,
		core.StatusApproved:  false,
		core.StatusRejected:  false,
	}
	for s, want := range cases {
		if got := Classify(s).Awaiting(); got != want {
			t.Fatalf("%s: got %v want %v", s, got, want)
		}
	}
}
