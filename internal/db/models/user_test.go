package models

import "testing"

// ---------------------------------------------------------------------------
// User.Limits
// ---------------------------------------------------------------------------

func TestUser_Limits(t *testing.T) {
	for plan, want := range Plans {
		t.Run(plan, func(t *testing.T) {
			u := &User{}
			if !u.ApplyPlan(plan) {
				t.Fatalf("ApplyPlan(%q) = false", plan)
			}
			if got := u.Limits(); got != want {
				t.Errorf("Limits() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestUser_LimitsUnknownPlanKeepsCurrent(t *testing.T) {
	u := &User{}
	u.ApplyPlan(PlanStarter)
	u.ApplyPlan("enterprise")
	if u.Subscription != PlanStarter || u.Limits() != Plans[PlanStarter] {
		t.Errorf("user = %+v", u)
	}
}
