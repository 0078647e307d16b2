package circuitbreaker

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossbook/event-arb/pkg/types"
)

func result(outcome types.ExecutionOutcome) *types.ExecutionResult {
	return &types.ExecutionResult{
		ID:      "exec-1",
		Symbol:  "FED-CUT-DEC",
		Outcome: outcome,
	}
}

func newTestBreaker(maxFailures int, cooldown time.Duration) (*ExecutionCircuitBreaker, *time.Time) {
	b := New(Config{
		MaxConsecutiveFailures: maxFailures,
		Cooldown:               cooldown,
		Logger:                 zap.NewNop(),
	})

	clock := time.Now()
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreaker_StartsEnabled(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	if !b.Allow() {
		t.Fatal("new breaker must allow executions")
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordResult(result(types.OutcomeFailed))
	b.RecordResult(result(types.OutcomeRolledBack))
	if !b.Allow() {
		t.Fatal("breaker tripped before the failure limit")
	}

	b.RecordResult(result(types.OutcomeFailed))
	if b.Allow() {
		t.Fatal("breaker must trip at the failure limit")
	}
}

func TestBreaker_CommitResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordResult(result(types.OutcomeFailed))
	b.RecordResult(result(types.OutcomeFailed))
	b.RecordResult(result(types.OutcomeCommitted))
	b.RecordResult(result(types.OutcomeFailed))
	b.RecordResult(result(types.OutcomeFailed))

	if !b.Allow() {
		t.Fatal("commit must reset the failure streak")
	}

	status := b.GetStatus()
	if status.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", status.ConsecutiveFailures)
	}
}

func TestBreaker_ManualInterventionTripsImmediately(t *testing.T) {
	b, _ := newTestBreaker(10, time.Minute)

	res := result(types.OutcomeRolledBack)
	res.ManualIntervention = true
	b.RecordResult(res)

	if b.Allow() {
		t.Fatal("manual intervention must trip the breaker immediately")
	}
}

func TestBreaker_ReEnablesAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	b.RecordResult(result(types.OutcomeFailed))
	if b.Allow() {
		t.Fatal("breaker should be tripped")
	}

	*clock = clock.Add(30 * time.Second)
	if b.Allow() {
		t.Fatal("breaker re-enabled before cooldown elapsed")
	}

	*clock = clock.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker must re-enable after cooldown")
	}

	status := b.GetStatus()
	if status.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after re-enable, want 0", status.ConsecutiveFailures)
	}
}

func TestBreaker_SecondTripAfterReEnable(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	b.RecordResult(result(types.OutcomeFailed))
	*clock = clock.Add(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("breaker must re-enable")
	}

	b.RecordResult(result(types.OutcomeRolledBack))
	if b.Allow() {
		t.Fatal("breaker must trip again after a fresh failure")
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New(Config{Logger: zap.NewNop()})

	if b.maxConsecutiveFailures != defaultMaxConsecutiveFailures {
		t.Errorf("maxConsecutiveFailures = %d", b.maxConsecutiveFailures)
	}
	if b.cooldown != defaultCooldown {
		t.Errorf("cooldown = %s", b.cooldown)
	}
}
