package clock

import (
	"testing"
	"time"
)

func TestFixedPerMove(t *testing.T) {
	c := New(Setting{Mode: FixedPerMove, MoveTime: 500 * time.Millisecond}, 0, 10)
	if c.OptimumTime() != 500*time.Millisecond || c.MaximumTime() != 500*time.Millisecond {
		t.Errorf("optimum=%v maximum=%v, want 500ms both", c.OptimumTime(), c.MaximumTime())
	}
}

func TestInfiniteNeverStops(t *testing.T) {
	c := New(Setting{Mode: Infinite}, 0, 1)
	if c.ShouldStop() {
		t.Errorf("ShouldStop() = true for infinite clock")
	}
	c.Stop()
	if !c.ShouldStop() {
		t.Errorf("ShouldStop() = false after explicit Stop()")
	}
}

func TestMovesPerPeriodAllocatesWithinBudget(t *testing.T) {
	c := New(Setting{
		Mode:      MovesPerPeriod,
		Time:      [2]time.Duration{60 * time.Second, 60 * time.Second},
		Inc:       [2]time.Duration{0, 0},
		MovesToGo: 30,
	}, 0, 10)

	if c.OptimumTime() <= 0 {
		t.Errorf("OptimumTime() = %v, want positive", c.OptimumTime())
	}
	if c.MaximumTime() > 60*time.Second {
		t.Errorf("MaximumTime() = %v, exceeds remaining time", c.MaximumTime())
	}
	if c.OptimumTime() > c.MaximumTime() {
		t.Errorf("OptimumTime() %v > MaximumTime() %v", c.OptimumTime(), c.MaximumTime())
	}
}

func TestPonderHitRestartsClockWithoutStopping(t *testing.T) {
	c := New(Setting{Mode: Infinite, Ponder: true}, 0, 20)
	if c.ShouldStop() {
		t.Fatalf("pondering clock should not stop")
	}

	c.PonderHit(20)
	if c.pondering.Load() {
		t.Errorf("pondering still true after PonderHit")
	}
	if c.ShouldStop() {
		t.Errorf("clock should not immediately expire after PonderHit")
	}
}

func TestAdjustForStabilityShrinksOptimum(t *testing.T) {
	c := New(Setting{
		Mode:      MovesPerPeriod,
		Time:      [2]time.Duration{60 * time.Second, 60 * time.Second},
		MovesToGo: 30,
	}, 0, 10)

	before := c.OptimumTime()
	c.AdjustForStability(6)
	if c.OptimumTime() >= before {
		t.Errorf("AdjustForStability(6) did not shrink optimum: before=%v after=%v", before, c.OptimumTime())
	}
}

func TestAdjustForInstabilityCapsAtMaximum(t *testing.T) {
	c := New(Setting{
		Mode:      MovesPerPeriod,
		Time:      [2]time.Duration{60 * time.Second, 60 * time.Second},
		MovesToGo: 30,
	}, 0, 10)

	c.AdjustForInstability(10)
	if c.OptimumTime() > c.MaximumTime() {
		t.Errorf("OptimumTime() %v exceeds MaximumTime() %v after instability adjustment", c.OptimumTime(), c.MaximumTime())
	}
}
