// Package clock manages search time allocation and the stop/ponder signal
// shared between a running search and the protocol shell driving it.
package clock

import (
	"sync/atomic"
	"time"
)

// Mode selects how a Setting computes its time budget.
type Mode int

const (
	// MovesPerPeriod allocates time from a time control with a fixed
	// number of moves per period (or sudden death when MovesToGo is 0).
	MovesPerPeriod Mode = iota
	// FixedPerMove searches for exactly MoveTime and no longer.
	FixedPerMove
	// Infinite searches until explicitly stopped (UCI "go infinite").
	Infinite
	// DepthLimited searches to a fixed depth regardless of elapsed time.
	DepthLimited
	// NodesLimited searches until a node budget is exhausted.
	NodesLimited
)

// Setting describes one search's time/resource budget, covering every UCI
// "go" variant (movetime, wtime/btime/winc/binc/movestogo, infinite, depth,
// nodes) plus ponder.
type Setting struct {
	Mode Mode

	Time      [2]time.Duration // remaining time for White, Black
	Inc       [2]time.Duration // increment per move for White, Black
	MovesToGo int              // 0 = sudden death

	MoveTime time.Duration
	Depth    int
	Nodes    uint64
	Ponder   bool
}

// Clock tracks elapsed time against a Setting and exposes a shared stop
// flag plus a one-shot ponder-hit signal. A zero Clock is not usable;
// construct with New.
type Clock struct {
	setting Setting
	us      int // 0 = White, 1 = Black

	startTime   time.Time
	optimumTime time.Duration
	maximumTime time.Duration

	stop      atomic.Bool
	pondering atomic.Bool
}

// New creates a Clock for side us (0 = White, 1 = Black) and the given ply
// (half-move count), used to estimate moves remaining in sudden-death time
// controls.
func New(setting Setting, us, ply int) *Clock {
	c := &Clock{
		setting:   setting,
		us:        us,
		startTime: time.Now(),
	}
	c.pondering.Store(setting.Ponder)
	c.compute(ply)
	return c
}

func (c *Clock) compute(ply int) {
	switch c.setting.Mode {
	case FixedPerMove:
		c.optimumTime = c.setting.MoveTime
		c.maximumTime = c.setting.MoveTime
		return
	case Infinite, DepthLimited, NodesLimited:
		c.optimumTime = time.Hour
		c.maximumTime = time.Hour
		return
	}

	timeLeft := c.setting.Time[c.us]
	inc := c.setting.Inc[c.us]
	if timeLeft == 0 {
		c.optimumTime = time.Hour
		c.maximumTime = time.Hour
		return
	}

	mtg := c.setting.MovesToGo
	if mtg == 0 {
		mtg = 50 - ply/4
		if mtg < 10 {
			mtg = 10
		}
		if mtg > 50 {
			mtg = 50
		}
	}

	baseTime := timeLeft/time.Duration(mtg) + inc*9/10
	c.optimumTime = baseTime
	if ply < 8 {
		c.optimumTime = baseTime * 85 / 100
	}

	maxFromOptimum := c.optimumTime * 5
	maxFromRemaining := timeLeft * 8 / 10
	if maxFromOptimum < maxFromRemaining {
		c.maximumTime = maxFromOptimum
	} else {
		c.maximumTime = maxFromRemaining
	}

	safetyMargin := timeLeft * 95 / 100
	if c.maximumTime > safetyMargin {
		c.maximumTime = safetyMargin
	}

	if c.optimumTime < 10*time.Millisecond {
		c.optimumTime = 10 * time.Millisecond
	}
	if c.maximumTime < 50*time.Millisecond {
		c.maximumTime = 50 * time.Millisecond
	}
}

// Elapsed returns time elapsed since the clock was created.
func (c *Clock) Elapsed() time.Duration { return time.Since(c.startTime) }

// OptimumTime returns the target time for this move.
func (c *Clock) OptimumTime() time.Duration { return c.optimumTime }

// MaximumTime returns the hard ceiling for this move.
func (c *Clock) MaximumTime() time.Duration { return c.maximumTime }

// ShouldStop reports whether the maximum time has elapsed or Stop was
// called. While pondering (waiting for PonderHit), time never expires.
func (c *Clock) ShouldStop() bool {
	if c.stop.Load() {
		return true
	}
	if c.pondering.Load() {
		return false
	}
	return c.Elapsed() >= c.maximumTime
}

// PastOptimum reports whether the optimum (soft) time budget has elapsed.
func (c *Clock) PastOptimum() bool {
	if c.pondering.Load() {
		return false
	}
	return c.Elapsed() >= c.optimumTime
}

// Stop requests the search to stop as soon as it next checks.
func (c *Clock) Stop() { c.stop.Store(true) }

// Stopped reports whether Stop has been requested.
func (c *Clock) Stopped() bool { return c.stop.Load() }

// PonderHit converts an infinite ponder search into a timed one, without
// restarting the search, the moment the predicted move is actually played.
// Elapsed time and the new budget are measured from the ponder hit.
func (c *Clock) PonderHit(ply int) {
	if !c.pondering.CompareAndSwap(true, false) {
		return
	}
	c.startTime = time.Now()
	c.compute(ply)
}

// AdjustForStability shortens the optimum budget once the best move has
// stopped changing across iterative-deepening depths.
func (c *Clock) AdjustForStability(stability int) {
	switch {
	case stability >= 6:
		c.optimumTime = c.optimumTime * 40 / 100
	case stability >= 4:
		c.optimumTime = c.optimumTime * 60 / 100
	case stability >= 2:
		c.optimumTime = c.optimumTime * 80 / 100
	}
}

// AdjustForInstability extends the optimum budget (capped at maximum) while
// the best move keeps changing between depths.
func (c *Clock) AdjustForInstability(changes int) {
	switch {
	case changes >= 4:
		c.optimumTime = c.optimumTime * 200 / 100
	case changes >= 2:
		c.optimumTime = c.optimumTime * 150 / 100
	default:
		return
	}
	if c.optimumTime > c.maximumTime {
		c.optimumTime = c.maximumTime
	}
}
