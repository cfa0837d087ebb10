package engine

import (
	"testing"

	"github.com/qapla-engine/qapla/internal/bitbase"
	"github.com/qapla-engine/qapla/internal/board"
)

type stubBitbaseResolver struct {
	wdl bitbase.WDL
}

func (s stubBitbaseResolver) Probe(pos *board.Position) (bitbase.WDL, bool) {
	return s.wdl, true
}

func mustParseFEN(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func TestEvaluateKKIsDraw(t *testing.T) {
	pos := mustParseFEN(t, "8/8/4k3/8/8/3K4/8/8 w - - 0 1")
	if v := Evaluate(pos); v != DrawValue {
		t.Errorf("KK: expected %d, got %d", DrawValue, v)
	}
}

func TestEvaluateKNKIsDraw(t *testing.T) {
	pos := mustParseFEN(t, "8/8/4k3/8/8/3KN3/8/8 w - - 0 1")
	if v := Evaluate(pos); v != DrawValue {
		t.Errorf("KNK: expected %d, got %d", DrawValue, v)
	}
}

func TestEvaluateKBKIsDraw(t *testing.T) {
	pos := mustParseFEN(t, "8/8/4k3/8/8/3KB3/8/8 w - - 0 1")
	if v := Evaluate(pos); v != DrawValue {
		t.Errorf("KBK: expected %d, got %d", DrawValue, v)
	}
}

func TestEvaluateKNNKIsDraw(t *testing.T) {
	pos := mustParseFEN(t, "8/8/4k3/8/8/2NKN3/8/8 w - - 0 1")
	if v := Evaluate(pos); v != DrawValue {
		t.Errorf("KNNK: expected %d, got %d", DrawValue, v)
	}
}

func TestEvaluateKBNKIsWinningForSideWithMaterial(t *testing.T) {
	pos := mustParseFEN(t, "8/8/4k3/8/8/2NKB3/8/8 w - - 0 1")
	if v := Evaluate(pos); v <= 0 {
		t.Errorf("KBNK: expected a positive score for the side with material, got %d", v)
	}
}

func TestEvaluateKBNKDrivesKingTowardMatchingCorner(t *testing.T) {
	// A dark-squared bishop (e3) mates in the a1/h8 corners; the defending
	// king nearer a dark corner should score worse for the defender (a
	// higher score for White) than one near a light corner.
	nearDark := mustParseFEN(t, "7k/8/8/8/8/2NKB3/8/8 w - - 0 1")
	nearLight := mustParseFEN(t, "k7/8/8/8/8/2NKB3/8/8 w - - 0 1")

	vDark := Evaluate(nearDark)
	vLight := Evaluate(nearLight)
	if vDark <= vLight {
		t.Errorf("expected king near the wrong-colored corner (%d) to score lower than near the matching corner (%d)", vLight, vDark)
	}
}

func TestEvaluateKBBKSameColorBishopsIsDraw(t *testing.T) {
	// Bishops on c1 and f4 are both dark-squared.
	pos := mustParseFEN(t, "8/8/4k3/8/5B2/3K4/8/2B5 w - - 0 1")
	if v := Evaluate(pos); v != DrawValue {
		t.Errorf("same-colored KBBK: expected %d, got %d", DrawValue, v)
	}
}

func TestEvaluateKBBKOppositeColorBishopsIsWinning(t *testing.T) {
	// c2 is light, d2 is dark: the pair covers both square colors.
	pos := mustParseFEN(t, "8/8/4k3/8/8/3K4/2BB4/8 w - - 0 1")
	if v := Evaluate(pos); v <= 0 {
		t.Errorf("opposite-colored KBBK: expected a positive score, got %d", v)
	}
}

func TestEvaluateLonePawnRunnerWins(t *testing.T) {
	// White pawn on h2 with 6 moves to queen; the black king on a8 is 7
	// moves from h8 and cannot catch it.
	pos := mustParseFEN(t, "k7/8/8/8/8/8/7P/K7 w - - 0 1")
	if v := Evaluate(pos); v <= 0 {
		t.Errorf("runner pawn: expected a positive score, got %d", v)
	}
}

func TestEvaluateLonePawnCaughtDefersToGeneralEval(t *testing.T) {
	// The black king on g8 is one move from h8, well within range to
	// catch the pawn, so the override should not apply.
	pos := mustParseFEN(t, "6k1/8/8/8/8/8/7P/K7 w - - 0 1")
	if _, ok := endgameOverride(pos); ok {
		t.Errorf("expected no endgame override for a caught lone pawn")
	}
}

func TestEvaluateBitbaseDrawReturnsReservedValue(t *testing.T) {
	SetEndgameBitbase(stubBitbaseResolver{wdl: bitbase.Draw})
	defer SetEndgameBitbase(nil)

	pos := mustParseFEN(t, "8/8/4k3/8/8/3K4/8/8 w - - 0 1")
	if v := Evaluate(pos); v != DrawValue {
		t.Errorf("bitbase draw: expected reserved draw value %d, got %d", DrawValue, v)
	}
}

func TestEvaluateBitbaseWinBlendsMaterialSlope(t *testing.T) {
	SetEndgameBitbase(stubBitbaseResolver{wdl: bitbase.Win})
	defer SetEndgameBitbase(nil)

	pos := mustParseFEN(t, "8/8/4k3/8/8/3K4/8/8 w - - 0 1")
	v := Evaluate(pos)
	if v <= winningBonus-200 || v > winningBonus+200 {
		t.Errorf("bitbase win: expected a value near the winning bound %d, got %d", winningBonus, v)
	}
}
