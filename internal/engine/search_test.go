package engine

import "testing"

// TestSearcherThreefoldRepetitionReturnsDrawValue simulates a position that
// has already occurred twice in the game (via SetRootHistory) and recurs a
// third time a few plies into the search, and checks both isDraw and
// negamax report the reserved draw value rather than 0.
func TestSearcherThreefoldRepetitionReturnsDrawValue(t *testing.T) {
	// A white pawn keeps this a sufficient-material position, so the draw
	// asserted below can only come from the repetition check, not from
	// insufficient-material.
	pos := mustParseFEN(t, "4k3/8/8/8/8/8/4P3/4K3 w - - 6 10")
	repeatHash := pos.Hash

	tt := NewTranspositionTable(1)
	s := NewSearcher(tt)
	s.pos = pos

	// The position occurred twice earlier in the game before this search
	// began; unrelated hashes pad out the rest of the game history.
	s.SetRootHistory([]uint64{repeatHash + 1, repeatHash, repeatHash + 2, repeatHash})

	// Two more (unrelated) plies were searched before the position recurs
	// a third time at ply 2.
	s.searchHashes[0] = repeatHash + 3
	s.searchHashes[1] = repeatHash + 4

	const ply = 2
	if !s.isDraw(ply) {
		t.Fatalf("expected the third occurrence of the position to be detected as a draw")
	}

	if got := s.negamax(2, ply, -Infinity, Infinity); got != DrawValue {
		t.Errorf("expected negamax to return the reserved draw value %d at a repeated position, got %d", DrawValue, got)
	}
}

// TestSearcherNoRepetitionIsNotADraw is the negative case: a position that
// hasn't recurred within the 50-move window shouldn't be flagged as a draw
// by isRepetition.
func TestSearcherNoRepetitionIsNotADraw(t *testing.T) {
	pos := mustParseFEN(t, "4k3/8/8/8/8/8/4P3/4K3 w - - 6 10")

	tt := NewTranspositionTable(1)
	s := NewSearcher(tt)
	s.pos = pos
	s.SetRootHistory([]uint64{pos.Hash + 1, pos.Hash + 2})
	s.searchHashes[0] = pos.Hash + 3
	s.searchHashes[1] = pos.Hash + 4

	if s.isDraw(2) {
		t.Errorf("expected no draw for a position with no prior occurrence")
	}
}
