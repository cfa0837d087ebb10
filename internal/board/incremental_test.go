package board

import "testing"

// perftWithRoundTripCheck walks the legal move tree like perft, but after
// every unmake verifies that the position is bit-for-bit identical to
// before the move, including the incrementally maintained hash, pawn key,
// PST sum, material balance and piece signature.
func perftWithRoundTripCheck(t *testing.T, p *Position, depth int) int64 {
	t.Helper()
	if depth == 0 {
		return 1
	}

	before := *p
	moves := p.GenerateLegalMoves()

	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := p.MakeMove(m)

		var scratch Position
		scratch = *p
		scratch.recomputeEvalState()
		if scratch.PSTSum != p.PSTSum {
			t.Errorf("move %v: PSTSum mismatch, incremental=%v scratch=%v", m, p.PSTSum, scratch.PSTSum)
		}
		if scratch.MaterialBalance != p.MaterialBalance {
			t.Errorf("move %v: MaterialBalance mismatch, incremental=%d scratch=%d", m, p.MaterialBalance, scratch.MaterialBalance)
		}
		if scratch.PieceSignature != p.PieceSignature {
			t.Errorf("move %v: PieceSignature mismatch, incremental=%x scratch=%x", m, p.PieceSignature, scratch.PieceSignature)
		}
		if got, want := p.Hash, p.ComputeHash(); got != want {
			t.Errorf("move %v: Hash mismatch, incremental=%x scratch=%x", m, got, want)
		}
		if got, want := p.PawnKey, p.ComputePawnKey(); got != want {
			t.Errorf("move %v: PawnKey mismatch, incremental=%x scratch=%x", m, got, want)
		}

		nodes += perftWithRoundTripCheck(t, p, depth-1)

		p.UnmakeMove(m, undo)
		if *p != before {
			t.Fatalf("move %v: position not restored to bit-identical state after unmake", m)
		}
	}
	return nodes
}

func TestMakeUnmakeRoundTripStartPosition(t *testing.T) {
	pos := NewPosition()
	perftWithRoundTripCheck(t, pos, 4)
}

func TestMakeUnmakeRoundTripKiwipete(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -")
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}
	perftWithRoundTripCheck(t, pos, 3)
}

func TestMakeUnmakeRoundTripPromotionPosition(t *testing.T) {
	pos, err := ParseFEN("r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1")
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}
	perftWithRoundTripCheck(t, pos, 3)
}

// TestIncrementalSignatureMatchesScratch checks ComputeSignature against
// the incrementally maintained PieceSignature across a handful of
// representative positions, independent of the move-tree walk above.
func TestIncrementalSignatureMatchesScratch(t *testing.T) {
	fens := []string{
		StartFEN,
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -",
		"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
	}

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("Failed to parse FEN %q: %v", fen, err)
		}
		if got, want := pos.PieceSignature, ComputeSignature(pos); got != want {
			t.Errorf("FEN %q: PieceSignature = %x, want %x", fen, got, want)
		}
	}
}

// TestEnPassantFENRoundTrip exercises the conversion between FEN's
// landing-square en passant convention and the pawn-square internal
// representation.
func TestEnPassantFENRoundTrip(t *testing.T) {
	fen := "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3"
	pos, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}

	if pos.EnPassant != D5 {
		t.Errorf("EnPassant = %v, want D5 (pawn square, not landing square)", pos.EnPassant)
	}
	if landing := pos.EnPassantLanding(); landing != D6 {
		t.Errorf("EnPassantLanding() = %v, want D6", landing)
	}
	if got := pos.ToFEN(); got != fen {
		t.Errorf("ToFEN() round-trip = %q, want %q", got, fen)
	}
}
