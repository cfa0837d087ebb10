package board

// EmptyPosition returns a Position with no pieces, no castling rights and
// no en passant target, ready for PlacePiece/SetKing calls followed by
// Finalize. Used by generators (e.g. the bitbase package) that build
// positions programmatically rather than by parsing a FEN.
func EmptyPosition() *Position {
	pos := &Position{}
	pos.Clear()
	return pos
}

// PlacePiece sets piece on sq. The caller is responsible for calling
// Finalize once all pieces (including both kings, via SetKing) are placed.
func (p *Position) PlacePiece(piece Piece, sq Square) {
	p.setPiece(piece, sq)
}

// SetKing places a king of color c on sq.
func (p *Position) SetKing(c Color, sq Square) {
	p.setPiece(NewPiece(King, c), sq)
}

// Finalize recomputes every derived field (occupancy, king squares, hash,
// pawn key, checkers, PST sum/material/signature) after direct piece
// placement via PlacePiece/SetKing. Call once after all pieces are set.
func (p *Position) Finalize() {
	p.updateOccupied()
	p.findKings()
	p.KingStartFile[White] = p.KingSquare[White].File()
	p.KingStartFile[Black] = p.KingSquare[Black].File()
	p.Hash = p.ComputeHash()
	p.PawnKey = p.ComputePawnKey()
	p.UpdateCheckers()
	p.recomputeEvalState()
}

// IsLegalSetup reports whether a programmatically constructed position is
// structurally legal: both kings present, not adjacent, and the side not
// to move is not currently in check (it would have been the mover's
// previous turn that left it in check, which cannot happen legally).
func (p *Position) IsLegalSetup() bool {
	if p.KingSquare[White] == NoSquare || p.KingSquare[Black] == NoSquare {
		return false
	}
	opponent := p.SideToMove.Other()
	return !p.IsSquareAttacked(p.KingSquare[opponent], p.SideToMove)
}
