package board

// GenerateLegalMoves generates all legal moves for the position using
// pin masks and check (evasion) masks directly, without trial
// make/unmake of candidate moves.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	if p.Checkers != 0 {
		p.generateEvasions(ml)
	} else {
		p.generateNonEvasions(ml, Universe, false)
	}
	return ml
}

// GenerateEvasions generates legal moves when the side to move is in
// check. Exposed directly for callers (search) that already know the
// position is in check.
func (p *Position) GenerateEvasions() *MoveList {
	ml := NewMoveList()
	p.generateEvasions(ml)
	return ml
}

// GeneratePseudoLegalMoves generates all legal moves. Kept for API
// compatibility with callers that historically distinguished
// pseudo-legal generation from legality filtering; the generator is now
// legal-only from the start, so this is equivalent to
// GenerateLegalMoves.
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	return p.GenerateLegalMoves()
}

// GenerateCaptures generates all legal capturing and promoting moves,
// for use in quiescence search.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	if p.Checkers != 0 {
		evasions := p.GenerateEvasions()
		for i := 0; i < evasions.Len(); i++ {
			m := evasions.Get(i)
			if m.IsCapture() || m.IsPromotion() {
				ml.Add(m)
			}
		}
		return ml
	}
	them := p.SideToMove.Other()
	p.generateNonEvasions(ml, p.Occupied[them], true)
	return ml
}

// Pin restriction is looked up via Line(ksq, from) directly, so no
// per-square pin-ray table is kept.

// generateNonEvasions generates legal moves when not in check. targetMask
// restricts destinations (used by GenerateCaptures to request captures
// only); capturesOnly additionally restricts pawn pushes to promotions.
func (p *Position) generateNonEvasions(ml *MoveList, targetMask Bitboard, capturesOnly bool) {
	us := p.SideToMove
	ksq := p.KingSquare[us]
	pinned := p.ComputePinned()

	p.generatePawnMoves(ml, us, targetMask, pinned, ksq, capturesOnly)
	p.generatePieceMoves(ml, us, Knight, targetMask, pinned, ksq)
	p.generatePieceMoves(ml, us, Bishop, targetMask, pinned, ksq)
	p.generatePieceMoves(ml, us, Rook, targetMask, pinned, ksq)
	p.generatePieceMoves(ml, us, Queen, targetMask, pinned, ksq)
	p.generateKingMoves(ml, us, targetMask)
	if !capturesOnly {
		p.generateCastlingMoves(ml, us)
	}
}

// generateEvasions generates legal moves while in check: king moves plus,
// if exactly one checker, interposition or capture of that checker.
func (p *Position) generateEvasions(ml *MoveList) {
	us := p.SideToMove
	ksq := p.KingSquare[us]

	p.generateKingMoves(ml, us, Universe)

	if p.Checkers.PopCount() >= 2 {
		return // double check: king moves only
	}

	checkerSq := p.Checkers.LSB()
	target := SquareBB(checkerSq) | Between(checkerSq, ksq)
	pinned := p.ComputePinned()

	p.generatePawnMoves(ml, us, target, pinned, ksq, false)
	p.generatePieceMoves(ml, us, Knight, target, pinned, ksq)
	p.generatePieceMoves(ml, us, Bishop, target, pinned, ksq)
	p.generatePieceMoves(ml, us, Rook, target, pinned, ksq)
	p.generatePieceMoves(ml, us, Queen, target, pinned, ksq)
}

// generatePieceMoves generates moves for sliders and knights, restricted
// to targetMask and, for pinned pieces, to the pin ray through the king.
func (p *Position) generatePieceMoves(ml *MoveList, us Color, pt PieceType, targetMask, pinned Bitboard, ksq Square) {
	occupied := p.AllOccupied
	own := p.Occupied[us]
	pieces := p.Pieces[us][pt]
	moving := NewPiece(pt, us)

	for pieces != 0 {
		from := pieces.PopLSB()
		var attacks Bitboard
		switch pt {
		case Knight:
			attacks = KnightAttacks(from)
		case Bishop:
			attacks = BishopAttacks(from, occupied)
		case Rook:
			attacks = RookAttacks(from, occupied)
		case Queen:
			attacks = QueenAttacks(from, occupied)
		}
		attacks &^= own
		attacks &= targetMask

		if pinned&SquareBB(from) != 0 {
			attacks &= Line(ksq, from)
		}

		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to, moving, p.PieceAt(to)))
		}
	}
}

// generatePawnMoves generates legal pawn pushes, captures, promotions and
// en passant captures, restricted to targetMask (interposition/capture
// squares while in check) and pin rays.
func (p *Position) generatePawnMoves(ml *MoveList, us Color, targetMask, pinned Bitboard, ksq Square, capturesOnly bool) {
	them := us.Other()
	enemies := p.Occupied[them]
	occupied := p.AllOccupied
	empty := ^occupied
	pawns := p.Pieces[us][Pawn]
	moving := NewPiece(Pawn, us)

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	var promoPushes Bitboard
	if capturesOnly {
		promoPushes = push1 & promotionRank
	}
	push1 &= targetMask
	push2 &= targetMask
	attackL &= targetMask
	attackR &= targetMask

	addPawnMove := func(from, to Square, captured Piece) {
		if pinned&SquareBB(from) != 0 && Line(ksq, from)&SquareBB(to) == 0 {
			return
		}
		if promotionRank&SquareBB(to) != 0 {
			ml.Add(NewPromotion(from, to, moving, captured, Queen))
			ml.Add(NewPromotion(from, to, moving, captured, Rook))
			ml.Add(NewPromotion(from, to, moving, captured, Bishop))
			ml.Add(NewPromotion(from, to, moving, captured, Knight))
			return
		}
		ml.Add(NewMove(from, to, moving, captured))
	}

	if !capturesOnly {
		bb := push1
		for bb != 0 {
			to := bb.PopLSB()
			from := Square(int(to) - pushDir)
			addPawnMove(from, to, NoPiece)
		}
		bb = push2
		for bb != 0 {
			to := bb.PopLSB()
			from := Square(int(to) - 2*pushDir)
			if pinned&SquareBB(from) != 0 && Line(ksq, from)&SquareBB(to) == 0 {
				continue
			}
			ml.Add(NewMove(from, to, moving, NoPiece))
		}
	} else {
		bb := promoPushes
		for bb != 0 {
			to := bb.PopLSB()
			from := Square(int(to) - pushDir)
			addPawnMove(from, to, NoPiece)
		}
	}

	bb := attackL
	for bb != 0 {
		to := bb.PopLSB()
		from := Square(int(to) - pushDir + 1)
		addPawnMove(from, to, p.PieceAt(to))
	}
	bb = attackR
	for bb != 0 {
		to := bb.PopLSB()
		from := Square(int(to) - pushDir - 1)
		addPawnMove(from, to, p.PieceAt(to))
	}

	p.generateEnPassant(ml, us, pawns, targetMask, ksq)
}

// generateEnPassant adds legal en passant captures. The classic
// horizontal-pin case (capturing and captured pawn both leave the rank,
// exposing the king to a rook/queen) is handled by testing the resulting
// occupancy directly rather than by the general pin mask, since neither
// pawn is individually pinned.
func (p *Position) generateEnPassant(ml *MoveList, us Color, pawns, targetMask Bitboard, ksq Square) {
	if p.EnPassant == NoSquare || !p.EnPassant.IsValid() {
		return
	}
	landing := p.EnPassantLanding()
	if landing == NoSquare {
		return
	}

	them := us.Other()
	capturedSq := p.EnPassant
	moving := NewPiece(Pawn, us)
	captured := NewPiece(Pawn, them)

	var attackers Bitboard
	epBB := SquareBB(landing)
	if us == White {
		attackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
	} else {
		attackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
	}

	for attackers != 0 {
		from := attackers.PopLSB()

		// Evasion/target restriction: the move must either capture the
		// checking pawn or land on a legal square when not in check.
		if targetMask != Universe && targetMask&SquareBB(landing) == 0 && targetMask&SquareBB(capturedSq) == 0 {
			continue
		}

		occAfter := (p.AllOccupied &^ SquareBB(from) &^ SquareBB(capturedSq)) | SquareBB(landing)
		if RookAttacks(ksq, occAfter)&(p.Pieces[them][Rook]|p.Pieces[them][Queen]) != 0 {
			continue
		}
		if BishopAttacks(ksq, occAfter)&(p.Pieces[them][Bishop]|p.Pieces[them][Queen]) != 0 {
			continue
		}

		ml.Add(NewEnPassant(from, landing, moving, captured))
	}
}

// generateKingMoves generates legal (non-castling) king moves: targets
// not occupied by own pieces and not attacked once the king itself is
// removed from the occupancy (so sliding attacks through the king's
// current square are accounted for), restricted to targetMask.
func (p *Position) generateKingMoves(ml *MoveList, us Color, targetMask Bitboard) {
	them := us.Other()
	from := p.KingSquare[us]
	occWithoutKing := p.AllOccupied &^ SquareBB(from)
	moving := NewPiece(King, us)

	attacks := KingAttacks(from) &^ p.Occupied[us] & targetMask
	for attacks != 0 {
		to := attacks.PopLSB()
		if p.AttackersByColor(to, them, occWithoutKing) != 0 {
			continue
		}
		ml.Add(NewMove(from, to, moving, p.PieceAt(to)))
	}
}

// generateCastlingMoves generates legal castling moves for both sides,
// using the position's recorded rook start squares so non-standard
// (X-FEN / Chess960) king and rook files are handled the same way as the
// standard e1/e8 case.
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	if p.Checkers != 0 {
		return
	}
	them := us.Other()
	king := NewPiece(King, us)
	from := p.KingSquare[us]

	for _, kingSide := range [2]bool{true, false} {
		idx := castleQueenSideIdx
		if kingSide {
			idx = castleKingSideIdx
		}
		if !p.hasCastlingRight(us, kingSide) {
			continue
		}
		rookFrom := p.CastlingRooks[us][idx]
		if rookFrom == NoSquare {
			continue
		}

		kingTo := NewSquare(6, from.Rank())
		rookTo := NewSquare(5, from.Rank())
		if !kingSide {
			kingTo = NewSquare(2, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}

		if !p.castlingPathClear(from, rookFrom, kingTo, rookTo) {
			continue
		}
		if p.castlingPathAttacked(from, kingTo, them) {
			continue
		}

		ml.Add(NewCastle(from, rookFrom, king, kingSide))
	}
}

func (p *Position) hasCastlingRight(c Color, kingSide bool) bool {
	return p.CastlingRights.CanCastle(c, kingSide)
}

// castlingPathClear checks that every square the king and rook pass
// through or land on is empty, other than the king and rook's own start
// squares.
func (p *Position) castlingPathClear(kingFrom, rookFrom, kingTo, rookTo Square) bool {
	occupied := p.AllOccupied &^ SquareBB(kingFrom) &^ SquareBB(rookFrom)
	path := Between(kingFrom, kingTo) | SquareBB(kingTo) | Between(rookFrom, rookTo) | SquareBB(rookTo)
	return occupied&path == 0
}

// castlingPathAttacked checks that no square the king passes through
// (including its start and landing squares) is attacked.
func (p *Position) castlingPathAttacked(kingFrom, kingTo Square, them Color) bool {
	occupied := p.AllOccupied
	path := Between(kingFrom, kingTo) | SquareBB(kingFrom) | SquareBB(kingTo)
	for path != 0 {
		sq := path.PopLSB()
		if p.AttackersByColor(sq, them, occupied) != 0 {
			return true
		}
	}
	return false
}

// MakeMove applies a move to the position and returns undo information.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		CastlingRights:  p.CastlingRights,
		EnPassant:       p.EnPassant,
		HalfMoveClock:   p.HalfMoveClock,
		Hash:            p.Hash,
		PawnKey:         p.PawnKey,
		Checkers:        p.Checkers,
		PSTSum:          p.PSTSum,
		MaterialBalance: p.MaterialBalance,
		PieceSignature:  p.PieceSignature,
		KingSquare:      p.KingSquare,
		Pieces:          p.Pieces,
		Occupied:        p.Occupied,
		AllOccupied:     p.AllOccupied,
		Valid:           true,
	}

	us := p.SideToMove
	them := us.Other()
	from := m.From()
	pt := m.MovingPiece().Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]

	if p.EnPassant != NoSquare && p.EnPassant.IsValid() {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	switch {
	case m.IsCastle():
		p.makeCastle(m, us)
	case m.IsEnPassant():
		to := m.To()
		landing := to
		pawnSq := epPawnSquareFor(landing, us)
		p.removePiece(pawnSq)
		p.Hash ^= zobristPiece[them][Pawn][pawnSq]
		p.PawnKey ^= zobristPiece[them][Pawn][pawnSq]

		p.movePiece(from, to)
		p.Hash ^= zobristPiece[us][Pawn][from]
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.PawnKey ^= zobristPiece[us][Pawn][from]
		p.PawnKey ^= zobristPiece[us][Pawn][to]
	default:
		to := m.To()
		if captured := p.PieceAt(to); captured != NoPiece {
			capturedType := captured.Type()
			p.removePiece(to)
			p.Hash ^= zobristPiece[them][capturedType][to]
			if capturedType == Pawn {
				p.PawnKey ^= zobristPiece[them][Pawn][to]
			}
		}

		p.movePiece(from, to)
		p.Hash ^= zobristPiece[us][pt][from]
		p.Hash ^= zobristPiece[us][pt][to]
		if pt == Pawn {
			p.PawnKey ^= zobristPiece[us][Pawn][from]
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		}

		if m.IsPromotion() {
			promoPt := m.Promotion()
			p.removePiece(to)
			p.setPiece(NewPiece(promoPt, us), to)
			p.Hash ^= zobristPiece[us][Pawn][to]
			p.Hash ^= zobristPiece[us][promoPt][to]
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		}

		if pt == Pawn && abs(int(to)-int(from)) == 16 {
			p.EnPassant = to
			p.Hash ^= zobristEnPassant[to.File()]
		}
	}

	p.updateCastlingRightsAfterMove(m, from, m.To())
	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn || m.IsCapture() {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.UpdateCheckers()

	return undo
}

// epPawnSquareFor returns the square of the pawn actually captured by an
// en passant move landing on `to`, given the moving side.
func epPawnSquareFor(to Square, us Color) Square {
	if us == White {
		return to - 8
	}
	return to + 8
}

// makeCastle performs the rook-and-king relocation for a castling move.
// m.To() is the rook's start square per the internal encoding; the
// king's and rook's real landing squares come from m.KingTo()/m.RookTo().
func (p *Position) makeCastle(m Move, us Color) {
	kingFrom := m.From()
	rookFrom := m.RookFrom()
	kingTo := m.KingTo()
	rookTo := m.RookTo()

	// Vacate both start squares first so e.g. a rook landing on the
	// king's start square (or vice versa, as in some Chess960 layouts)
	// does not collide with a stale occupant.
	p.removePiece(kingFrom)
	p.removePiece(rookFrom)
	p.setPiece(NewPiece(King, us), kingTo)
	p.setPiece(NewPiece(Rook, us), rookTo)

	p.Hash ^= zobristPiece[us][King][kingFrom]
	p.Hash ^= zobristPiece[us][King][kingTo]
	p.Hash ^= zobristPiece[us][Rook][rookFrom]
	p.Hash ^= zobristPiece[us][Rook][rookTo]
}

// updateCastlingRightsAfterMove clears castling rights touched by the
// move's from/to squares (king moves, or a rook moving from or being
// captured on one of the recorded rook start squares).
func (p *Position) updateCastlingRightsAfterMove(m Move, from, to Square) {
	if m.MovingPiece().Type() == King {
		us := m.MovingPiece().Color()
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
		return
	}

	for _, c := range [2]Color{White, Black} {
		if p.CastlingRooks[c][castleKingSideIdx] != NoSquare &&
			(from == p.CastlingRooks[c][castleKingSideIdx] || to == p.CastlingRooks[c][castleKingSideIdx]) {
			if c == White {
				p.CastlingRights &^= WhiteKingSideCastle
			} else {
				p.CastlingRights &^= BlackKingSideCastle
			}
		}
		if p.CastlingRooks[c][castleQueenSideIdx] != NoSquare &&
			(from == p.CastlingRooks[c][castleQueenSideIdx] || to == p.CastlingRooks[c][castleQueenSideIdx]) {
			if c == White {
				p.CastlingRights &^= WhiteQueenSideCastle
			} else {
				p.CastlingRights &^= BlackQueenSideCastle
			}
		}
	}
}

// UnmakeMove undoes a move using the stored undo information. Board
// state is restored from the snapshot taken in MakeMove rather than
// replayed piece-by-piece, which keeps castling (with its variable rook
// geometry) and en passant trivially correct.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()

	p.Pieces = undo.Pieces
	p.Occupied = undo.Occupied
	p.AllOccupied = undo.AllOccupied
	p.KingSquare = undo.KingSquare
	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.Checkers = undo.Checkers
	p.PSTSum = undo.PSTSum
	p.MaterialBalance = undo.MaterialBalance
	p.PieceSignature = undo.PieceSignature
	p.SideToMove = us

	if us == Black {
		p.FullMoveNumber--
	}
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	return p.GenerateLegalMoves().Len() > 0
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw returns true if the position is a draw (stalemate, 50-move, insufficient material).
func (p *Position) IsDraw() bool {
	if p.IsStalemate() {
		return true
	}
	if p.HalfMoveClock >= 100 {
		return true
	}
	return p.IsInsufficientMaterial()
}

// IsInsufficientMaterial returns true if neither side can checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	wKnights := p.Pieces[White][Knight].PopCount()
	wBishops := p.Pieces[White][Bishop].PopCount()
	bKnights := p.Pieces[Black][Knight].PopCount()
	bBishops := p.Pieces[Black][Bishop].PopCount()

	if wKnights+wBishops+bKnights+bBishops == 0 {
		return true
	}

	if wKnights+wBishops <= 1 && bKnights+bBishops == 0 {
		return true
	}
	if bKnights+bBishops <= 1 && wKnights+wBishops == 0 {
		return true
	}

	return false
}
