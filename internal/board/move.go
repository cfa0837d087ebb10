package board

import "fmt"

// Move encodes a chess move in 32 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-15: moving piece (colored piece index, 0-11, NoPiece=12)
// bits 16-19: captured piece (colored piece index, or NoPiece if quiet)
// bits 20-22: promotion piece type (Knight..Queen, only valid if IsPromotion())
// bits 23-25: action flag
//
// Castling is encoded as the king moving to its own rook's starting
// square ("king captures own rook"): To() on a castling move returns the
// rook's square, not the king's actual landing square. KingTo/RookTo
// derive the real landing squares from the king's rank and side; UCI
// rendering uses KingTo so the wire format stays ordinary long algebraic.
type Move uint32

// Move action flags (bits 23-25).
const (
	FlagNormal uint32 = iota << 23
	FlagPromotion
	FlagEnPassant
	FlagCastleKingSide
	FlagCastleQueenSide
)

const (
	moveToShift        = 6
	movePieceShift     = 12
	moveCapturedShift  = 16
	movePromotionShift = 20
	moveFlagShift      = 23

	moveSquareMask = 0x3F
	movePieceMask  = 0xF
	movePromoMask  = 0x7
	moveFlagMask   = 0x7
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

func packMove(from, to Square, moving, captured Piece, promo PieceType, flag uint32) Move {
	m := Move(from&moveSquareMask) |
		Move(to&moveSquareMask)<<moveToShift |
		Move(moving&movePieceMask)<<movePieceShift |
		Move(captured&movePieceMask)<<moveCapturedShift |
		Move(flag)
	if flag == FlagPromotion {
		m |= Move(promo&movePromoMask) << movePromotionShift
	}
	return m
}

// NewMove creates a normal (possibly capturing) move.
func NewMove(from, to Square, moving, captured Piece) Move {
	return packMove(from, to, moving, captured, NoPieceType, FlagNormal)
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to Square, moving, captured Piece, promo PieceType) Move {
	return packMove(from, to, moving, captured, promo, FlagPromotion)
}

// NewEnPassant creates an en passant capture move. captured is always the
// opposing pawn taken on the fifth/fourth rank.
func NewEnPassant(from, to Square, moving, captured Piece) Move {
	return packMove(from, to, moving, captured, NoPieceType, FlagEnPassant)
}

// NewCastle creates a castling move. rookFrom is the castling rook's own
// starting square, stored in the To() field per the "king captures own
// rook" convention.
func NewCastle(from, rookFrom Square, king Piece, kingSide bool) Move {
	flag := FlagCastleQueenSide
	if kingSide {
		flag = FlagCastleKingSide
	}
	return packMove(from, rookFrom, king, NoPiece, NoPieceType, flag)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & moveSquareMask)
}

// To returns the destination square. For castling moves this is the
// rook's starting square, not the king's landing square — see KingTo.
func (m Move) To() Square {
	return Square(m >> moveToShift & moveSquareMask)
}

// MovingPiece returns the piece making the move.
func (m Move) MovingPiece() Piece {
	return Piece(m >> movePieceShift & movePieceMask)
}

// CapturedPiece returns the captured piece, or NoPiece for a quiet move.
func (m Move) CapturedPiece() Piece {
	return Piece(m >> moveCapturedShift & movePieceMask)
}

// Flag returns the move's action flag.
func (m Move) Flag() uint32 {
	return uint32(m) &^ (moveSquareMask | moveSquareMask<<moveToShift | movePieceMask<<movePieceShift | movePieceMask<<moveCapturedShift | movePromoMask<<movePromotionShift)
}

// Promotion returns the promotion piece type (only valid if IsPromotion()).
func (m Move) Promotion() PieceType {
	return PieceType(m >> movePromotionShift & movePromoMask)
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Flag() == FlagPromotion
}

// IsCastle returns true if this move castles, either side.
func (m Move) IsCastle() bool {
	f := m.Flag()
	return f == FlagCastleKingSide || f == FlagCastleQueenSide
}

// IsCastleKingSide returns true for king-side castling.
func (m Move) IsCastleKingSide() bool {
	return m.Flag() == FlagCastleKingSide
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Flag() == FlagEnPassant
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture() bool {
	return m.CapturedPiece() != NoPiece || m.IsEnPassant()
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet() bool {
	return !m.IsCapture() && !m.IsPromotion()
}

// RookFrom returns the castling rook's starting square. Only valid when
// IsCastle() is true.
func (m Move) RookFrom() Square {
	return m.To()
}

// KingTo returns the king's actual landing square for a castling move,
// derived from the king's rank and the castling side (c-file for queen
// side, g-file for king side), matching the source's X-FEN convention of
// deriving the landing square rather than storing it.
func (m Move) KingTo() Square {
	rank := m.From().Rank()
	if m.IsCastleKingSide() {
		return NewSquare(6, rank)
	}
	return NewSquare(2, rank)
}

// RookTo returns the rook's landing square for a castling move.
func (m Move) RookTo() Square {
	rank := m.From().Rank()
	if m.IsCastleKingSide() {
		return NewSquare(5, rank)
	}
	return NewSquare(3, rank)
}

// String returns the UCI long algebraic form of the move (e.g. "e2e4",
// "e7e8q"). Castling is rendered using the king's real landing square, so
// the wire format never reveals the internal rook-square encoding.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	from := m.From()
	to := m.To()
	if m.IsCastle() {
		to = m.KingTo()
	}

	s := from.String() + to.String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}

	return s
}

// ParseMove parses a UCI long algebraic move string against pos, filling
// in the moving/captured piece and castling/en-passant flags by
// consulting the position.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()
	us := piece.Color()

	if pt == King && abs(int(to)-int(from)) == 2 {
		kingSide := to.File() == 6
		rookFrom := pos.CastlingRooks[us][sideIndex(kingSide)]
		return NewCastle(from, rookFrom, piece, kingSide), nil
	}

	captured := pos.PieceAt(to)

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, piece, captured, promo), nil
	}

	if pt == Pawn && captured == NoPiece && to.File() != from.File() && pos.EnPassant.IsValid() {
		epLanding := pos.EnPassantLanding()
		if to == epLanding {
			epPawn := NewPiece(Pawn, us.Other())
			return NewEnPassant(from, to, piece, epPawn), nil
		}
	}

	return NewMove(from, to, piece, captured), nil
}

func sideIndex(kingSide bool) int {
	if kingSide {
		return 0
	}
	return 1
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores information needed to undo a move, including the
// incrementally-maintained evaluation terms so UnmakeMove restores them
// without rescanning the board.
type UndoInfo struct {
	CastlingRights  CastlingRights
	EnPassant       Square
	HalfMoveClock   int
	Hash            uint64
	PawnKey         uint64
	Checkers        Bitboard
	PSTSum          EvalValue
	MaterialBalance int
	PieceSignature  PieceSignature
	KingSquare      [2]Square
	Pieces          [2][6]Bitboard
	Occupied        [2]Bitboard
	AllOccupied     Bitboard
	Valid           bool
}
