package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns a Position. Both standard
// KQkq castling letters and X-FEN/Shredder file-letter castling notation
// (e.g. "HAha") are accepted, the latter needed for non-standard king/
// rook start files.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	pos := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare
	pos.CastlingRooks[White][castleKingSideIdx] = NoSquare
	pos.CastlingRooks[White][castleQueenSideIdx] = NoSquare
	pos.CastlingRooks[Black][castleKingSideIdx] = NoSquare
	pos.CastlingRooks[Black][castleQueenSideIdx] = NoSquare

	if err := parsePiecePlacement(pos, parts[0]); err != nil {
		return nil, err
	}

	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("invalid side to move: %s", parts[1])
	}

	pos.KingStartFile[White] = pos.KingSquare[White].File()
	pos.KingStartFile[Black] = pos.KingSquare[Black].File()

	if err := parseCastlingRights(pos, parts[2]); err != nil {
		return nil, err
	}

	if parts[3] != "-" {
		landing, err := ParseSquare(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant square: %s", parts[3])
		}
		pos.EnPassant = enPassantPawnSquare(landing, pos.SideToMove)
	}

	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fmt.Errorf("invalid half-move clock: %s", parts[4])
		}
		pos.HalfMoveClock = hmc
	}

	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return nil, fmt.Errorf("invalid full-move number: %s", parts[5])
		}
		pos.FullMoveNumber = fmn
	}

	pos.updateOccupied()
	pos.findKings()
	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()
	pos.UpdateCheckers()

	return pos, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string.
func parsePiecePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i // FEN starts from rank 8
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}

			if c >= '1' && c <= '8' {
				file += int(c - '0')
			} else {
				piece := PieceFromChar(byte(c))
				if piece == NoPiece {
					return fmt.Errorf("invalid piece character: %c", c)
				}
				sq := NewSquare(file, rank)
				pos.setPiece(piece, sq)
				file++
			}
		}

		if file != 8 {
			return fmt.Errorf("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}

	return nil
}

// parseCastlingRights parses the castling rights section of a FEN
// string, recording each granted side's rook start square.
func parseCastlingRights(pos *Position, castling string) error {
	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	for _, c := range castling {
		switch c {
		case 'K':
			pos.CastlingRights |= WhiteKingSideCastle
			pos.CastlingRooks[White][castleKingSideIdx] = findRookFile(pos, White, true)
		case 'Q':
			pos.CastlingRights |= WhiteQueenSideCastle
			pos.CastlingRooks[White][castleQueenSideIdx] = findRookFile(pos, White, false)
		case 'k':
			pos.CastlingRights |= BlackKingSideCastle
			pos.CastlingRooks[Black][castleKingSideIdx] = findRookFile(pos, Black, true)
		case 'q':
			pos.CastlingRights |= BlackQueenSideCastle
			pos.CastlingRooks[Black][castleQueenSideIdx] = findRookFile(pos, Black, false)
		default:
			// Shredder/X-FEN: a file letter names the castling rook
			// directly, for king/rook start files other than e/a/h.
			if err := parseShredderCastling(pos, byte(c)); err != nil {
				return err
			}
		}
	}

	return nil
}

func parseShredderCastling(pos *Position, c byte) error {
	var color Color
	var fileChar byte
	switch {
	case c >= 'A' && c <= 'H':
		color = White
		fileChar = c
	case c >= 'a' && c <= 'h':
		color = Black
		fileChar = c - 'a' + 'A'
	default:
		return fmt.Errorf("invalid castling character: %c", c)
	}

	file := int(fileChar - 'A')
	rank := 0
	if color == Black {
		rank = 7
	}
	rookSq := NewSquare(file, rank)
	kingFile := pos.KingSquare[color].File()

	if file > kingFile {
		pos.CastlingRooks[color][castleKingSideIdx] = rookSq
		if color == White {
			pos.CastlingRights |= WhiteKingSideCastle
		} else {
			pos.CastlingRights |= BlackKingSideCastle
		}
	} else {
		pos.CastlingRooks[color][castleQueenSideIdx] = rookSq
		if color == White {
			pos.CastlingRights |= WhiteQueenSideCastle
		} else {
			pos.CastlingRights |= BlackQueenSideCastle
		}
	}
	return nil
}

// findRookFile locates the castling rook for standard KQkq notation: the
// outermost rook on the back rank on the appropriate side of the king.
func findRookFile(pos *Position, c Color, kingSide bool) Square {
	rank := 0
	if c == Black {
		rank = 7
	}
	kingFile := pos.KingSquare[c].File()

	if kingSide {
		for file := 7; file > kingFile; file-- {
			sq := NewSquare(file, rank)
			if pos.PieceAt(sq) == NewPiece(Rook, c) {
				return sq
			}
		}
	} else {
		for file := 0; file < kingFile; file++ {
			sq := NewSquare(file, rank)
			if pos.PieceAt(sq) == NewPiece(Rook, c) {
				return sq
			}
		}
	}
	return NoSquare
}

// ToFEN returns the FEN representation of the position.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(piece.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(p.CastlingRights.String())

	sb.WriteByte(' ')
	landing := p.EnPassantLanding()
	if landing == NoSquare {
		sb.WriteByte('-')
	} else {
		sb.WriteString(landing.String())
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// ComputeHash computes the Zobrist hash for the position from scratch.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= zobristPiece[c][pt][sq]
			}
		}
	}

	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}

	hash ^= zobristCastling[p.CastlingRights]

	if p.EnPassant != NoSquare && p.EnPassant.IsValid() {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	return hash
}

// ComputePawnKey computes the pawn hash key from scratch.
// Only includes pawn positions for pawn structure caching.
func (p *Position) ComputePawnKey() uint64 {
	var key uint64

	for c := White; c <= Black; c++ {
		bb := p.Pieces[c][Pawn]
		for bb != 0 {
			sq := bb.PopLSB()
			key ^= zobristPiece[c][Pawn][sq]
		}
	}

	return key
}
