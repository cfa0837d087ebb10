// Package bitbase implements the win/draw/loss endgame bitbase subsystem:
// canonical position indexing for a fixed piece signature, retrograde-
// analysis generation, a Huffman+LZ77-style compressed on-disk format, and
// a thread-safe in-memory reader with a decompressed-block cache.
package bitbase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qapla-engine/qapla/internal/board"
)

// WDL is the outcome of a bitbase position from the side-to-move's
// perspective.
type WDL uint8

const (
	Unknown WDL = iota
	Win
	Draw
	Loss
	Illegal
)

func (w WDL) String() string {
	switch w {
	case Win:
		return "win"
	case Draw:
		return "draw"
	case Loss:
		return "loss"
	case Illegal:
		return "illegal"
	default:
		return "unknown"
	}
}

// Signature names a fixed endgame material configuration, e.g. "KRKP":
// White's pieces (always led by K) followed by Black's. Order within a
// side does not matter for generation; String() renders a canonical form.
type Signature struct {
	// Counts[color][pieceType] excludes the king, which is implicit.
	Counts [2][6]int
}

// ParseSignature parses a signature string like "KRKP" or "KQKR" into
// per-color piece counts. The first 'K' (implicit, not counted) starts
// White's pieces; the second 'K' starts Black's.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	color := -1
	for i := 0; i < len(s); i++ {
		pt, err := pieceTypeFromChar(s[i])
		if err != nil {
			return Signature{}, err
		}
		if pt == board.King {
			color++
			if color > 1 {
				return Signature{}, fmt.Errorf("signature %q: too many kings", s)
			}
			continue
		}
		if color < 0 {
			return Signature{}, fmt.Errorf("signature %q: must start with K", s)
		}
		sig.Counts[color][pt]++
	}
	if color != 1 {
		return Signature{}, fmt.Errorf("signature %q: expected exactly two kings", s)
	}
	return sig, nil
}

func pieceTypeFromChar(c byte) (board.PieceType, error) {
	switch c {
	case 'K':
		return board.King, nil
	case 'Q':
		return board.Queen, nil
	case 'R':
		return board.Rook, nil
	case 'B':
		return board.Bishop, nil
	case 'N':
		return board.Knight, nil
	case 'P':
		return board.Pawn, nil
	default:
		return 0, fmt.Errorf("unknown piece letter %q", string(c))
	}
}

// String renders the canonical "KRKP"-style name for the signature.
func (s Signature) String() string {
	var b strings.Builder
	order := []board.PieceType{board.Queen, board.Rook, board.Bishop, board.Knight, board.Pawn}
	for color := board.White; color <= board.Black; color++ {
		b.WriteByte('K')
		for _, pt := range order {
			for i := 0; i < s.Counts[color][pt]; i++ {
				b.WriteByte(pt.Char() - 32) // upper-case
			}
		}
	}
	return b.String()
}

// HasPawns reports whether either side has a pawn in this signature, which
// restricts king-placement symmetry to left/right mirroring only.
func (s Signature) HasPawns() bool {
	return s.Counts[board.White][board.Pawn] > 0 || s.Counts[board.Black][board.Pawn] > 0
}

// PieceCount returns the total number of non-king pieces in the signature.
func (s Signature) PieceCount() int {
	n := 0
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			n += s.Counts[c][pt]
		}
	}
	return n
}

// FromPosition derives the Signature a position belongs to.
func FromPosition(pos *board.Position) Signature {
	var sig Signature
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			sig.Counts[c][pt] = pos.Pieces[c][pt].PopCount()
		}
	}
	return sig
}

// kingTriangle is the 10-square a1..d4 fundamental region used when no
// pawn is present: files a-d, ranks 1-4, restricted to the a1-h8 diagonal
// half (file <= rank within the quadrant), spec.md's "a1..d4 triangle".
var kingTriangle = buildKingTriangle()

func buildKingTriangle() []board.Square {
	var squares []board.Square
	for rank := 0; rank < 4; rank++ {
		for file := 0; file <= rank; file++ {
			squares = append(squares, board.NewSquare(file, rank))
		}
	}
	return squares
}

// kingHalf is the 32-square half-board (files a-d) used when a pawn is
// present, since pawns break the vertical/diagonal symmetry and only the
// left-right mirror remains free.
var kingHalf = buildKingHalf()

func buildKingHalf() []board.Square {
	var squares []board.Square
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 4; file++ {
			squares = append(squares, board.NewSquare(file, rank))
		}
	}
	return squares
}

// mapToFundamentalRegion applies the symmetry group (up to 8 board
// transforms, or just left-right mirror with pawns present) that carries
// the white king into the fundamental region, and returns the transform
// index applied (0 = identity), so the caller can apply the same
// transform to every other piece.
func mapToFundamentalRegion(wk board.Square, hasPawns bool) (board.Square, int) {
	if hasPawns {
		if wk.File() < 4 {
			return wk, 0
		}
		return mirrorFile(wk), 1
	}

	for t := 0; t < 8; t++ {
		mapped := applySymmetry(wk, t)
		if inTriangle(mapped) {
			return mapped, t
		}
	}
	// Should not happen for a full symmetry group, but fall back to
	// identity to avoid an index panic on malformed input.
	return wk, 0
}

func inTriangle(sq board.Square) bool {
	f, r := sq.File(), sq.Rank()
	return f < 4 && r < 4 && f <= r
}

func mirrorFile(sq board.Square) board.Square {
	return board.NewSquare(7-sq.File(), sq.Rank())
}

func mirrorRank(sq board.Square) board.Square {
	return board.NewSquare(sq.File(), 7-sq.Rank())
}

func transposeDiag(sq board.Square) board.Square {
	return board.NewSquare(sq.Rank(), sq.File())
}

// applySymmetry applies one of the 8 board symmetries (dihedral group of
// the square) indexed 0..7: identity, mirror-file, mirror-rank,
// mirror-both, and the same four composed with a diagonal transpose.
func applySymmetry(sq board.Square, t int) board.Square {
	if t >= 4 {
		sq = transposeDiag(sq)
		t -= 4
	}
	switch t {
	case 1:
		return mirrorFile(sq)
	case 2:
		return mirrorRank(sq)
	case 3:
		return mirrorFile(mirrorRank(sq))
	default:
		return sq
	}
}

// pawnSquareIndex maps a pawn's square (never on rank 1 or 8) to one of
// the 48 legal pawn squares.
func pawnSquareIndex(sq board.Square) int {
	return sq.Rank()*8 + sq.File() - 8
}

func pawnSquareFromIndex(idx int) board.Square {
	idx += 8
	return board.Square(idx)
}

// binomial returns C(n, k), used to index unordered placements of
// identical pieces without permutation blowup.
func binomial(n, k int64) int64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := int64(1)
	for i := int64(0); i < k; i++ {
		result = result * (n - i) / (i + 1)
	}
	return result
}

// pieceSlot names one instance of a non-king piece in canonical order,
// used to walk Counts deterministically during indexing.
type pieceSlot struct {
	color board.Color
	pt    board.PieceType
}

// canonicalSlots returns the signature's non-king pieces in a fixed
// deterministic order: White's pieces (Q,R,B,N,P) then Black's.
func (s Signature) canonicalSlots() []pieceSlot {
	order := []board.PieceType{board.Queen, board.Rook, board.Bishop, board.Knight, board.Pawn}
	var slots []pieceSlot
	for c := board.White; c <= board.Black; c++ {
		for _, pt := range order {
			for i := 0; i < s.Counts[c][pt]; i++ {
				slots = append(slots, pieceSlot{c, pt})
			}
		}
	}
	return slots
}

// Index is a canonicalised placement index within a signature's index
// space, independent of side to move (which is tracked separately).
type Index int64

// IndexSpaceSize returns the number of reachable placement indices for
// this signature: the white-king fundamental region times the remaining
// free squares for the black king and every other piece (with binomial
// discounting for repeated, same-square-set pieces).
func (s Signature) IndexSpaceSize() int64 {
	wkRegion := int64(len(kingTriangle))
	if s.HasPawns() {
		wkRegion = int64(len(kingHalf))
	}

	const boardSquares = 64
	remaining := int64(boardSquares) // black king's raw square range

	slots := s.canonicalSlots()
	total := wkRegion * remaining
	// Repeated identical pieces are counted as combinations, not
	// permutations, via binomial coefficients per same-(color,type) run.
	i := 0
	for i < len(slots) {
		j := i
		for j < len(slots) && slots[j] == slots[i] {
			j++
		}
		count := j - i
		squares := 64
		if slots[i].pt == board.Pawn {
			squares = 48
		}
		total *= binomial(int64(squares), int64(count))
		i = j
	}
	return total
}

// PositionIndex computes the canonical (side-to-move, placement) index
// pair for pos, which must belong to this signature.
func (s Signature) PositionIndex(pos *board.Position) (stm board.Color, idx Index) {
	wk := pos.KingSquare[board.White]
	bk := pos.KingSquare[board.Black]
	stm = pos.SideToMove

	region, transform := mapToFundamentalRegion(wk, s.HasPawns())
	bkMapped := applySymmetry(bk, transform)

	// Black king index: its square minus the squares "used up" by ranking
	// below it isn't tracked precisely here (illegal adjacency skipping is
	// a generation-time concern handled by the terminal-marking pass);
	// for indexing purposes we use its raw square, offset so it packs
	// densely against the white king's.
	bkIdx := int64(bkMapped)

	regionIdx := indexOf(kingRegionSquares(s.HasPawns()), region)
	base := int64(regionIdx)*64 + bkIdx

	slots := s.canonicalSlots()
	sorted := sortedSquaresForSlots(pos, slots, transform)

	i := 0
	for i < len(slots) {
		j := i
		for j < len(slots) && slots[j] == slots[i] {
			j++
		}
		group := sorted[i:j]
		squares := 64
		if slots[i].pt == board.Pawn {
			squares = 48
		}
		groupIdx := combinationRank(group, squares)
		base = base*binomial(int64(squares), int64(j-i)) + groupIdx
		i = j
	}

	return stm, Index(base)
}

func kingRegionSquares(hasPawns bool) []board.Square {
	if hasPawns {
		return kingHalf
	}
	return kingTriangle
}

func indexOf(squares []board.Square, sq board.Square) int {
	for i, s := range squares {
		if s == sq {
			return i
		}
	}
	return 0
}

// sortedSquaresForSlots gathers, for each piece slot, the mapped square of
// the corresponding piece instance on the board, sorted within each
// same-(color,type) run for a stable combination rank.
func sortedSquaresForSlots(pos *board.Position, slots []pieceSlot, transform int) []int {
	result := make([]int, len(slots))
	i := 0
	for i < len(slots) {
		j := i
		for j < len(slots) && slots[j] == slots[i] {
			j++
		}
		bb := pos.Pieces[slots[i].color][slots[i].pt]
		var squares []int
		bb.ForEach(func(sq board.Square) {
			mapped := applySymmetry(sq, transform)
			if slots[i].pt == board.Pawn {
				squares = append(squares, pawnSquareIndex(mapped))
			} else {
				squares = append(squares, int(mapped))
			}
		})
		sort.Ints(squares)
		copy(result[i:j], squares)
		i = j
	}
	return result
}

// combinationRank computes the colex (combinatorial number system) rank
// of an increasing sequence of k values chosen from {0..squares-1}.
func combinationRank(group []int, squares int) int64 {
	var rank int64
	for i, v := range group {
		rank += binomial(int64(v), int64(i+1))
	}
	return rank
}
