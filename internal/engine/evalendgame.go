package engine

import (
	"github.com/qapla-engine/qapla/internal/bitbase"
	"github.com/qapla-engine/qapla/internal/board"
)

// endgameBitbase, if set, is consulted by endgameOverride for positions
// whose material signature is covered by a generated table. Set via
// SetEndgameBitbase; Engine.SetBitbase wires the same store here so the
// static evaluator and search-time root probing share one source of truth.
var endgameBitbase bitbase.Resolver

// SetEndgameBitbase attaches the resolver the static evaluator consults for
// recognized low-material endgame signatures.
func SetEndgameBitbase(r bitbase.Resolver) {
	endgameBitbase = r
}

const (
	kingRaceBonus  = 150
	winningBonus   = 2000
	nearDrawMargin = 20

	// bitbaseSlopeDivisor reduces the tapered material+PST term blended
	// into a bitbase-resolved win/loss, so it nudges move ordering toward
	// the more dominant side without ever threatening to flip the
	// win/loss bound itself.
	bitbaseSlopeDivisor = 16
)

// endgameOverride returns a side-to-move-relative score for positions whose
// material signature is better evaluated by a specialized endgame rule than
// by the general tapered evaluator, along with whether such a rule applied.
// It mirrors the signature-keyed dispatch of a classical endgame module:
// dead-drawn material combinations resolve immediately, a handful of known
// winning patterns get a corner-driving or race heuristic, and anything with
// a generated bitbase table defers to it.
func endgameOverride(pos *board.Position) (int, bool) {
	us := pos.SideToMove

	if endgameBitbase != nil {
		if wdl, ok := endgameBitbase.Probe(pos); ok {
			// WDL is already side-to-move relative; rescale the bound and
			// blend in a reduced-weight material/PST slope so positions
			// sharing a WDL class still order by how dominant they are.
			slope := relativeScore(materialSlope(pos), us) / bitbaseSlopeDivisor
			switch wdl {
			case bitbase.Win:
				return winningBonus + slope, true
			case bitbase.Loss:
				return -winningBonus + slope, true
			case bitbase.Draw:
				return DrawValue, true
			}
		}
	}

	sig := board.ComputeSignature(pos)

	if sig.HasPawn(board.White) || sig.HasPawn(board.Black) {
		if v, ok := pawnEndgameOverride(pos, sig); ok {
			return relativeScore(v, us), true
		}
		return 0, false
	}

	// No pawns on the board and no material anywhere: bare kings, always
	// a draw.
	if totalMajors(sig, board.White)+totalMinors(sig, board.White) == 0 &&
		totalMajors(sig, board.Black)+totalMinors(sig, board.Black) == 0 {
		return DrawValue, true
	}

	// A side with no major/minor material at all cannot win, and
	// bare-king-vs-bare-king-plus-minor is handled below.
	winner, loser, ok := soleMinorSide(sig)
	if !ok {
		return 0, false
	}

	switch {
	case sig.Count(winner, board.Bishop) >= 1 && sig.Count(winner, board.Knight) >= 1 &&
		totalMinors(sig, winner) == 2 && totalMinors(sig, loser) == 0:
		v := kbnkScore(pos, winner, loser)
		return relativeScore(v, us), true
	case sig.Count(winner, board.Bishop) >= 2 && sig.Count(winner, board.Knight) == 0 &&
		totalMajors(sig, winner) == 0 && totalMajors(sig, loser) == 0:
		// KBBK: a mate can only be forced with bishops on both square
		// colors; same-colored bishops can never cover the far corners.
		if bishopsCoverBothColors(pos, winner) {
			v := forceToAnyCornerScore(pos, winner, loser)
			return relativeScore(v, us), true
		}
		return DrawValue, true
	default:
		// KNK, KBK, KNNK and bare kings: insufficient material to force mate.
		if totalMajors(sig, winner) == 0 && totalMajors(sig, loser) == 0 {
			return DrawValue, true
		}
	}

	return 0, false
}

// materialSlope returns a White-relative, tapered material+PST score with
// the same phase-blend shape as Evaluate's, for blending a small amount of
// positional slope into a bitbase-resolved win/loss.
func materialSlope(pos *board.Position) int {
	mg := pos.MaterialBalance + int(pos.PSTSum.MG)
	eg := pos.MaterialBalance + int(pos.PSTSum.EG)
	phase := gamePhase(pos)
	const maxPhase = 24
	if phase > maxPhase {
		phase = maxPhase
	}
	return (mg*phase + eg*(maxPhase-phase)) / maxPhase
}

// bishopsCoverBothColors reports whether c's bishops occupy both light and
// dark squares.
func bishopsCoverBothColors(pos *board.Position, c board.Color) bool {
	bishops := pos.Pieces[c][board.Bishop]
	light, dark := false, false
	bishops.ForEach(func(sq board.Square) {
		if bishopSquareIsLight(sq) {
			light = true
		} else {
			dark = true
		}
	})
	return light && dark
}

// forceToAnyCornerScore drives the defending king toward whichever corner
// is nearer, used for mates that don't require a specific corner color.
func forceToAnyCornerScore(pos *board.Position, winner, loser board.Color) int {
	loserKing := pos.KingSquare[loser]
	distance := -distanceToAnyCorner(loserKing)*2 - manhattanDistance(pos.KingSquare[winner], loserKing)
	v := winningBonus + distance
	if winner == board.Black {
		return -v
	}
	return v
}

func distanceToAnyCorner(sq board.Square) int {
	file, rank := sq.File(), sq.Rank()
	fileDist := file
	if 7-file < fileDist {
		fileDist = 7 - file
	}
	rankDist := rank
	if 7-rank < rankDist {
		rankDist = 7 - rank
	}
	if fileDist > rankDist {
		return fileDist
	}
	return rankDist
}

// relativeScore converts a White-relative centipawn value to one relative
// to side-to-move us.
func relativeScore(v int, us board.Color) int {
	if us == board.Black {
		return -v
	}
	return v
}

// soleMinorSide reports which side (if either) holds the only minor/major
// material on an otherwise bare board, so forced-draw and mating-material
// checks can run without scanning both sides twice.
func soleMinorSide(sig board.PieceSignature) (winner, loser board.Color, ok bool) {
	whiteMat := totalMajors(sig, board.White) + totalMinors(sig, board.White)
	blackMat := totalMajors(sig, board.Black) + totalMinors(sig, board.Black)
	switch {
	case whiteMat > 0 && blackMat == 0:
		return board.White, board.Black, true
	case blackMat > 0 && whiteMat == 0:
		return board.Black, board.White, true
	default:
		return 0, 0, false
	}
}

func totalMinors(sig board.PieceSignature, c board.Color) int {
	return sig.Count(c, board.Knight) + sig.Count(c, board.Bishop)
}

func totalMajors(sig board.PieceSignature, c board.Color) int {
	return sig.Count(c, board.Rook) + sig.Count(c, board.Queen)
}

// kbnkScore drives the losing king toward the corner matching the winning
// side's bishop square color, the only corner a bishop-and-knight mate can
// be forced into.
func kbnkScore(pos *board.Position, winner, loser board.Color) int {
	bishopSq := (pos.Pieces[winner][board.Bishop]).LSB()
	whiteCorner := bishopSquareIsLight(bishopSq)

	loserKing := pos.KingSquare[loser]
	knightSq := (pos.Pieces[winner][board.Knight]).LSB()

	value := forceToCorrectCorner(loserKing, whiteCorner) * 50
	knightDistance := manhattanDistance(loserKing, knightSq) * 20

	v := winningBonus - knightDistance + value
	if winner == board.Black {
		return -v
	}
	return v
}

// bishopSquareIsLight reports whether sq is a light square, i.e. (file+rank)
// is odd.
func bishopSquareIsLight(sq board.Square) bool {
	return (sq.File()+sq.Rank())%2 == 1
}

func manhattanDistance(a, b board.Square) int {
	df := a.File() - b.File()
	if df < 0 {
		df = -df
	}
	dr := a.Rank() - b.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}

// forceToCorrectCorner scores how close the defending king is driven to the
// mating corner that matches whiteCorner (a1/h8 diagonal if false, a8/h1 if
// true): twice the negative of its Chebyshev distance to the nearer
// matching corner.
func forceToCorrectCorner(loserKing board.Square, whiteCorner bool) int {
	return -distanceToCorrectColorCorner(loserKing, whiteCorner) * 2
}

func distanceToCorrectColorCorner(sq board.Square, whiteCorner bool) int {
	file, rank := sq.File(), sq.Rank()
	maxInt := func(a, b int) int {
		if a > b {
			return a
		}
		return b
	}
	minInt := func(a, b int) int {
		if a < b {
			return a
		}
		return b
	}
	if whiteCorner {
		distA8 := maxInt(7-rank, file)
		distH1 := maxInt(rank, 7-file)
		return minInt(distA8, distH1)
	}
	distA1 := maxInt(rank, file)
	distH8 := maxInt(7-rank, 7-file)
	return minInt(distA1, distH8)
}

// pawnEndgameOverride handles the common single-pawn and pawn-race
// endgames: a lone pawn with kings that cannot catch it, or a runner pawn
// that queens before the defending king arrives.
func pawnEndgameOverride(pos *board.Position, sig board.PieceSignature) (int, bool) {
	whiteBare := totalMajors(sig, board.White)+totalMinors(sig, board.White) == 0
	blackBare := totalMajors(sig, board.Black)+totalMinors(sig, board.Black) == 0
	if !whiteBare || !blackBare {
		return 0, false
	}

	whitePawns := sig.HasPawn(board.White)
	blackPawns := sig.HasPawn(board.Black)
	if whitePawns && blackPawns {
		// KPK-vs-KPK races are left to the general evaluator; the
		// rule-of-the-square test below only handles a lone pawn.
		return 0, false
	}

	var runner board.Color
	switch {
	case whitePawns:
		runner = board.White
	case blackPawns:
		runner = board.Black
	default:
		return DrawValue, true // bare kings: draw
	}

	pawns := pos.Pieces[runner][board.Pawn]
	if pawns.PopCount() != 1 {
		return 0, false
	}
	pawnSq := pawns.LSB()

	if isRunner(pos, runner, pawnSq) {
		v := winningBonus
		if runner == board.Black {
			v = -v
		}
		return v, true
	}
	return 0, false
}

// isRunner applies the rule of the square: the pawn queens unopposed if the
// defending king cannot reach the queening square in time, accounting for
// who is to move.
func isRunner(pos *board.Position, runner board.Color, pawnSq board.Square) bool {
	defender := runner.Other()
	defenderKing := pos.KingSquare[defender]

	queenRank := 7
	if runner == board.Black {
		queenRank = 0
	}
	queeningSquare := board.NewSquare(pawnSq.File(), queenRank)

	movesToQueen := 7 - pawnSq.RelativeRank(runner)
	opponentToMove := 0
	if pos.SideToMove == defender {
		opponentToMove = 1
	}

	return manhattanDistance(queeningSquare, defenderKing) > movesToQueen+opponentToMove
}
