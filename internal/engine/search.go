package engine

import (
	"math"
	"sync/atomic"

	"github.com/qapla-engine/qapla/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128

	// DrawValue is the reserved score returned for a confirmed draw
	// (repetition, the 50-move rule, insufficient material, or a
	// dead-drawn endgame signature), relative to the side to move. It is
	// deliberately nonzero so a forced draw is distinguishable from an
	// ordinary balanced position that merely evaluates to zero.
	DrawValue = 1
)

// lmrReductions is a precomputed logarithmic late-move-reduction table,
// Stockfish-style: int(21.46*log(depth)) * int(21.46*log(moveCount)) / 1024.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(21.46*math.Log(float64(d))) * int(21.46*math.Log(float64(m))) / 1024
		}
	}
}

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
	score  int
}

// Searcher performs the alpha-beta search.
type Searcher struct {
	pos     *board.Position
	tt      *TranspositionTable
	orderer *MoveOrderer

	// Search state
	nodes    uint64
	stopFlag atomic.Bool

	// PV tracking
	pv PVTable

	// Undo stack
	undoStack [MaxPly]board.UndoInfo

	// Root position history (game moves played before this search), used
	// together with the search-local hash stack for repetition detection.
	rootPosHashes []uint64

	// searchHashes records position hashes for each ply visited during the
	// current search, so a repetition that occurs entirely within the
	// search tree (not just against the game history) is also detected.
	searchHashes [MaxPly]uint64

	// rootDelta is the width of the most recent aspiration window; it
	// scales LMR reductions the way a wide (unsure) window scales them
	// less than a narrow (confident) one.
	rootDelta int

	// excludedMoves are skipped at the root (ply 0), used by Multi-PV to
	// find the next-best line after the previous ones are known.
	excludedMoves []board.Move
}

// SetExcludedMoves sets root moves to skip, for Multi-PV search. Pass nil
// to clear.
func (s *Searcher) SetExcludedMoves(moves []board.Move) {
	s.excludedMoves = moves
}

// IsStopped reports whether the search has been signalled to stop.
func (s *Searcher) IsStopped() bool {
	return s.stopFlag.Load()
}

// ClearOrderer clears move-ordering history (killers/history/countermoves).
func (s *Searcher) ClearOrderer() {
	s.orderer.Clear()
}

func (s *Searcher) isExcludedRootMove(move board.Move) bool {
	for _, m := range s.excludedMoves {
		if m == move {
			return true
		}
	}
	return false
}

// NewSearcher creates a new searcher.
func NewSearcher(tt *TranspositionTable) *Searcher {
	return &Searcher{
		tt:      tt,
		orderer: NewMoveOrderer(),
	}
}

// SetRootHistory sets the position history from the game, so in-search
// repetition detection can see positions played before the search root.
func (s *Searcher) SetRootHistory(hashes []uint64) {
	s.rootPosHashes = make([]uint64, len(hashes))
	copy(s.rootPosHashes, hashes)
}

// Stop signals the search to stop.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// Reset resets the searcher for a new search.
func (s *Searcher) Reset() {
	s.stopFlag.Store(false)
	s.nodes = 0
	s.orderer.Clear()
}

// Nodes returns the number of nodes searched.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// Search performs the search at the given depth.
func (s *Searcher) Search(pos *board.Position, depth int) (board.Move, int) {
	s.pos = pos.Copy()
	s.Reset()

	move, score, _ := s.searchAspiration(depth)
	return move, score
}

// searchAspiration runs one iterative-deepening step with an aspiration
// window centered on the previous iteration's score, re-searching with a progressively wider
// window on fail-high/fail-low, Stockfish-style.
func (s *Searcher) searchAspiration(depth int) (board.Move, int, bool) {
	alpha, beta := -Infinity, Infinity
	delta := 16

	if depth >= 5 && s.pv.length[0] > 0 {
		guess := s.pv.score
		alpha = max(-Infinity, guess-delta)
		beta = min(Infinity, guess+delta)
	}

	var score int
	for {
		s.rootDelta = beta - alpha
		score = s.negamax(depth, 0, alpha, beta)

		if s.stopFlag.Load() {
			break
		}
		if score <= alpha {
			beta = (alpha + beta) / 2
			alpha = max(-Infinity, score-delta)
			delta += delta / 2
		} else if score >= beta {
			beta = min(Infinity, score+delta)
			delta += delta / 2
		} else {
			break
		}
	}

	var bestMove board.Move
	if s.pv.length[0] > 0 {
		bestMove = s.pv.moves[0][0]
	}
	s.pv.score = score

	return bestMove, score, s.stopFlag.Load()
}

// IterativeDeepening searches progressively deeper, reporting each
// completed iteration via report, until depth limit or stop.
func (s *Searcher) IterativeDeepening(pos *board.Position, maxDepth int, report func(depth, score int, nodes uint64, pv []board.Move)) (board.Move, int) {
	s.pos = pos.Copy()
	s.Reset()

	var bestMove board.Move
	var bestScore int
	for depth := 1; depth <= maxDepth; depth++ {
		move, score, stopped := s.searchAspiration(depth)
		if stopped && depth > 1 {
			break
		}
		bestMove, bestScore = move, score
		if report != nil {
			report(depth, score, s.nodes, s.GetPV())
		}
		if s.stopFlag.Load() {
			break
		}
	}
	return bestMove, bestScore
}

// lmrReduction looks up lmrReductions clamped to its bounds.
func lmrReduction(depth, moveCount int) int {
	d := depth
	if d >= len(lmrReductions) {
		d = len(lmrReductions) - 1
	}
	m := moveCount
	if m >= len(lmrReductions[0]) {
		m = len(lmrReductions[0]) - 1
	}
	return lmrReductions[d][m]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// negamax implements the negamax algorithm with alpha-beta pruning.
func (s *Searcher) negamax(depth, ply int, alpha, beta int) int {
	// Check for stop signal periodically
	if s.nodes&4095 == 0 && s.stopFlag.Load() {
		return 0
	}

	s.nodes++

	// Initialize PV length for this ply
	s.pv.length[ply] = ply

	// Check for draw
	if ply > 0 && s.isDraw(ply) {
		return DrawValue
	}

	s.searchHashes[ply] = s.pos.Hash

	// Probe transposition table
	var ttMove board.Move
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		if int(ttEntry.Depth) >= depth {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				return score
			}
		}
	}

	// Quiescence search at depth 0
	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	// Check if in check
	inCheck := s.pos.InCheck()

	// Generate moves
	moves := s.pos.GenerateLegalMoves()

	// Check for checkmate or stalemate
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply // Checkmate
		}
		return 0 // Stalemate
	}

	// Null move pruning: if the side to move can skip a move and still
	// fail high, the position is too good to need searching further.
	// Guarded against zugzwang by requiring non-pawn material; not tried
	// at the root, in check, below depth 3 or in a non-null window.
	if depth >= 3 && ply > 0 && !inCheck && alpha == beta-1 &&
		s.pos.HasNonPawnMaterial() {
		R := 3 + depth/4
		if R > depth-1 {
			R = depth - 1
		}
		nullUndo := s.pos.MakeNullMove()
		nullScore := -s.negamax(depth-1-R, ply+1, -beta, -beta+1)
		s.pos.UnmakeNullMove(nullUndo)

		if s.stopFlag.Load() {
			return 0
		}
		if nullScore >= beta {
			return beta
		}
	}

	// Score and sort moves
	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesSearched := 0

	for i := 0; i < moves.Len(); i++ {
		// Pick the best remaining move
		PickMove(moves, scores, i)
		move := moves.Get(i)
		if ply == 0 && s.isExcludedRootMove(move) {
			continue
		}
		isCapture := move.IsCapture()
		isPromotion := move.IsPromotion()

		// Make move
		s.undoStack[ply] = s.pos.MakeMove(move)

		// Skip if move was invalid (no piece at from square)
		if !s.undoStack[ply].Valid {
			continue
		}

		movesSearched++

		// Check extension: searching one ply deeper when the move gives
		// check avoids the horizon effect hiding a mating attack.
		givesCheck := s.pos.InCheck()
		newDepth := depth - 1
		if givesCheck {
			newDepth++
		}

		var score int
		if movesSearched > 1 && newDepth >= 3 && !isCapture && !isPromotion && !givesCheck {
			// Late move reduction: moves ordered late are unlikely to
			// raise alpha, so search them shallower first and only
			// re-search at full depth if they beat it.
			reduction := lmrReduction(newDepth, movesSearched)
			if s.rootDelta > 0 {
				reduction -= s.rootDelta / 200
			}
			if reduction < 0 {
				reduction = 0
			}
			reducedDepth := newDepth - reduction
			if reducedDepth < 1 {
				reducedDepth = 1
			}
			score = -s.negamax(reducedDepth, ply+1, -alpha-1, -alpha)
			if score > alpha && reducedDepth < newDepth {
				score = -s.negamax(newDepth, ply+1, -alpha-1, -alpha)
			}
		} else if movesSearched > 1 {
			score = -s.negamax(newDepth, ply+1, -alpha-1, -alpha)
		} else {
			score = -s.negamax(newDepth, ply+1, -beta, -alpha)
		}

		if movesSearched > 1 && score > alpha && score < beta {
			// Re-search at full window; the null-window probe only
			// confirmed the move beats alpha, not its true value.
			score = -s.negamax(newDepth, ply+1, -beta, -alpha)
		}

		// Unmake move
		s.pos.UnmakeMove(move, s.undoStack[ply])

		// Check for stop
		if s.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				// Update PV
				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		// Beta cutoff
		if score >= beta {
			// Store in TT
			s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove)

			// Update killer and history for quiet moves
			if !move.IsCapture() {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
			}

			return score
		}
	}

	// Store in TT
	s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)

	return bestScore
}

// quiescence searches only captures and promotions to avoid horizon effect.
func (s *Searcher) quiescence(ply int, alpha, beta int) int {
	// Depth limit to prevent infinite recursion
	const maxQuiescencePly = 32
	if ply >= MaxPly || ply > maxQuiescencePly {
		return Evaluate(s.pos)
	}

	// Check for stop
	if s.stopFlag.Load() {
		return 0
	}

	s.nodes++

	// Stand pat (evaluate current position)
	standPat := Evaluate(s.pos)

	if standPat >= beta {
		return beta
	}

	if standPat > alpha {
		alpha = standPat
	}

	// Delta pruning: if we're very far behind, prune
	bigDelta := QueenValue
	if standPat+bigDelta < alpha {
		return alpha
	}

	// Generate captures and promotions only
	moves := s.pos.GenerateCaptures()

	// Score captures using MVV-LVA
	scores := s.orderer.ScoreMoves(s.pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		// Delta pruning for individual moves: skip captures whose full
		// exchange sequence (via SEE) can't improve alpha significantly.
		if !s.pos.InCheck() {
			if standPat+SEE(s.pos, move)+200 < alpha {
				continue
			}
		}

		// Make move
		undo := s.pos.MakeMove(move)

		// Skip if move was invalid (no piece at from square)
		if !undo.Valid {
			continue
		}

		// Recursive search
		score := -s.quiescence(ply+1, -beta, -alpha)

		// Unmake move
		s.pos.UnmakeMove(move, undo)

		if score >= beta {
			return beta
		}

		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// isDraw checks for draw by repetition, the 50-move rule or insufficient
// material. Repetition checks both the in-search hash stack and the root
// history supplied by the game (SetRootHistory), since a repetition can
// straddle the search root.
func (s *Searcher) isDraw(ply int) bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}

	if s.pos.IsInsufficientMaterial() {
		return true
	}

	if s.isRepetition(ply) {
		return true
	}

	return false
}

// isRepetition reports whether the current position hash (at ply) has
// occurred before, either earlier in this search tree or in the game
// leading up to it. Only positions within the 50-move-rule window can
// repeat, so the scan stops at HalfMoveClock plies back.
func (s *Searcher) isRepetition(ply int) bool {
	hash := s.pos.Hash
	limit := s.pos.HalfMoveClock
	if limit == 0 {
		return false
	}

	for i := 1; i <= limit && i <= ply; i++ {
		if s.searchHashes[ply-i] == hash {
			return true
		}
	}

	remaining := limit - ply
	for i := 1; i <= remaining && i <= len(s.rootPosHashes); i++ {
		if s.rootPosHashes[len(s.rootPosHashes)-i] == hash {
			return true
		}
	}

	return false
}

// GetPV returns the principal variation from the last search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}
