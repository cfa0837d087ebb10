package engine

import (
	"context"
	"log"
	"time"

	"github.com/qapla-engine/qapla/internal/bitbase"
	"github.com/qapla-engine/qapla/internal/board"
	"github.com/qapla-engine/qapla/internal/clock"
	"github.com/qapla-engine/qapla/sfnnue"
)

// SearchInfo contains information about the current search, reported to a
// protocol shell (UCI/Winboard) via Engine.OnInfo.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on a single fixed search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = no limit)
	Nodes    uint64        // Maximum nodes (0 = no limit)
	MoveTime time.Duration // Time for this move (0 = no limit)
	Infinite bool          // Search until stopped
	MultiPV  int           // Number of principal variations to find (0 or 1 = single best move)
}

// SearchResult contains the result of a single principal variation.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // 3 ply, 500ms
	Medium                   // 7 ply, 1s
	Hard                     // Maximum strength (40 ply), 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second}, // Max strength (time-limited)
}

// Engine is a single-threaded chess search engine: one transposition
// table, one move searcher, an optional endgame bitbase store, and an
// optional NNUE network. Per spec.md's single cooperative search thread,
// there is no worker fan-out: a protocol shell owns one Engine and calls
// Search/SearchWithClock from its own goroutine.
type Engine struct {
	tt       *TranspositionTable
	searcher *Searcher

	difficulty Difficulty
	bitbase    *bitbase.Store

	// Position history for repetition detection.
	rootPosHashes []uint64

	// NNUE evaluation (stub: networks load and the flag reports state,
	// but static evaluation remains the classical evaluator until the
	// NNUE accumulator is wired into Searcher's hot path).
	useNNUE bool
	nnueNet *sfnnue.Networks

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates a new chess engine with the given transposition table
// size in MB.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)
	return &Engine{
		tt:         tt,
		searcher:   NewSearcher(tt),
		difficulty: Medium,
	}
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// SetBitbase sets the endgame bitbase store used to resolve and probe
// drawn/won/lost endgames once the search reaches a signature it covers.
func (e *Engine) SetBitbase(store *bitbase.Store) {
	e.bitbase = store
	if store == nil {
		SetEndgameBitbase(nil)
		return
	}
	SetEndgameBitbase(store)
}

// HasBitbase returns true if a bitbase store is attached.
func (e *Engine) HasBitbase() bool {
	return e.bitbase != nil
}

// ProbeBitbase reports the WDL for pos if the attached bitbase store has a
// table for its material signature.
func (e *Engine) ProbeBitbase(pos *board.Position) (bitbase.WDL, bool) {
	if e.bitbase == nil {
		return bitbase.Unknown, false
	}
	return e.bitbase.Probe(pos)
}

// SetPositionHistory sets the position history for repetition detection.
// This should be called before Search with hashes from the game's move
// history.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)
	e.searcher.SetRootHistory(hashes)
}

// Search finds the best move for the given position using the engine's
// configured difficulty.
func (e *Engine) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

// SearchWithLimits finds the best move within fixed limits (depth, node
// count, or a flat per-move time budget).
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	if wdl, ok := e.probeRootBitbase(pos); ok {
		log.Printf("[Engine] bitbase hit at root: %s", wdl)
	}

	e.tt.NewSearch()
	e.searcher.Reset()

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	startTime := time.Now()
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	var bestMove board.Move
	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.searcher.Search(pos, depth)
		if move == board.NoMove {
			break
		}
		bestMove = move

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    e.searcher.Nodes(),
				Time:     time.Since(startTime),
				PV:       e.searcher.GetPV(),
				HashFull: e.tt.HashFull(),
			})
		}

		if score > MateScore-100 || score < -MateScore+100 {
			break
		}
		if limits.Nodes > 0 && e.searcher.Nodes() >= limits.Nodes {
			break
		}
	}

	return bestMove
}

// SearchWithClock finds the best move under a clock.Clock's time
// allocation (UCI-style wtime/btime/winc/binc, moves-to-go, or a fixed
// per-move/infinite/depth/node budget). maxDepth caps the iterative
// deepening; 0 or less means MaxPly.
func (e *Engine) SearchWithClock(pos *board.Position, c *clock.Clock, maxDepth int) board.Move {
	if wdl, ok := e.probeRootBitbase(pos); ok {
		log.Printf("[Engine] bitbase hit at root: %s", wdl)
	}

	e.tt.NewSearch()
	e.searcher.Reset()

	if maxDepth <= 0 {
		maxDepth = MaxPly
	}

	var bestMove board.Move
	var lastBestMove board.Move
	var stabilityCount int

	report := func(depth, score int, nodes uint64, pv []board.Move) {
		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    nodes,
				Time:     c.Elapsed(),
				PV:       pv,
				HashFull: e.tt.HashFull(),
			})
		}
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if c.Stopped() {
			break
		}
		if c.ShouldStop() {
			e.searcher.Stop()
			break
		}

		move, score, stopped := e.searcher.searchAspiration(depth)
		if stopped && depth > 1 {
			break
		}
		if move == board.NoMove {
			break
		}

		if move == lastBestMove {
			stabilityCount++
		} else {
			stabilityCount = 0
		}
		lastBestMove = move
		bestMove = move

		report(depth, score, e.searcher.Nodes(), e.searcher.GetPV())
		c.AdjustForStability(stabilityCount)

		if score > MateScore-100 || score < -MateScore+100 {
			break
		}
		if c.PastOptimum() && stabilityCount >= 4 {
			break
		}
	}

	c.Stop()
	return bestMove
}

func (e *Engine) probeRootBitbase(pos *board.Position) (bitbase.WDL, bool) {
	if e.bitbase == nil {
		return bitbase.Unknown, false
	}
	if bitbase.FromPosition(pos).PieceCount() == 0 {
		return bitbase.Unknown, false
	}
	return e.bitbase.Probe(pos)
}

// SearchMultiPV finds multiple best moves (principal variations) for
// analysis, searching each subsequent line with the previous lines'
// root moves excluded.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	results := make([]SearchResult, 0, numPV)
	var excludedMoves []board.Move

	for i := 0; i < numPV; i++ {
		move, score, pv, depth := e.searchWithExclusions(pos, limits, excludedMoves)
		if move == board.NoMove {
			break
		}

		results = append(results, SearchResult{
			Move:  move,
			Score: score,
			PV:    pv,
			Depth: depth,
		})
		excludedMoves = append(excludedMoves, move)
	}

	for i := 0; i < len(results)-1; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		if maxIdx != i {
			results[i], results[maxIdx] = results[maxIdx], results[i]
		}
	}

	return results
}

// searchWithExclusions searches for the best move excluding certain moves
// at the root, used by SearchMultiPV to find the next-best line.
func (e *Engine) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.searcher.Reset()
	e.searcher.SetExcludedMoves(excluded)
	e.tt.NewSearch()

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestDepth int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.searcher.Search(pos, depth)
		if e.searcher.IsStopped() {
			break
		}

		if move != board.NoMove {
			bestMove = move
			bestScore = score
			bestDepth = depth
		}

		if score > MateScore-100 || score < -MateScore+100 {
			break
		}
	}

	pv := e.searcher.GetPV()
	e.searcher.SetExcludedMoves(nil)

	return bestMove, bestScore, pv, bestDepth
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.searcher.Stop()
}

// Clear clears the transposition table and move-ordering history.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.searcher.ClearOrderer()
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// LoadNNUE loads NNUE network files. Evaluation itself still runs through
// the classical evaluator in Evaluate/Search; this wires the networks in
// so UseNNUE/HasNNUE report accurate state ahead of NNUE-backed evaluation
// landing on the search hot path.
func (e *Engine) LoadNNUE(bigPath, smallPath string) error {
	log.Printf("[Engine] Loading NNUE networks: big=%s small=%s", bigPath, smallPath)
	nets, err := sfnnue.LoadNetworks(bigPath, smallPath)
	if err != nil {
		log.Printf("[Engine] Failed to load NNUE: %v", err)
		return err
	}
	e.nnueNet = nets
	return nil
}

// SetUseNNUE enables or disables NNUE evaluation.
func (e *Engine) SetUseNNUE(use bool) {
	e.useNNUE = use
}

// UseNNUE returns whether NNUE evaluation is enabled.
func (e *Engine) UseNNUE() bool {
	return e.useNNUE
}

// HasNNUE returns whether NNUE networks are loaded.
func (e *Engine) HasNNUE() bool {
	return e.nnueNet != nil
}

// GenerateBitbase runs retrograde analysis for sig and saves the result to
// path, for offline bitbase construction (see cmd/qapla-bitbase).
func GenerateBitbase(ctx context.Context, sig bitbase.Signature, cores int, simpler bitbase.Resolver, path string, mode bitbase.Mode) error {
	table, err := bitbase.Generate(ctx, sig, cores, simpler)
	if err != nil {
		return err
	}
	return table.Save(path, mode)
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	// Convert centipawns to pawns
	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100

	return sign + itoa(pawns) + "." + itoa(centipawns)
}

// Simple integer to string (avoid fmt import)
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
