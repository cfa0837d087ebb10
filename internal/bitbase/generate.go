package bitbase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/qapla-engine/qapla/internal/board"
)

// Table is a fully generated or loaded WDL array for one signature: one
// byte per (side-to-move, placement-index) pair.
type Table struct {
	Sig  Signature
	Size int64
	// wdl[stm] holds one WDL byte per placement index.
	wdl [2][]WDL
}

// NewTable allocates an empty table (all Unknown) for sig.
func NewTable(sig Signature) *Table {
	n := sig.IndexSpaceSize()
	t := &Table{Sig: sig, Size: n}
	t.wdl[0] = make([]WDL, n)
	t.wdl[1] = make([]WDL, n)
	return t
}

// Get returns the WDL for (stm, idx).
func (t *Table) Get(stm board.Color, idx Index) WDL {
	if idx < 0 || int64(idx) >= t.Size {
		return Illegal
	}
	return t.wdl[stm][idx]
}

func (t *Table) set(stm board.Color, idx Index, v WDL) {
	t.wdl[stm][idx] = v
}

// Resolver looks up the WDL for a position whose signature is simpler than
// the one being generated (reached via a capture or promotion). The
// generator requires the simpler signature's table to already be loaded,
// per spec.md's "generator recurses signature-first".
type Resolver interface {
	Probe(pos *board.Position) (WDL, bool)
}

// Generate runs retrograde analysis for sig using cores worker goroutines,
// partitioned by king-square-pair shards with a round barrier between
// passes, per spec.md §4.5's parallelism model. simpler resolves any child
// position that falls into a smaller signature (capture/promotion).
func Generate(ctx context.Context, sig Signature, cores int, simpler Resolver) (*Table, error) {
	table := NewTable(sig)

	if err := markTerminal(ctx, table, cores, simpler); err != nil {
		return nil, err
	}

	for {
		progressed, err := retrogradeRound(ctx, table, cores, simpler)
		if err != nil {
			return nil, err
		}
		if !progressed {
			break
		}
	}

	return table, nil
}

// shard is one king-square-pair partition of the index space, the unit of
// work a generator goroutine owns for the lifetime of the generation.
type shard struct {
	wk, bk board.Square
}

func shardsFor(sig Signature) []shard {
	region := kingRegionSquares(sig.HasPawns())
	var shards []shard
	for _, wk := range region {
		for bk := board.A1; bk <= board.H8; bk++ {
			if kingsAdjacent(wk, bk) {
				continue
			}
			shards = append(shards, shard{wk, bk})
		}
	}
	return shards
}

func kingsAdjacent(a, b board.Square) bool {
	df := a.File() - b.File()
	dr := a.Rank() - b.Rank()
	if df < 0 {
		df = -df
	}
	if dr < 0 {
		dr = -dr
	}
	return df <= 1 && dr <= 1
}

// markTerminal marks mate, stalemate and bare-kings-draw terminal
// positions across every shard in parallel. Adjacent-king placements are
// not visited (shardsFor skips them), so their entries stay Unknown.
func markTerminal(ctx context.Context, table *Table, cores int, simpler Resolver) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cores)

	shards := shardsFor(table.Sig)
	for _, sh := range shards {
		sh := sh
		g.Go(func() error {
			return markTerminalShard(gctx, table, sh, simpler)
		})
	}
	return g.Wait()
}

func markTerminalShard(ctx context.Context, table *Table, sh shard, simpler Resolver) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	forEachPlacement(table.Sig, sh, func(pos *board.Position, stm board.Color, idx Index) {
		if table.Get(stm, idx) != Unknown {
			return
		}

		moves := pos.GenerateLegalMoves()
		if moves.Len() > 0 {
			return // not terminal; resolved in the iterative round below
		}

		if pos.InCheck() {
			table.set(stm, idx, Loss) // checkmated: side to move loses
		} else {
			table.set(stm, idx, Draw) // stalemate
		}
	})

	if table.Sig.PieceCount() == 0 {
		forEachPlacement(table.Sig, sh, func(pos *board.Position, stm board.Color, idx Index) {
			table.set(stm, idx, Draw) // bare kings
		})
	}

	return nil
}

// retrogradeRound applies one fixed-point iteration: an Unknown node
// becomes Win if any move reaches a Loss-for-opponent node, and Loss if
// every move reaches a Win-for-opponent node. Returns whether any shard
// made progress this round.
func retrogradeRound(ctx context.Context, table *Table, cores int, simpler Resolver) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cores)

	progress := make([]bool, len(shardsFor(table.Sig)))
	shards := shardsFor(table.Sig)
	for i, sh := range shards {
		i, sh := i, sh
		g.Go(func() error {
			changed, err := retrogradeShard(gctx, table, sh, simpler)
			progress[i] = changed
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, p := range progress {
		if p {
			return true, nil
		}
	}
	return false, nil
}

func retrogradeShard(ctx context.Context, table *Table, sh shard, simpler Resolver) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	changed := false
	forEachPlacement(table.Sig, sh, func(pos *board.Position, stm board.Color, idx Index) {
		if table.Get(stm, idx) != Unknown {
			return
		}

		moves := pos.GenerateLegalMoves()
		allWin := true
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			undo := pos.MakeMove(m)
			childWDL := childResult(table, pos, simpler)
			pos.UnmakeMove(m, undo)

			switch childWDL {
			case Loss:
				table.set(stm, idx, Win)
				changed = true
				return
			case Win:
			default:
				allWin = false
			}
		}
		if allWin && moves.Len() > 0 {
			table.set(stm, idx, Loss)
			changed = true
		}
	})
	return changed, nil
}

// childResult resolves a child position's WDL either from this table (if
// it's still within the same signature) or from a simpler, already-loaded
// table via the Resolver (captures/promotions reduce material).
func childResult(table *Table, pos *board.Position, simpler Resolver) WDL {
	childSig := FromPosition(pos)
	if childSig == table.Sig {
		stm, idx := table.Sig.PositionIndex(pos)
		return table.Get(stm, idx)
	}
	if simpler != nil {
		if wdl, ok := simpler.Probe(pos); ok {
			return wdl
		}
	}
	return Unknown
}

// forEachPlacement enumerates every legal placement of the remaining
// (non-king) pieces for a shard's fixed king squares, constructing a
// Position for each and invoking fn for both sides to move.
func forEachPlacement(sig Signature, sh shard, fn func(pos *board.Position, stm board.Color, idx Index)) {
	slots := sig.canonicalSlots()
	occupied := board.SquareBB(sh.wk).Set(sh.bk)

	placePieces(sig, slots, 0, occupied, nil, func(placements []placement) {
		for _, stm := range [2]board.Color{board.White, board.Black} {
			pos := buildPosition(sig, sh, placements, stm)
			if pos == nil {
				continue
			}
			_, idx := sig.PositionIndex(pos)
			fn(pos, stm, idx)
		}
	})
}

type placement struct {
	slot pieceSlot
	sq   board.Square
}

// placePieces recursively assigns squares to each remaining piece slot,
// skipping already-occupied squares and (for pawns) ranks 1 and 8.
func placePieces(sig Signature, slots []pieceSlot, i int, occupied board.Bitboard, acc []placement, fn func([]placement)) {
	if i >= len(slots) {
		fn(acc)
		return
	}
	slot := slots[i]
	for sq := board.A1; sq <= board.H8; sq++ {
		if occupied.IsSet(sq) {
			continue
		}
		if slot.pt == board.Pawn && (sq.Rank() == 0 || sq.Rank() == 7) {
			continue
		}
		placePieces(sig, slots, i+1, occupied.Set(sq), append(acc, placement{slot, sq}), fn)
	}
}

// buildPosition constructs a Position for a fixed king placement and a
// full set of remaining-piece placements. Returns nil if the resulting
// setup is structurally illegal (kings adjacent, side not to move in
// check from the other's king region — checked elsewhere).
func buildPosition(sig Signature, sh shard, placements []placement, stm board.Color) *board.Position {
	if kingsAdjacent(sh.wk, sh.bk) {
		return nil
	}

	pos := board.EmptyPosition()
	pos.SetKing(board.White, sh.wk)
	pos.SetKing(board.Black, sh.bk)
	for _, p := range placements {
		pos.PlacePiece(board.NewPiece(p.slot.pt, p.slot.color), p.sq)
	}
	pos.SideToMove = stm
	pos.Finalize()

	if !pos.IsLegalSetup() {
		return nil
	}
	return pos
}
