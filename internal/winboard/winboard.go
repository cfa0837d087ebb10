// Package winboard implements a minimal CECP/xboard protocol shell over the
// same Engine used by the UCI shell, demonstrating that the search core is
// protocol-agnostic.
package winboard

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qapla-engine/qapla/internal/board"
	"github.com/qapla-engine/qapla/internal/engine"
)

// Winboard implements the CECP ("xboard") protocol.
type Winboard struct {
	engine   *engine.Engine
	position *board.Position

	forceMode bool
	depth     int
	moveTime  time.Duration

	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool
}

// New creates a new xboard protocol handler.
func New(eng *engine.Engine) *Winboard {
	return &Winboard{
		engine:   eng,
		position: board.NewPosition(),
	}
}

// Run starts the protocol main loop, reading commands from stdin.
func (w *Winboard) Run() {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "xboard":
			fmt.Println()
		case "protover":
			w.handleProtover()
		case "new":
			w.position = board.NewPosition()
			w.forceMode = false
		case "force":
			w.forceMode = true
		case "setboard":
			w.handleSetboard(strings.Join(args, " "))
		case "sd":
			if len(args) > 0 {
				w.depth, _ = strconv.Atoi(args[0])
			}
		case "st":
			if len(args) > 0 {
				secs, _ := strconv.Atoi(args[0])
				w.moveTime = time.Duration(secs) * time.Second
			}
		case "go":
			w.forceMode = false
			w.handleGo()
		case "usermove":
			if len(args) > 0 {
				w.handleUserMove(args[0])
			}
		case "?":
			w.handleStop()
		case "result":
			// Game over notification; nothing to clean up beyond a new search.
		case "quit":
			w.handleStop()
			return
		default:
			// A bare move in CECP ("e2e4") with no "usermove" prefix.
			if isMoveLike(cmd) {
				w.handleUserMove(cmd)
			}
		}
	}
}

func (w *Winboard) handleProtover() {
	fmt.Println("feature myname=\"Qapla\" sigint=0 sigterm=0 setboard=1 usermove=1 done=1")
}

func (w *Winboard) handleSetboard(fen string) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Illegal position: %s\n", fen)
		return
	}
	w.position = pos
}

func (w *Winboard) handleUserMove(moveStr string) {
	move := w.parseMove(moveStr)
	if move == board.NoMove {
		fmt.Printf("Illegal move: %s\n", moveStr)
		return
	}
	w.position.MakeMove(move)
	w.position.UpdateCheckers()

	if !w.forceMode {
		w.handleGo()
	}
}

func (w *Winboard) parseMove(moveStr string) board.Move {
	if len(moveStr) < 4 {
		return board.NoMove
	}
	fromFile := int(moveStr[0] - 'a')
	fromRank := int(moveStr[1] - '1')
	toFile := int(moveStr[2] - 'a')
	toRank := int(moveStr[3] - '1')
	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 ||
		toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return board.NoMove
	}
	from := board.NewSquare(fromFile, fromRank)
	to := board.NewSquare(toFile, toRank)

	var promo board.PieceType
	if len(moveStr) == 5 {
		switch moveStr[4] {
		case 'q':
			promo = board.Queen
		case 'r':
			promo = board.Rook
		case 'b':
			promo = board.Bishop
		case 'n':
			promo = board.Knight
		}
	}

	moves := w.position.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		dest := m.To()
		if m.IsCastle() {
			dest = m.KingTo()
		}
		if m.From() == from && dest == to {
			if promo != 0 {
				if m.IsPromotion() && m.Promotion() == promo {
					return m
				}
			} else if !m.IsPromotion() {
				return m
			}
		}
	}
	return board.NoMove
}

// isMoveLike reports whether s looks like a bare CECP move token
// ("e2e4", "e7e8q") rather than an unrecognized command.
func isMoveLike(s string) bool {
	if len(s) < 4 || len(s) > 5 {
		return false
	}
	inFile := func(b byte) bool { return b >= 'a' && b <= 'h' }
	inRank := func(b byte) bool { return b >= '1' && b <= '8' }
	return inFile(s[0]) && inRank(s[1]) && inFile(s[2]) && inRank(s[3])
}

func (w *Winboard) handleGo() {
	limits := engine.SearchLimits{Depth: w.depth, MoveTime: w.moveTime}

	w.engine.OnInfo = func(info engine.SearchInfo) {
		fmt.Printf("%d %d %d %d %s\n",
			info.Depth, info.Score, info.Time.Milliseconds()/10, info.Nodes, pvString(info.PV))
	}

	w.searching = true
	w.stopRequested.Store(false)
	w.searchDone = make(chan struct{})

	pos := w.position.Copy()
	go func() {
		defer close(w.searchDone)
		move := w.engine.SearchWithLimits(pos, limits)
		w.searching = false
		if move == board.NoMove {
			fmt.Println("resign")
			return
		}
		w.position.MakeMove(move)
		w.position.UpdateCheckers()
		fmt.Printf("move %s\n", move.String())
	}()
}

func (w *Winboard) handleStop() {
	if w.searching {
		w.stopRequested.Store(true)
		w.engine.Stop()
		<-w.searchDone
	}
}

func pvString(pv []board.Move) string {
	parts := make([]string, len(pv))
	for i, m := range pv {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}
