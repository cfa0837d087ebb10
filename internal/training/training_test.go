package training

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListGames(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g1 := Game{StartFEN: "startpos", Moves: []string{"e2e4", "e7e5"}, Outcome: WhiteWins, PlayedAt: base}
	g2 := Game{StartFEN: "startpos", Moves: []string{"d2d4"}, Outcome: Draw, PlayedAt: base.Add(time.Second)}

	if err := store.RecordGame(g1); err != nil {
		t.Fatalf("RecordGame g1: %v", err)
	}
	if err := store.RecordGame(g2); err != nil {
		t.Fatalf("RecordGame g2: %v", err)
	}

	games, err := store.Games()
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 recorded games, got %d", len(games))
	}
	if games[0].Outcome != WhiteWins || games[1].Outcome != Draw {
		t.Errorf("unexpected outcomes: %v, %v", games[0].Outcome, games[1].Outcome)
	}
}

func TestWeightSetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveWeightSet("candidate-a", []byte(`{"pawn":105}`)); err != nil {
		t.Fatalf("SaveWeightSet: %v", err)
	}

	ws, err := store.LoadWeightSet("candidate-a")
	if err != nil {
		t.Fatalf("LoadWeightSet: %v", err)
	}
	if ws.Name != "candidate-a" || string(ws.Data) != `{"pawn":105}` {
		t.Errorf("unexpected weight set: %+v", ws)
	}

	names, err := store.WeightSetNames()
	if err != nil {
		t.Fatalf("WeightSetNames: %v", err)
	}
	if len(names) != 1 || names[0] != "candidate-a" {
		t.Errorf("expected [candidate-a], got %v", names)
	}
}

func TestLoadWeightSetMissingReturnsError(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.LoadWeightSet("nonexistent"); err == nil {
		t.Error("expected error loading a weight set that was never saved")
	}
}
