package bitbase

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/qapla-engine/qapla/internal/board"
)

func TestParseSignatureRoundTrip(t *testing.T) {
	sig, err := ParseSignature("KRKP")
	if err != nil {
		t.Fatal(err)
	}
	if got := sig.String(); got != "KRKP" {
		t.Fatalf("String() = %q, want KRKP", got)
	}
	if !sig.HasPawns() {
		t.Fatal("expected HasPawns true for KRKP")
	}
	if sig.PieceCount() != 2 {
		t.Fatalf("PieceCount() = %d, want 2", sig.PieceCount())
	}
}

func TestParseSignatureRejectsMalformed(t *testing.T) {
	cases := []string{"RKP", "KKK", "KXKP"}
	for _, c := range cases {
		if _, err := ParseSignature(c); err == nil {
			t.Errorf("ParseSignature(%q): expected error, got nil", c)
		}
	}
}

func TestKRKIndexSpaceIsPositive(t *testing.T) {
	sig, err := ParseSignature("KRK")
	if err != nil {
		t.Fatal(err)
	}
	if sig.IndexSpaceSize() <= 0 {
		t.Fatal("expected a positive index space for KRK")
	}
}

func TestPositionIndexWithinBounds(t *testing.T) {
	pos, err := board.ParseFEN("8/8/8/4k3/8/8/3R4/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	sig := FromPosition(pos)
	if got := sig.String(); got != "KRK" {
		t.Fatalf("FromPosition = %q, want KRK", got)
	}
	_, idx := sig.PositionIndex(pos)
	if int64(idx) < 0 || int64(idx) >= sig.IndexSpaceSize() {
		t.Fatalf("index %d out of bounds [0, %d)", idx, sig.IndexSpaceSize())
	}
}

func compressRoundTrip(t *testing.T, mode Mode, raw []byte) {
	t.Helper()
	packed, err := Compress(raw, mode)
	if err != nil {
		t.Fatalf("Compress(mode=%d): %v", mode, err)
	}
	got, err := Decompress(packed, len(raw))
	if err != nil {
		t.Fatalf("Decompress(mode=%d): %v", mode, err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("Decompress(mode=%d) round trip mismatch: got %d bytes, want %d", mode, len(got), len(raw))
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	repeating := bytes.Repeat([]byte{byte(Draw), byte(Win), byte(Win), byte(Loss)}, 200)
	random := make([]byte, 512)
	rng.Read(random)
	empty := []byte{}
	single := []byte{byte(Win)}

	for _, mode := range []Mode{ModeStoredRaw, ModeDeflate, ModeHuffmanDeflate} {
		compressRoundTrip(t, mode, repeating)
		compressRoundTrip(t, mode, random)
		compressRoundTrip(t, mode, single)
		if mode != ModeStoredRaw {
			// Stored-raw of zero bytes is a valid degenerate case too, but
			// an empty huffman tree is the edge case worth covering here.
			compressRoundTrip(t, mode, empty)
		}
	}
}

func TestHuffmanDeflateSmallerThanStoredOnRepetitiveData(t *testing.T) {
	raw := bytes.Repeat([]byte{byte(Draw)}, 4096)
	stored, err := Compress(raw, ModeStoredRaw)
	if err != nil {
		t.Fatal(err)
	}
	packed, err := Compress(raw, ModeHuffmanDeflate)
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) >= len(stored) {
		t.Fatalf("expected huffman+lz77 to beat stored-raw on repetitive input: got %d vs %d", len(packed), len(stored))
	}
}

// stubResolver always reports Unknown, sufficient for the pawnless KRK
// generation test below where no capture ever leaves the signature.
type stubResolver struct{}

func (stubResolver) Probe(pos *board.Position) (WDL, bool) { return Unknown, false }

func TestGenerateKRKMarksWinsAndDraws(t *testing.T) {
	sig, err := ParseSignature("KRK")
	if err != nil {
		t.Fatal(err)
	}

	table, err := Generate(context.Background(), sig, 2, stubResolver{})
	if err != nil {
		t.Fatal(err)
	}

	pos, err := board.ParseFEN("8/8/8/4k3/8/8/3R4/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	stm, idx := sig.PositionIndex(pos)
	if wdl := table.Get(stm, idx); wdl == Unknown {
		t.Fatal("expected a resolved WDL for a generated KRK position, got Unknown")
	}

	// A position with the lone king already mated is a Loss for the side
	// to move.
	mate, err := board.ParseFEN("R6k/8/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if FromPosition(mate).String() == "KRK" {
		mstm, midx := sig.PositionIndex(mate)
		if wdl := table.Get(mstm, midx); wdl != Loss {
			t.Errorf("expected mated side to be Loss, got %s", wdl)
		}
	}
}

func TestTableSaveLoadRoundTrip(t *testing.T) {
	sig, err := ParseSignature("KRK")
	if err != nil {
		t.Fatal(err)
	}
	table := NewTable(sig)
	table.set(board.White, 0, Win)
	table.set(board.White, 1, Draw)
	table.set(board.Black, 0, Loss)

	dir := t.TempDir()
	path := filepath.Join(dir, sig.String()+".bb")
	if err := table.Save(path, ModeHuffmanDeflate); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadTable(path, sig)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Get(board.White, 0) != Win {
		t.Error("expected Win at (White, 0) after round trip")
	}
	if loaded.Get(board.White, 1) != Draw {
		t.Error("expected Draw at (White, 1) after round trip")
	}
	if loaded.Get(board.Black, 0) != Loss {
		t.Error("expected Loss at (Black, 0) after round trip")
	}
}

func TestStoreProbeMissingSignatureReportsNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	pos, err := board.ParseFEN("8/8/8/4k3/8/8/3R4/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Probe(pos); ok {
		t.Fatal("expected Probe to report not-found for an empty store directory")
	}
}

func TestStoreProbeFindsSavedTable(t *testing.T) {
	dir := t.TempDir()
	sig, err := ParseSignature("KRK")
	if err != nil {
		t.Fatal(err)
	}

	pos, err := board.ParseFEN("8/8/8/4k3/8/8/3R4/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	stm, idx := sig.PositionIndex(pos)

	table := NewTable(sig)
	table.set(stm, idx, Win)
	if err := table.Save(filepath.Join(dir, sig.String()+".bb"), ModeDeflate); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	wdl, ok := store.Probe(pos)
	if !ok {
		t.Fatal("expected Probe to find the saved table")
	}
	if wdl != Win {
		t.Errorf("Probe: got %s, want win", wdl)
	}
}
