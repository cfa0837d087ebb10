package bitbase

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/qapla-engine/qapla/internal/board"
)

// fileMagic marks a bitbase file; fileVersion lets the on-disk format
// evolve without silently misreading older files.
const (
	fileMagic   = "QBB1"
	fileVersion = 1
)

// Save writes t to path using mode for the WDL payload, per spec.md §4.5's
// on-disk format: a small header, then the two (stm=White, stm=Black)
// planes concatenated and compressed as one block.
func (t *Table) Save(path string, mode Mode) error {
	raw := make([]byte, 2*t.Size)
	for stm := 0; stm < 2; stm++ {
		for i, v := range t.wdl[stm] {
			raw[int64(stm)*t.Size+int64(i)] = byte(v)
		}
	}

	payload, err := Compress(raw, mode)
	if err != nil {
		return fmt.Errorf("bitbase: compress %s: %w", t.Sig, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var header [16]byte
	copy(header[0:4], fileMagic)
	binary.LittleEndian.PutUint32(header[4:8], fileVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(t.Size))
	if _, err := f.Write(header[:]); err != nil {
		return err
	}
	_, err = f.Write(payload)
	return err
}

// LoadTable reads a table for sig from path, verifying it decompresses to
// the expected index-space size for sig.
func LoadTable(path string, sig Signature) (*Table, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()
	if len(data) < 16 || string(data[0:4]) != fileMagic {
		return nil, fmt.Errorf("bitbase: %s: not a bitbase file", path)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != fileVersion {
		return nil, fmt.Errorf("bitbase: %s: unsupported version %d", path, v)
	}
	size :=int64(binary.LittleEndian.Uint64(data[8:16]))
	want := sig.IndexSpaceSize()
	if size != want {
		return nil, fmt.Errorf("bitbase: %s: size mismatch for %s: file has %d, signature expects %d", path, sig, size, want)
	}

	raw, err := Decompress(data[16:], int(2*size))
	if err != nil {
		return nil, fmt.Errorf("bitbase: decompress %s: %w", path, err)
	}

	t := &Table{Sig: sig, Size: size}
	t.wdl[0] = make([]WDL, size)
	t.wdl[1] = make([]WDL, size)
	for i := int64(0); i < size; i++ {
		t.wdl[0][i] = WDL(raw[i])
		t.wdl[1][i] = WDL(raw[size+i])
	}
	return t, nil
}

// Store probes a directory of generated bitbase files on demand, caching
// decompressed tables in a bounded ristretto cache so a long-running
// search doesn't repeatedly pay the decompression cost for hot endgames.
type Store struct {
	dir   string
	cache *ristretto.Cache[string, *Table]

	mu      sync.Mutex
	missing map[string]bool // signatures confirmed absent from dir
}

// NewStore opens a bitbase directory. dir may not exist yet (e.g. before
// any tables have been generated); probes simply report not-found.
func NewStore(dir string) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *Table]{
		NumCounters: 1e4,
		MaxCost:     256 << 20, // 256MiB of decompressed tables
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("bitbase: new cache: %w", err)
	}
	return &Store{dir: dir, cache: cache, missing: make(map[string]bool)}, nil
}

// Close releases cache resources.
func (s *Store) Close() {
	s.cache.Close()
}

func (s *Store) path(sig Signature) string {
	return filepath.Join(s.dir, sig.String()+".bb")
}

func (s *Store) table(sig Signature) (*Table, bool) {
	key := sig.String()
	if t, ok := s.cache.Get(key); ok {
		return t, true
	}

	s.mu.Lock()
	known := s.missing[key]
	s.mu.Unlock()
	if known {
		return nil, false
	}

	t, err := LoadTable(s.path(sig), sig)
	if err != nil {
		s.mu.Lock()
		s.missing[key] = true
		s.mu.Unlock()
		return nil, false
	}

	s.cache.Set(key, t, 2*t.Size)
	s.cache.Wait()
	return t, true
}

// Probe implements Resolver: it reports the WDL for pos if a table for
// its material signature is available in the store.
func (s *Store) Probe(pos *board.Position) (WDL, bool) {
	sig := FromPosition(pos)
	t, ok := s.table(sig)
	if !ok {
		return Unknown, false
	}
	stm, idx := sig.PositionIndex(pos)
	wdl := t.Get(stm, idx)
	if wdl == Unknown || wdl == Illegal {
		return wdl, false
	}
	return wdl, true
}
