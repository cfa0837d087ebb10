// Package training persists self-play game records and named evaluation
// weight sets produced by a training/self-play loop, backed by BadgerDB.
package training

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	gameKeyPrefix   = "game:"
	weightKeyPrefix = "weights:"
)

// Outcome is the result of a recorded self-play game, from White's
// perspective.
type Outcome int

const (
	Draw Outcome = iota
	WhiteWins
	BlackWins
)

// Game is one recorded self-play game: the starting position, the move
// list in UCI notation, and the final outcome.
type Game struct {
	StartFEN string    `json:"start_fen"`
	Moves    []string  `json:"moves"`
	Outcome  Outcome   `json:"outcome"`
	PlayedAt time.Time `json:"played_at"`
}

// WeightSet is a named, opaque evaluation-weight configuration. Training
// tooling is free to choose its own encoding for Data (e.g. a JSON map of
// term name to value); the store only keys and persists it.
type WeightSet struct {
	Name  string    `json:"name"`
	Data  []byte    `json:"data"`
	Saved time.Time `json:"saved"`
}

// Store wraps a BadgerDB instance holding recorded games and weight sets.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a training store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordGame appends a self-play game, keyed by its PlayedAt time (set to
// the current time when zero) so games sort by play time.
func (s *Store) RecordGame(g Game) error {
	if g.PlayedAt.IsZero() {
		g.PlayedAt = time.Now()
	}

	data, err := json.Marshal(g)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s%020d", gameKeyPrefix, g.PlayedAt.UnixNano())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Games returns every recorded game, ordered by PlayedAt.
func (s *Store) Games() ([]Game, error) {
	var games []Game
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(gameKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var g Game
				if err := json.Unmarshal(val, &g); err != nil {
					return err
				}
				games = append(games, g)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return games, err
}

// SaveWeightSet stores a named candidate weight set, overwriting any
// earlier set with the same name.
func (s *Store) SaveWeightSet(name string, data []byte) error {
	ws := WeightSet{Name: name, Data: data, Saved: time.Now()}
	blob, err := json.Marshal(ws)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(weightKeyPrefix+name), blob)
	})
}

// LoadWeightSet retrieves a named candidate weight set.
func (s *Store) LoadWeightSet(name string) (WeightSet, error) {
	var ws WeightSet
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(weightKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ws)
		})
	})
	return ws, err
}

// WeightSetNames lists every stored candidate weight set's name.
func (s *Store) WeightSetNames() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(weightKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			names = append(names, string(key[len(weightKeyPrefix):]))
		}
		return nil
	})
	return names, err
}
