// Package history archives assistant transcripts in a local LevelDB store.
// The live transcript resets on record switch; the archive keeps every turn
// so past exchanges stay reviewable.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/medchain/medchain/internal/model"
)

// Entry is one archived exchange.
type Entry struct {
	Speaker model.Speaker `json:"speaker"`
	Text    string        `json:"text"`
	Err     bool          `json:"err,omitempty"`
	At      time.Time     `json:"at"`
}

// Store is a per-account, append-ordered turn archive.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the archive at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Keys are "t|<account>|<seq>" with a big-endian sequence so iteration
// order is append order. The per-account counter lives under "c|<account>".

func seqKey(account string, seq uint64) []byte {
	key := make([]byte, 0, 2+len(account)+1+8)
	key = append(key, 't', '|')
	key = append(key, account...)
	key = append(key, '|')
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(key, b[:]...)
}

func counterKey(account string) []byte {
	return []byte("c|" + account)
}

// Append archives turns for account in order.
func (s *Store) Append(account string, turns []model.Turn) error {
	if account == "" || len(turns) == 0 {
		return nil
	}
	seq := uint64(0)
	if raw, err := s.db.Get(counterKey(account), nil); err == nil && len(raw) == 8 {
		seq = binary.BigEndian.Uint64(raw)
	}

	batch := new(leveldb.Batch)
	for _, turn := range turns {
		e := Entry{Speaker: turn.Speaker, Text: turn.Text, Err: turn.Err, At: turn.At}
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		batch.Put(seqKey(account, seq), raw)
		seq++
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	batch.Put(counterKey(account), b[:])

	return s.db.Write(batch, nil)
}

// List returns every archived entry for account in append order.
func (s *Store) List(account string) ([]Entry, error) {
	var out []Entry
	iter := s.db.NewIterator(util.BytesPrefix([]byte("t|"+account+"|")), nil)
	defer iter.Release()
	for iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
