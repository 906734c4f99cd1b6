package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yanun0323/errors"

	"venuetrader/internal/schema"
)

// Snapshot captures orders and positions at a point in time.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Positions []PositionEntry `json:"positions"`
	Orders    []Order         `json:"orders"`
}

// PositionEntry is a single position entry.
type PositionEntry struct {
	Account  string          `json:"account"`
	Exchange schema.Exchange `json:"exchange"`
	Product  string          `json:"product"`
	Qty      int64           `json:"qty"`
}

// Key returns the position key of the entry.
func (e PositionEntry) Key() PositionKey {
	return PositionKey{Account: e.Account, Exchange: e.Exchange, Product: e.Product}
}

// Snapshot builds a snapshot from the current maps.
func (s *Store) Snapshot() Snapshot {
	positions := *s.positions.Load()
	entries := make([]PositionEntry, 0, len(positions))
	for key, qty := range positions {
		entries = append(entries, PositionEntry{
			Account:  key.Account,
			Exchange: key.Exchange,
			Product:  key.Product,
			Qty:      qty,
		})
	}
	sortEntries(entries)
	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		Positions: entries,
		Orders:    s.Orders(),
	}
}

func sortEntries(entries []PositionEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		if a.Product != b.Product {
			return a.Product < b.Product
		}
		return a.Exchange < b.Exchange
	})
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create snapshot dir")
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "unmarshal snapshot")
	}
	return snap, nil
}
