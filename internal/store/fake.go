package store

import (
	"context"
	"sync"
)

// FakeStore keeps the record in memory and counts saves.
type FakeStore struct {
	mu sync.Mutex

	Record  Record
	Has     bool
	Saves   []Record
	LoadErr error
	SaveErr error
}

// NewFakeStore creates an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (f *FakeStore) Load(ctx context.Context) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return Record{}, f.LoadErr
	}
	if !f.Has {
		return Record{}, ErrNotFound
	}
	return f.Record, nil
}

func (f *FakeStore) Save(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.Record = rec
	f.Has = true
	f.Saves = append(f.Saves, rec)
	return nil
}

// SaveCount returns the number of successful saves.
func (f *FakeStore) SaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Saves)
}
