// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store persists serialized document logs to a leveldb database,
// one key per document ID, holding the latest snapshot of each document.
package store

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store persists one serialized document log per document ID.
type Store struct {
	sync.RWMutex

	db *leveldb.DB
}

// Open opens (creating if necessary) a leveldb database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Put stores the serialized log bytes for documentID, overwriting any
// previous snapshot.
func (s *Store) Put(documentID string, serialized []byte) error {
	s.Lock()
	defer s.Unlock()
	if err := s.db.Put([]byte(documentID), serialized, nil); err != nil {
		return fmt.Errorf("store: put %s: %w", documentID, err)
	}
	return nil
}

// Get returns the most recently stored serialized log for documentID.
// The second return value is false if no snapshot has been stored yet.
func (s *Store) Get(documentID string) ([]byte, bool, error) {
	s.RLock()
	defer s.RUnlock()
	v, err := s.db.Get([]byte(documentID), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", documentID, err)
	}
	return v, true, nil
}

// List returns every document ID with a stored snapshot.
func (s *Store) List() ([]string, error) {
	s.RLock()
	defer s.RUnlock()
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var ids []string
	for iter.Next() {
		ids = append(ids, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: iterate: %w", err)
	}
	return ids, nil
}

// Delete removes documentID's stored snapshot, if any.
func (s *Store) Delete(documentID string) error {
	s.Lock()
	defer s.Unlock()
	if err := s.db.Delete([]byte(documentID), nil); err != nil {
		return fmt.Errorf("store: delete %s: %w", documentID, err)
	}
	return nil
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.db.Close()
}
