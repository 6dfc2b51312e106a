// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "leveldb")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("doc-1", []byte("snapshot-1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get("doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "snapshot-1" {
		t.Fatalf("expected snapshot-1, got %q (ok=%v)", got, ok)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing document")
	}
}

func TestListReturnsAllStoredIDs(t *testing.T) {
	s := openTestStore(t)
	s.Put("a", []byte("1"))
	s.Put("b", []byte("2"))

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	s := openTestStore(t)
	s.Put("doc", []byte("x"))
	if err := s.Delete("doc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ := s.Get("doc")
	if ok {
		t.Fatal("expected document to be gone after Delete")
	}
}

func TestPutOverwritesPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)
	s.Put("doc", []byte("v1"))
	s.Put("doc", []byte("v2"))
	got, _, _ := s.Get("doc")
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}
}
