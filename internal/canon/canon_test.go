// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package canon

import (
	"bytes"
	"testing"
)

func TestMarshalSortsKeys(t *testing.T) {
	in := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	got, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":2,"b":1,"c":{"y":2,"z":1}}`
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	in := map[string]interface{}{"x": 1.50000, "s": "hi\n\"there\""}
	a, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("non-deterministic output: %s vs %s", a, b)
	}
	if !bytes.Contains(a, []byte(`"x":1.5`)) {
		t.Fatalf("expected trimmed float, got %s", a)
	}
}

func TestMarshalIntegersHaveNoDecimal(t *testing.T) {
	got, err := Marshal(map[string]interface{}{"n": 42})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"n":42}`)) {
		t.Fatalf("got %s", got)
	}
}
