// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package delta

import "context"

// QuillComposer is the built-in Composer: a Quill-style delta compose.
// It is provided so the package is self-testing and so hosts that don't
// already own an operational-transform library have a working default;
// hosts are free to inject their own.
type QuillComposer struct{}

// Compose folds deltas left to right: compose([a,b,c]) is computed as
// composePair(composePair(a,b),c), matching the associativity contract
// required by the engine.
func (QuillComposer) Compose(ctx context.Context, deltas []Delta) (Delta, error) {
	result := Empty()
	for _, d := range deltas {
		select {
		case <-ctx.Done():
			return Delta{}, ctx.Err()
		default:
		}
		result = composePair(result, d)
	}
	return result, nil
}

// composePair merges b onto a.
func composePair(a, b Delta) Delta {
	var resultOps []Operation
	iter := newOpIterator(a.Ops)
	var pos uint32
	var currentAttrs map[string]interface{}

	for _, opB := range b.Ops {
		switch {
		case opB.Insert != nil:
			insertAttrs := mergeAttributes(opB.Attributes, currentAttrs)
			resultOps = append(resultOps, Operation{
				Insert:     opB.Insert,
				Attributes: insertAttrs,
			})
			if s, ok := opB.Insert.(string); ok {
				pos += uint32(len([]rune(s)))
			} else {
				pos++
			}

		case opB.Delete != nil:
			deleteLen := *opB.Delete
			iter.consume(deleteLen)
			pos += deleteLen
			if deleteLen > 0 {
				resultOps = append(resultOps, Operation{Delete: u32ptr(deleteLen)})
			}

		case opB.Retain != nil:
			if len(opB.Attributes) > 0 {
				currentAttrs = mergeAttributes(currentAttrs, opB.Attributes)
			}
			remaining := *opB.Retain
			for remaining > 0 && iter.hasNext() {
				aOp := iter.next(remaining)
				partLen := aOp.Length()
				merged := mergeAttributes(aOp.Attributes, currentAttrs)
				switch {
				case aOp.IsInsert():
					resultOps = append(resultOps, Operation{Insert: aOp.Insert, Attributes: merged})
				case aOp.IsRetain() && partLen > 0:
					resultOps = append(resultOps, Operation{Retain: u32ptr(partLen), Attributes: merged})
				}
				pos += partLen
				if partLen >= remaining {
					remaining = 0
				} else {
					remaining -= partLen
				}
			}
		}
	}

	for iter.hasNext() {
		op := iter.next(iter.peekLength())
		if !op.IsRetain() || op.Length() > 0 {
			merged := mergeAttributes(op.Attributes, currentAttrs)
			op.Attributes = merged
			resultOps = append(resultOps, op)
		}
		pos += op.Length()
	}

	// Trim a trailing bare newline insert, per the Quill document
	// convention.
	if n := len(resultOps); n > 0 {
		last := resultOps[n-1]
		if s, ok := last.Insert.(string); ok && s == "\n" {
			resultOps = resultOps[:n-1]
		}
	}

	if resultOps == nil {
		resultOps = []Operation{}
	}
	return Delta{Ops: resultOps}
}

// mergeAttributes overlays modifier onto base; a null value in modifier
// deletes the key from base.
func mergeAttributes(base, modifier map[string]interface{}) map[string]interface{} {
	if base == nil && modifier == nil {
		return nil
	}
	out := make(map[string]interface{}, len(base)+len(modifier))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range modifier {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func u32ptr(v uint32) *uint32 { return &v }

// opIterator walks a's operations, splitting them at arbitrary offsets so
// compose can align against b's retain/delete boundaries.
type opIterator struct {
	ops    []Operation
	index  int
	offset uint32
}

func newOpIterator(ops []Operation) *opIterator {
	return &opIterator{ops: ops}
}

func (it *opIterator) hasNext() bool {
	return it.index < len(it.ops)
}

func (it *opIterator) peekLength() uint32 {
	if it.index >= len(it.ops) {
		return 0
	}
	return it.ops[it.index].Length() - it.offset
}

func (it *opIterator) next(length uint32) Operation {
	op := it.ops[it.index]
	remaining := op.Length() - it.offset
	if length >= remaining {
		it.index++
		it.offset = 0
		return op
	}
	part := splitOp(op, it.offset, length)
	it.offset += length
	return part
}

func (it *opIterator) consume(length uint32) {
	remaining := it.peekLength()
	if length >= remaining {
		it.index++
		it.offset = 0
	} else {
		it.offset += length
	}
}

func splitOp(op Operation, offset, length uint32) Operation {
	switch {
	case op.Insert != nil:
		if s, ok := op.Insert.(string); ok {
			r := []rune(s)
			start := int(offset)
			end := int(offset + length)
			if start > len(r) {
				start = len(r)
			}
			if end > len(r) {
				end = len(r)
			}
			return Operation{Insert: string(r[start:end]), Attributes: op.Attributes}
		}
		return op
	case op.Retain != nil:
		return Operation{Retain: u32ptr(length), Attributes: op.Attributes}
	case op.Delete != nil:
		return Operation{Delete: u32ptr(length)}
	default:
		return Operation{}
	}
}
