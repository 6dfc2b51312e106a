// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitquill/provenance/internal/backoff"
	"github.com/bitquill/provenance/pkg/digest"
)

// Client wraps a CalendarClient with bounded exponential backoff retries
// and keeps the receipt store the engine consults for "verified with N
// timestamps" checks.
type Client struct {
	Calendar CalendarClient
	Backoff  backoff.Schedule

	mu       sync.Mutex
	receipts map[digest.Hash]*Receipt
}

// DefaultBackoff is the retry schedule used when none is supplied:
// 500ms, 1s, 2s, 4s, capped at 8s: five retries after the initial try.
func DefaultBackoff() backoff.Schedule {
	return backoff.Schedule{Base: 500 * time.Millisecond, Max: 8 * time.Second, Attempts: 5}
}

// NewClient constructs a Client against cal, using DefaultBackoff if sched
// is the zero value.
func NewClient(cal CalendarClient, sched backoff.Schedule) *Client {
	if sched.Attempts == 0 {
		sched = DefaultBackoff()
	}
	return &Client{Calendar: cal, Backoff: sched, receipts: make(map[digest.Hash]*Receipt)}
}

// Submit anchors root with the calendar, retrying transient failures per
// the client's backoff schedule, and records a pending Receipt on success.
func (c *Client) Submit(ctx context.Context, root digest.Hash, now int64) (Receipt, error) {
	var blob []byte
	var err error
	for attempt := 0; attempt <= c.Backoff.Attempts; attempt++ {
		blob, err = c.Calendar.Submit(ctx, root)
		if err == nil {
			break
		}
		if attempt == c.Backoff.Attempts {
			log.Errorf("submit %s failed after %d attempts: %v", root, attempt+1, err)
			return Receipt{}, fmt.Errorf("anchor: submit %s: %w", root, err)
		}
		log.Debugf("submit %s attempt %d failed, retrying: %v", root, attempt+1, err)
		if waitErr := sleep(ctx, c.Backoff.Delay(attempt)); waitErr != nil {
			return Receipt{}, waitErr
		}
	}

	r := Receipt{
		RootHash:      root,
		SubmittedAt:   now,
		ReceiptBlob:   blob,
		State:         StatePending,
		LastCheckedAt: now,
	}
	c.mu.Lock()
	c.receipts[root] = &r
	c.mu.Unlock()
	return r, nil
}

// Upgrade re-queries the calendar for root's receipt and transitions its
// state pending -> confirmed|failed. Calling Upgrade on an already
// confirmed or failed receipt is a no-op that just returns the stored
// state, so repeated polling is idempotent.
func (c *Client) Upgrade(ctx context.Context, root digest.Hash, now int64) (State, error) {
	c.mu.Lock()
	r, ok := c.receipts[root]
	c.mu.Unlock()
	if !ok {
		return StateFailed, fmt.Errorf("anchor: no receipt for root %s", root)
	}
	if r.State != StatePending {
		return r.State, nil
	}

	var state State
	var err error
	for attempt := 0; attempt <= c.Backoff.Attempts; attempt++ {
		state, err = c.Calendar.Query(ctx, root)
		if err == nil {
			break
		}
		if attempt == c.Backoff.Attempts {
			c.mu.Lock()
			r.LastCheckedAt = now
			c.mu.Unlock()
			return StatePending, fmt.Errorf("anchor: query %s: %w", root, err)
		}
		if waitErr := sleep(ctx, c.Backoff.Delay(attempt)); waitErr != nil {
			return StatePending, waitErr
		}
	}

	c.mu.Lock()
	r.State = state
	r.LastCheckedAt = now
	c.mu.Unlock()
	if state != StatePending {
		log.Infof("root %s upgraded to %s", root, state)
	}
	return state, nil
}

// Receipt returns the stored receipt for root, if any.
func (c *Client) Receipt(root digest.Hash) (Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[root]
	if !ok {
		return Receipt{}, false
	}
	return *r, true
}

// Pending returns the root hashes of every receipt still awaiting
// confirmation, for a caller (e.g. a scheduled poller) to drive Upgrade.
func (c *Client) Pending() []digest.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []digest.Hash
	for root, r := range c.receipts {
		if r.State == StatePending {
			out = append(out, root)
		}
	}
	return out
}

// All returns every stored receipt, in no particular order, for
// serialization.
func (c *Client) All() []Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Receipt, 0, len(c.receipts))
	for _, r := range c.receipts {
		out = append(out, *r)
	}
	return out
}

// Restore seeds the client's receipt store from previously serialized
// receipts, used when rehydrating a Log from Deserialize.
func (c *Client) Restore(receipts []Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range receipts {
		r := receipts[i]
		c.receipts[r.RootHash] = &r
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
