// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bitquill/provenance/pkg/digest"
)

// CalendarClient abstracts the external timestamping service as an opaque
// POST/GET pair: submission returns a blob, and a later query on the same
// root returns a tri-state status. The engine mandates no bit-exact wire
// format; HTTPCalendar below is one concrete implementation speaking an
// OpenTimestamps-style calendar protocol.
type CalendarClient interface {
	// Submit posts a root hash and returns the opaque receipt blob the
	// calendar handed back.
	Submit(ctx context.Context, root digest.Hash) ([]byte, error)
	// Query re-checks a previously submitted root and reports its
	// current state.
	Query(ctx context.Context, root digest.Hash) (State, error)
}

// HTTPCalendar talks to an OpenTimestamps-style calendar server: POST
// {BaseURL}/digest with the raw 32-byte root as the body, GET
// {BaseURL}/verify/{hex root} to check status.
type HTTPCalendar struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPCalendar constructs a calendar client against baseURL, using
// http.DefaultClient if client is nil.
func NewHTTPCalendar(baseURL string, client *http.Client) *HTTPCalendar {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCalendar{BaseURL: baseURL, Client: client}
}

func (c *HTTPCalendar) Submit(ctx context.Context, root digest.Hash) ([]byte, error) {
	url := c.BaseURL + "/digest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(root[:]))
	if err != nil {
		return nil, fmt.Errorf("anchor: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anchor: submit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("anchor: read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anchor: calendar submission failed: %d %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *HTTPCalendar) Query(ctx context.Context, root digest.Hash) (State, error) {
	url := c.BaseURL + "/verify/" + root.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatePending, fmt.Errorf("anchor: build query request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return StatePending, fmt.Errorf("anchor: query: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return StateConfirmed, nil
	case http.StatusNotFound, http.StatusAccepted:
		return StatePending, nil
	default:
		return StateFailed, fmt.Errorf("anchor: calendar rejected blob: %d", resp.StatusCode)
	}
}
